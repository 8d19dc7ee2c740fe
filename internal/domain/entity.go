package domain

import "fmt"

// EntityKind 区分占位实体和目录里的真实实体
type EntityKind uint8

const (
	// KindAnchor 占位：日历锚点、交易所代码
	KindAnchor EntityKind = iota + 1
	// KindConcrete 来自实体目录的一行（股票 / 股票详情）
	KindConcrete
)

func (k EntityKind) String() string {
	switch k {
	case KindAnchor:
		return "anchor"
	case KindConcrete:
		return "concrete"
	default:
		return "unknown"
	}
}

// Entity 一次录制的对象
// 运行期间不可变；Detail 是唯一允许适配器就地补充的部分
type Entity struct {
	Kind     EntityKind
	Region   Region
	Type     EntityType
	Exchange string
	Code     string
	ID       string // entity_id，录制数据里的外键
	Name     string
	IsActive bool

	Detail *StockDetail
}

// NewAnchor 锚点实体，id 直接给定（比如 stock_sz_000001 / nyse）
func NewAnchor(region Region, typ EntityType, code, id string) Entity {
	return Entity{
		Kind:     KindAnchor,
		Region:   region,
		Type:     typ,
		Code:     code,
		ID:       id,
		IsActive: true,
	}
}

func EntityFromStock(region Region, s Stock) Entity {
	return Entity{
		Kind:     KindConcrete,
		Region:   region,
		Type:     EntityType(s.EntityType),
		Exchange: s.Exchange,
		Code:     s.Code,
		ID:       s.ID,
		Name:     s.Name,
		IsActive: s.IsActive,
	}
}

func EntityFromDetail(region Region, d *StockDetail) Entity {
	return Entity{
		Kind:     KindConcrete,
		Region:   region,
		Type:     EntityStockDetail,
		Exchange: d.Exchange,
		Code:     d.Code,
		ID:       d.ID,
		Name:     d.Name,
		IsActive: d.IsActive,
		Detail:   d,
	}
}

func (e Entity) IsAnchor() bool   { return e.Kind == KindAnchor }
func (e Entity) IsConcrete() bool { return e.Kind == KindConcrete }

func (e Entity) String() string {
	return fmt.Sprintf("%s(%s/%s/%s)", e.ID, e.Region, e.Type, e.Kind)
}

// StockID stock_{exchange}_{code}
func StockID(entityType EntityType, exchange, code string) string {
	return fmt.Sprintf("%s_%s_%s", entityType, exchange, code)
}
