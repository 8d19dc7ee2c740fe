package domain

import (
	"time"

	"datahouse.com/pkg/xerr"
)

// Mixin 每张录制表都有的四列
type Mixin struct {
	ID        string    `gorm:"primaryKey;size:191" json:"id"`
	EntityID  string    `gorm:"size:128;index" json:"entity_id"`
	Provider  string    `gorm:"size:32;index" json:"provider"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
}

func (m Mixin) Meta() Mixin { return m }

// Record 可以写进 Batch 的行
type Record interface {
	Meta() Mixin
}

// Batch 一次 format 产出的同构记录
// Persistence Gateway 只通过这个接口读批次，不关心具体 schema
type Batch interface {
	Len() int
	IDs() []string
	// Validate 每行 id/entity_id/provider/timestamp 都必须有值
	Validate() error
	// Dedup 批内同 id 只保留最后一次出现，顺序按首次出现
	Dedup() Batch
	// Exclude 去掉 ids 里已有的行
	Exclude(ids map[string]struct{}) Batch
	// Latest 批内最大 timestamp
	Latest() time.Time
	// Model 给 gorm Create 用的切片指针
	Model() any
	// Proto 单行零值指针，建表用
	Proto() any
}

// Rows 泛型批次
type Rows[T Record] []T

var _ Batch = Rows[StockTradeDay]{}

func (r Rows[T]) Len() int { return len(r) }

func (r Rows[T]) IDs() []string {
	ids := make([]string, len(r))
	for i, row := range r {
		ids[i] = row.Meta().ID
	}
	return ids
}

func (r Rows[T]) Validate() error {
	for i, row := range r {
		m := row.Meta()
		switch {
		case m.ID == "":
			return xerr.Validationf("row %d: empty id", i)
		case m.EntityID == "":
			return xerr.Validationf("row %d (%s): empty entity_id", i, m.ID)
		case m.Provider == "":
			return xerr.Validationf("row %d (%s): empty provider", i, m.ID)
		case m.Timestamp.IsZero():
			return xerr.Validationf("row %d (%s): empty timestamp", i, m.ID)
		}
	}
	return nil
}

func (r Rows[T]) Dedup() Batch {
	pos := make(map[string]int, len(r))
	out := make(Rows[T], 0, len(r))
	for _, row := range r {
		id := row.Meta().ID
		if i, ok := pos[id]; ok {
			out[i] = row
			continue
		}
		pos[id] = len(out)
		out = append(out, row)
	}
	return out
}

func (r Rows[T]) Exclude(ids map[string]struct{}) Batch {
	if len(ids) == 0 {
		return r
	}
	out := make(Rows[T], 0, len(r))
	for _, row := range r {
		if _, ok := ids[row.Meta().ID]; !ok {
			out = append(out, row)
		}
	}
	return out
}

func (r Rows[T]) Latest() time.Time {
	var latest time.Time
	for _, row := range r {
		if ts := row.Meta().Timestamp; ts.After(latest) {
			latest = ts
		}
	}
	return latest
}

func (r Rows[T]) Model() any { return &r }

func (r Rows[T]) Proto() any {
	var zero T
	return &zero
}
