package recorder

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"datahouse.com/internal/domain"
	"datahouse.com/internal/store"
	"datahouse.com/pkg/orm"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	testRoute = store.Route{Region: domain.RegionCHN, Provider: domain.ProviderBaoStock}
	testEpoch = time.Date(1990, 12, 19, 0, 0, 0, 0, time.UTC)
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// fakeWatermarks entity_id -> 水位
type fakeWatermarks struct {
	mu    sync.Mutex
	marks map[string]time.Time
	err   error
	calls int
}

func (f *fakeWatermarks) Latest(_ context.Context, _ store.Route, _ string, entityID string) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return time.Time{}, false, f.err
	}
	ts, ok := f.marks[entityID]
	return ts, ok, nil
}

// fakeAdapter 每一步都可以替换；默认每个实体产出一行
type fakeAdapter struct {
	Base

	entities []domain.Entity
	initErr  error

	evalFn    func(domain.Entity) (bool, string)
	recordFn  func(ctx context.Context, e domain.Entity, w Window) (bool, any, error)
	formatFn  func(e domain.Entity, raw any) (domain.Batch, error)
	persistFn func(ctx context.Context, e domain.Entity, b domain.Batch) (bool, int, error)
	finishErr error

	mu        sync.Mutex
	windows   map[string]Window
	finished  map[string]Outcome
	onFinish  int
	summary   Summary
	finishAll []domain.Entity
}

func newFakeAdapter(gw *store.Gateway, opts Options, entities ...domain.Entity) *fakeAdapter {
	return &fakeAdapter{
		Base:     NewBase("fake", testRoute, domain.TableStockTradeDay, testEpoch, gw, opts),
		entities: entities,
		windows:  map[string]Window{},
		finished: map[string]Outcome{},
	}
}

func (f *fakeAdapter) InitEntities(context.Context) ([]domain.Entity, error) {
	return f.entities, f.initErr
}

func (f *fakeAdapter) Eval(_ context.Context, e domain.Entity) (bool, string) {
	if f.evalFn != nil {
		return f.evalFn(e)
	}
	return false, ""
}

func (f *fakeAdapter) Record(ctx context.Context, e domain.Entity, w Window) (bool, any, error) {
	f.mu.Lock()
	f.windows[e.ID] = w
	f.mu.Unlock()
	if f.recordFn != nil {
		return f.recordFn(ctx, e, w)
	}
	return false, []time.Time{w.Start}, nil
}

func (f *fakeAdapter) Format(_ context.Context, e domain.Entity, raw any) (domain.Batch, error) {
	if f.formatFn != nil {
		return f.formatFn(e, raw)
	}
	days := raw.([]time.Time)
	rows := make(domain.Rows[domain.StockTradeDay], 0, len(days))
	for _, d := range days {
		rows = append(rows, domain.StockTradeDay{Mixin: domain.Mixin{
			ID:        e.ID + "_" + d.Format("2006-01-02"),
			EntityID:  e.ID,
			Provider:  string(domain.ProviderBaoStock),
			Timestamp: d,
		}})
	}
	return rows, nil
}

func (f *fakeAdapter) Persist(ctx context.Context, e domain.Entity, b domain.Batch) (bool, int, error) {
	if f.persistFn != nil {
		return f.persistFn(ctx, e, b)
	}
	if f.Gateway == nil {
		return true, b.Len(), nil
	}
	return f.Base.Persist(ctx, e, b)
}

func (f *fakeAdapter) OnFinishEntity(_ context.Context, e domain.Entity, o Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished[e.ID] = o
	return f.finishErr
}

func (f *fakeAdapter) OnFinish(_ context.Context, entities []domain.Entity, s Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onFinish++
	f.summary = s
	f.finishAll = entities
	return nil
}

func (f *fakeAdapter) window(id string) Window {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.windows[id]
}

func stockEntities(n int) []domain.Entity {
	out := make([]domain.Entity, n)
	for i := range out {
		code := fmt.Sprintf("%06d", i+1)
		out[i] = domain.EntityFromStock(domain.RegionCHN, domain.Stock{
			Mixin:     domain.Mixin{ID: domain.StockID(domain.EntityStock, "sz", code)},
			StockMeta: domain.StockMeta{EntityType: "stock", Exchange: "sz", Code: code, IsActive: true},
		})
	}
	return out
}

func mustOptions(t *testing.T, o Options) Options {
	t.Helper()
	n, err := o.Normalize()
	require.NoError(t, err)
	return n
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := orm.OpenDialector(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &orm.Config{MaxOpen: 1})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})
	return db
}

func newTestStore(t *testing.T) (*store.Gateway, *store.Watermarks, *gorm.DB) {
	db := openTestDB(t)
	router := store.NewRouter(map[string]*gorm.DB{store.DefaultRoute: db})
	return store.NewGateway(router, store.WithAutoMigrate(true)), store.NewWatermarks(router), db
}
