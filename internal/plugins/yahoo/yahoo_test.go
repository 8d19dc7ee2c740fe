package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"datahouse.com/internal/domain"
	"datahouse.com/internal/plugins/exchange"
	"datahouse.com/internal/recorder"
	"datahouse.com/internal/store"
	"datahouse.com/pkg/fetch"
	"datahouse.com/pkg/orm"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestSessions_YearCounts(t *testing.T) {
	cases := map[int]int{2022: 251, 2023: 250, 2024: 252}
	for year, want := range cases {
		got := Sessions(date(year, time.January, 1), date(year, time.December, 31))
		assert.Len(t, got, want, "year %d", year)
	}
}

func TestIsSession_Holidays(t *testing.T) {
	closed := []string{
		"2024-01-01", "2024-01-15", "2024-02-19", "2024-03-29", "2024-05-27",
		"2024-06-19", "2024-07-04", "2024-09-02", "2024-11-28", "2024-12-25",
		"2022-06-20", // 周日的 Juneteenth 顺延
		"2022-12-26", // 周日的圣诞顺延
		"2023-01-02", // 周日的元旦顺延
		"2012-10-29", "2025-01-09",
		"2024-03-30", // 周六
	}
	open := []string{
		"2021-06-18", // 2022 年以前没有 Juneteenth
		"2021-12-31", // 元旦落在周六不提前
		"2024-03-28",
		"2024-11-29",
	}
	for _, s := range closed {
		d, _ := time.Parse(time.DateOnly, s)
		assert.False(t, IsSession(d, nil), s)
	}
	for _, s := range open {
		d, _ := time.Parse(time.DateOnly, s)
		assert.True(t, IsSession(d, nil), s)
	}
}

func TestEaster(t *testing.T) {
	assert.Equal(t, date(2024, time.March, 31), easter(2024))
	assert.Equal(t, date(2025, time.April, 20), easter(2025))
	assert.Equal(t, date(2004, time.April, 11), easter(2004))
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

func newStore(t *testing.T) (*store.Gateway, *store.Watermarks, *store.Catalog, *gorm.DB) {
	db := openTestDB(t)
	router := store.NewRouter(map[string]*gorm.DB{store.DefaultRoute: db})
	return store.NewGateway(router, store.WithAutoMigrate(true)), store.NewWatermarks(router), store.NewCatalog(router), db
}

func runOnce(t *testing.T, wm *store.Watermarks, a recorder.Adapter, now time.Time) recorder.Summary {
	t.Helper()
	opts, err := recorder.Options{}.Normalize()
	require.NoError(t, err)
	engine := recorder.NewEngine(wm, opts, recorder.WithClock(func() time.Time { return now }))
	sum, err := recorder.NewOrchestrator(engine, opts).Run(context.Background(), a)
	require.NoError(t, err)
	return sum
}

func TestTradeDayRecorder_FromEpochThenIncremental(t *testing.T) {
	gw, wm, _, db := newStore(t)
	a := NewTradeDayRecorder(gw, recorder.Options{})

	// 2003-10-11 是周六，到 10-17 共 5 个交易日
	now := time.Date(2003, 10, 17, 20, 0, 0, 0, time.UTC)
	sum := runOnce(t, wm, a, now)
	assert.Equal(t, 5, sum.Rows)

	var first string
	require.NoError(t, db.Table(domain.TableStockTradeDay).Order("id").Limit(1).Pluck("id", &first).Error)
	assert.Equal(t, "nyse_2003-10-13", first)

	// 两天后：从水位 10-17 开始，新增 10-20
	sum = runOnce(t, wm, a, now.Add(72*time.Hour))
	assert.Equal(t, 1, sum.Completed)
	assert.Equal(t, 1, sum.Rows)
}

const summaryPayload = `{"quoteSummary":{"result":[{
 "assetProfile":{"sector":"Technology","industry":"Software","country":"United States","state":"WA","city":"Redmond","zip":"98052","longBusinessSummary":"Makes software."},
 "summaryDetail":{"previousClose":{"raw":415.5,"fmt":"415.50"},"marketCap":{"raw":3100000000000,"fmt":"3.1T"}}
}],"error":null}}`

func detail(code string, sector string, cap string) domain.StockDetail {
	id := domain.StockID(domain.EntityStock, "nasdaq", code)
	return domain.StockDetail{
		Mixin:     domain.Mixin{ID: id, EntityID: id, Provider: "exchange", Timestamp: time.Date(1986, 1, 1, 0, 0, 0, 0, time.UTC)},
		StockMeta: domain.StockMeta{EntityType: "stock", Exchange: "nasdaq", Code: code, IsActive: true},
		Sector:    sector,
		MarketCap: decimal.RequireFromString(cap),
	}
}

func TestDetailRecorder_EnrichesPendingOnly(t *testing.T) {
	gw, wm, catalog, db := newStore(t)
	_, err := gw.Write(context.Background(), exchange.Route, domain.TableStockDetail, domain.Rows[domain.StockDetail]{
		detail("MSFT", "", "0"),
		detail("AAPL", "Technology", "100"),
	}, domain.DedupIgnore)
	require.NoError(t, err)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v10/finance/quoteSummary/MSFT", r.URL.Path)
		// 第一次 503，验证内部的重试
		if calls.Load() == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(summaryPayload))
	}))
	defer srv.Close()

	a := NewDetailRecorder(gw, catalog, NewClient(fetch.New(fetch.Config{}), srv.URL), recorder.Options{})
	a.retryWait = 0
	sum := runOnce(t, wm, a, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 1, sum.Total)
	assert.Equal(t, 1, sum.Completed)
	assert.EqualValues(t, 2, calls.Load())

	var got domain.StockDetail
	require.NoError(t, db.Where("id = ?", "stock_nasdaq_MSFT").First(&got).Error)
	assert.Equal(t, "Technology", got.Sector)
	assert.Equal(t, "Software", got.Industry)
	assert.Equal(t, "Redmond", got.City)
	assert.Equal(t, "98052", got.ZipCode)
	assert.Equal(t, "Makes software.", got.Profile)
	assert.True(t, decimal.RequireFromString("3100000000000").Equal(got.MarketCap))
	assert.True(t, decimal.RequireFromString("415.5").Equal(got.LastSale))

	pending, err := catalog.PendingDetails(context.Background(), exchange.Route, nil)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDetailRecorder_NoResultIsSkipped(t *testing.T) {
	gw, wm, catalog, _ := newStore(t)
	_, err := gw.Write(context.Background(), exchange.Route, domain.TableStockDetail,
		domain.Rows[domain.StockDetail]{detail("ZZZZ", "", "0")}, domain.DedupIgnore)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"quoteSummary":{"result":null,"error":{"code":"Not Found","description":"No fundamentals data found"}}}`))
	}))
	defer srv.Close()

	a := NewDetailRecorder(gw, catalog, NewClient(fetch.New(fetch.Config{}), srv.URL), recorder.Options{})
	sum := runOnce(t, wm, a, time.Now())
	assert.Equal(t, 1, sum.Skipped)
}

func TestEnrich_KeepsListingValues(t *testing.T) {
	d := detail("AAPL", "Tech", "100")
	enrich(&d, &Info{Sector: "Technology", MarketCap: decimal.NewFromInt(5), City: "Cupertino"})
	assert.Equal(t, "Tech", d.Sector)
	assert.True(t, decimal.NewFromInt(100).Equal(d.MarketCap))
	assert.Equal(t, "Cupertino", d.City)
}

func TestDetailDefaults(t *testing.T) {
	o := recorder.Options{}
	DetailDefaults(&o)
	assert.Equal(t, 5.0, o.SleepTime)
}
