package domain

import (
	"testing"
	"time"

	"datahouse.com/pkg/xerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func tradeDay(id, date string) StockTradeDay {
	return StockTradeDay{Mixin{ID: id, EntityID: "stock_sz_000001", Provider: "baostock", Timestamp: day(date)}}
}

func TestRows_Validate(t *testing.T) {
	ok := Rows[StockTradeDay]{tradeDay("a", "1990-12-19")}
	require.NoError(t, ok.Validate())

	cases := map[string]StockTradeDay{
		"id":        {Mixin{EntityID: "e", Provider: "p", Timestamp: day("1990-12-19")}},
		"entity_id": {Mixin{ID: "a", Provider: "p", Timestamp: day("1990-12-19")}},
		"provider":  {Mixin{ID: "a", EntityID: "e", Timestamp: day("1990-12-19")}},
		"timestamp": {Mixin{ID: "a", EntityID: "e", Provider: "p"}},
	}
	for name, row := range cases {
		t.Run(name, func(t *testing.T) {
			err := Rows[StockTradeDay]{row}.Validate()
			require.Error(t, err)
			assert.True(t, xerr.IsValidation(err))
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestRows_DedupKeepsLast(t *testing.T) {
	r := Rows[StockTradeDay]{
		tradeDay("a", "1990-12-19"),
		tradeDay("b", "1990-12-20"),
		tradeDay("a", "1990-12-21"),
	}
	out := r.Dedup().(Rows[StockTradeDay])
	require.Len(t, out, 2)
	assert.Equal(t, []string{"a", "b"}, out.IDs())
	assert.Equal(t, day("1990-12-21"), out[0].Timestamp)
}

func TestRows_ExcludeAndLatest(t *testing.T) {
	r := Rows[StockTradeDay]{
		tradeDay("a", "1990-12-19"),
		tradeDay("b", "1990-12-21"),
		tradeDay("c", "1990-12-20"),
	}
	assert.Equal(t, day("1990-12-21"), r.Latest())

	left := r.Exclude(map[string]struct{}{"b": {}})
	assert.Equal(t, []string{"a", "c"}, left.IDs())
	assert.Equal(t, 3, r.Exclude(nil).Len())

	_, isPtr := r.Model().(*Rows[StockTradeDay])
	assert.True(t, isPtr)
	_, isProto := r.Proto().(*StockTradeDay)
	assert.True(t, isProto)
}

func TestKdataTable(t *testing.T) {
	cases := []struct {
		level  Level
		adjust AdjustType
		want   string
	}{
		{Level1Day, AdjustQfq, "stock_1d_kdata"},
		{Level1Day, "", "stock_1d_kdata"},
		{Level1Week, AdjustHfq, "stock_1wk_hfq_kdata"},
		{Level5Min, AdjustBfq, "stock_5m_bfq_kdata"},
	}
	for _, tc := range cases {
		got, err := KdataTable(EntityStock, tc.level, tc.adjust)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := KdataTable(EntityStock, "3d", AdjustQfq)
	assert.True(t, xerr.IsFatal(err))
	_, err = KdataTable(EntityStock, Level1Day, "xfq")
	assert.True(t, xerr.IsFatal(err))
}

func TestParse(t *testing.T) {
	l, err := ParseLevel("1wk")
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, l.Interval())
	assert.False(t, l.Intraday())
	assert.True(t, Level30Min.Intraday())

	_, err = ParseLevel("2d")
	assert.True(t, xerr.IsFatal(err))

	a, err := ParseAdjust("")
	require.NoError(t, err)
	assert.Equal(t, AdjustQfq, a)
	for in, want := range map[string]AdjustType{"hfq": AdjustHfq, "bfq": AdjustBfq, "normal": AdjustBfq, "NORMAL": AdjustBfq} {
		a, err = ParseAdjust(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, a, in)
	}
	_, err = ParseAdjust("xfq")
	assert.True(t, xerr.IsFatal(err))

	p, err := ParseDedup("OVERWRITE")
	require.NoError(t, err)
	assert.Equal(t, DedupOverwrite, p)
	_, err = ParseDedup("merge")
	assert.True(t, xerr.IsFatal(err))
}

func TestEntityVariants(t *testing.T) {
	a := NewAnchor(RegionUS, EntityExchange, "nyse", "nyse")
	assert.True(t, a.IsAnchor())
	assert.False(t, a.IsConcrete())

	s := EntityFromStock(RegionCHN, Stock{
		Mixin:     Mixin{ID: "stock_sh_600000"},
		StockMeta: StockMeta{EntityType: "stock", Exchange: "sh", Code: "600000", IsActive: true},
	})
	assert.True(t, s.IsConcrete())
	assert.Equal(t, "stock_sh_600000", s.ID)
	assert.Nil(t, s.Detail)

	d := &StockDetail{Mixin: Mixin{ID: "stock_nyse_IBM"}, StockMeta: StockMeta{Code: "IBM"}}
	de := EntityFromDetail(RegionUS, d)
	de.Detail.Sector = "Technology"
	assert.Equal(t, "Technology", d.Sector, "Detail 是同一个指针，可以就地补全")
	assert.Equal(t, "stock_nasdaq_AAPL", StockID(EntityStock, "nasdaq", "AAPL"))
}
