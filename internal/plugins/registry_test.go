package plugins

import (
	"testing"

	"datahouse.com/internal/recorder"
	"datahouse.com/pkg/fetch"
	"datahouse.com/pkg/xerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	assert.Equal(t, []string{
		"baostock_kdata",
		"baostock_trade_day",
		"exchange_stock_list",
		"yahoo_detail",
		"yahoo_trade_day",
	}, Names())
}

func TestBuild(t *testing.T) {
	deps := Deps{HTTP: fetch.New(fetch.Config{})}

	t.Run("unknown", func(t *testing.T) {
		_, _, err := Build("tushare_kdata", deps, recorder.Options{})
		assert.True(t, xerr.IsFatal(err))
	})

	t.Run("kdata_defaults", func(t *testing.T) {
		a, opts, err := Build("baostock_kdata", deps, recorder.Options{})
		require.NoError(t, err)
		assert.Equal(t, "stock_1wk_kdata", a.Table())
		assert.Equal(t, "1wk", opts.Level)
		assert.Equal(t, recorder.DefaultBatchSize, opts.BatchSize)
	})

	t.Run("kdata_unsupported_level", func(t *testing.T) {
		_, _, err := Build("baostock_kdata", deps, recorder.Options{Level: "1m"})
		assert.True(t, xerr.IsFatal(err))
	})

	t.Run("bad_option", func(t *testing.T) {
		_, _, err := Build("yahoo_trade_day", deps, recorder.Options{FixDuplicateWay: "merge"})
		assert.True(t, xerr.IsFatal(err))
	})

	t.Run("detail_sleep_default", func(t *testing.T) {
		a, opts, err := Build("yahoo_detail", deps, recorder.Options{})
		require.NoError(t, err)
		assert.Equal(t, "yahoo_detail", a.Name())
		assert.Equal(t, 5.0, opts.SleepTime)
	})

	for _, name := range Names() {
		f, ok := Lookup(name)
		require.True(t, ok)
		assert.NotEmpty(t, f.Description, name)
	}
}
