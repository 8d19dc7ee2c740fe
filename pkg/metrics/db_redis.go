package metrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	DbPoolOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "app_db_pool_open",
		Help: "Current open DB connections",
	}, []string{"route"})
	DbPoolIdle         = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "app_db_pool_idle"}, []string{"route"})
	DbPoolInuse        = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "app_db_pool_inuse"}, []string{"route"})
	DbPoolWaitCount    = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "app_db_pool_wait_count"}, []string{"route"})
	DbPoolWaitDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "app_db_pool_wait_seconds"}, []string{"route"})

	RedisPoolOpen  = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_redis_pool_open"})
	RedisPoolIdle  = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_redis_pool_idle"})
	RedisPoolStale = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_redis_pool_stale"})

	DbQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "app_db_query_duration_seconds",
		Help:    "DB query latency",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms ~ 16s
	}, []string{"query", "status"})
)

// ObserveDB 记录一次 DB 操作耗时
func ObserveDB(query string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DbQueryDuration.WithLabelValues(query, status).Observe(time.Since(start).Seconds())
}

// CollectPools 周期性采集连接池状态，直到 ctx 结束
// dbs: route -> *sql.DB；rdb 可为 nil
func CollectPools(ctx context.Context, every time.Duration, dbs map[string]*sql.DB, rdb *redis.Client) {
	if every <= 0 {
		every = 15 * time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		samplePools(dbs, rdb)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func samplePools(dbs map[string]*sql.DB, rdb *redis.Client) {
	for route, db := range dbs {
		s := db.Stats()
		DbPoolOpen.WithLabelValues(route).Set(float64(s.OpenConnections))
		DbPoolIdle.WithLabelValues(route).Set(float64(s.Idle))
		DbPoolInuse.WithLabelValues(route).Set(float64(s.InUse))
		DbPoolWaitCount.WithLabelValues(route).Set(float64(s.WaitCount))
		DbPoolWaitDuration.WithLabelValues(route).Set(s.WaitDuration.Seconds())
	}
	if rdb != nil {
		ps := rdb.PoolStats()
		RedisPoolOpen.Set(float64(ps.TotalConns))
		RedisPoolIdle.Set(float64(ps.IdleConns))
		RedisPoolStale.Set(float64(ps.StaleConns))
	}
}
