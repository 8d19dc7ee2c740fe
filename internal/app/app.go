package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"datahouse.com/internal/config"
	"datahouse.com/internal/plugins"
	"datahouse.com/internal/progress"
	"datahouse.com/internal/recorder"
	"datahouse.com/internal/schedule"
	"datahouse.com/internal/server"
	"datahouse.com/internal/store"
	"datahouse.com/pkg/fetch"
	"datahouse.com/pkg/logger"
	"datahouse.com/pkg/metrics"
	"datahouse.com/pkg/safe"
	"datahouse.com/pkg/trace"
	"datahouse.com/pkg/xredis"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App 进程内共享的句柄：DB 路由、redis、进度 broker、HTTP 客户端、influx 镜像
type App struct {
	cfg      *config.Cfg
	router   *store.Router
	rdb      *redis.Client
	broker   progress.Broker
	reporter *progress.Reporter
	mirror   *store.BarMirror
	deps     plugins.Deps
	history  *server.History
	locker   Locker

	traceShutdown func(context.Context) error
}

// Locker 跨进程互斥，xredis.RunLock 实现
type Locker interface {
	Hold(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

type Option func(*App)

// WithLocker 覆盖默认的 redis 锁
func WithLocker(l Locker) Option {
	return func(a *App) { a.locker = l }
}

// New 按配置把依赖都连上；任何一步失败都会关闭已经打开的资源
func New(ctx context.Context, cfg *config.Cfg, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, history: server.NewHistory(200)}
	ready := false
	defer func() {
		if !ready {
			a.Close()
		}
	}()
	var err error

	// ========= 1) Tracer =========
	if a.traceShutdown, err = trace.InitTrace(cfg.Name, cfg.OTel); err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// ========= 2) 数据库（按 route 分库） =========
	if a.router, err = store.OpenRouter(cfg.Databases); err != nil {
		return nil, fmt.Errorf("open databases: %w", err)
	}
	gw := store.NewGateway(a.router, store.WithAutoMigrate(cfg.AutoMigrate))

	// ========= 3) Redis（可选） =========
	if a.rdb, err = xredis.NewRedis(&cfg.Redis); err != nil {
		return nil, err
	}
	if a.rdb != nil {
		a.locker = xredis.NewRunLock(a.rdb)
	}
	for _, o := range opts {
		o(a)
	}

	// ========= 4) 进度 broker =========
	if a.broker, err = progress.NewBroker(cfg.Progress, a.rdb); err != nil {
		return nil, err
	}
	a.reporter = progress.NewReporter(a.broker, cfg.Progress.Topic, cfg.Progress.Key)

	// ========= 5) 数据源客户端 & K 线镜像 =========
	a.mirror = store.NewBarMirror(cfg.Influx)
	a.deps = plugins.Deps{
		Gateway:   gw,
		Catalog:   store.NewCatalog(a.router),
		HTTP:      fetch.New(cfg.HTTP),
		Mirror:    a.mirror,
		Endpoints: cfg.Endpoints,
	}

	logger.Info(ctx, "app ready",
		zap.Strings("routes", a.router.Keys()),
		zap.Bool("redis", a.rdb != nil),
		zap.Bool("run_lock", a.locker != nil),
		zap.String("progress", cfg.Progress.Driver),
		zap.Bool("influx", a.mirror != nil))
	ready = true
	return a, nil
}

func (a *App) Config() *config.Cfg      { return a.cfg }
func (a *App) History() *server.History { return a.history }
func (a *App) Broker() progress.Broker  { return a.broker }
func (a *App) Redis() *redis.Client     { return a.rdb }
func (a *App) Router() *store.Router    { return a.router }

// lockKey 同一个 (region, provider, 表) 只允许一个运行，和 job 名无关
func (a *App) lockKey(adapter recorder.Adapter) string {
	return a.cfg.Lock.Prefix + adapter.Route().Key() + "|" + adapter.Table()
}

// Run 跑一次 job；结果写入运行历史。cli、cron、HTTP 都走这里，
// 配了锁时别的进程在录同一张表返回 xredis.ErrLockHeld
func (a *App) Run(ctx context.Context, job config.Job) (recorder.Summary, error) {
	adapter, opts, err := plugins.Build(job.Recorder, a.deps, job.Options)
	if err != nil {
		a.history.Add(job.ID(), recorder.Summary{Recorder: job.Recorder}, err)
		return recorder.Summary{}, err
	}
	ctx = logger.With(ctx, zap.String("job", job.ID()))

	if a.locker == nil {
		return a.run(ctx, job, adapter, opts)
	}
	var sum recorder.Summary
	key := a.lockKey(adapter)
	ttl := a.cfg.Lock.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	ran := false
	err = a.locker.Hold(ctx, key, ttl, func(ctx context.Context) (err error) {
		ran = true
		sum, err = a.run(ctx, job, adapter, opts)
		return err
	})
	if !ran {
		if errors.Is(err, xredis.ErrLockHeld) {
			logger.Info(ctx, "recorder held by another run, skip", zap.String("lock", key))
		}
		a.history.Add(job.ID(), recorder.Summary{Recorder: job.Recorder}, err)
	}
	return sum, err
}

func (a *App) run(ctx context.Context, job config.Job, adapter recorder.Adapter, opts recorder.Options) (recorder.Summary, error) {
	engine := recorder.NewEngine(store.NewWatermarks(a.router), opts)
	orch := recorder.NewOrchestrator(engine, opts,
		recorder.WithReporter(a.reporter),
		recorder.WithResultHook(func(o recorder.Outcome) {
			if o.Status == recorder.StatusFailed {
				logger.Warn(ctx, "entity failed",
					zap.String("entity_id", o.Entity.ID),
					zap.String("reason", o.Reason),
					zap.Int("attempts", o.Attempts),
					zap.Error(o.Err))
			}
		}))

	sum, err := orch.Run(ctx, adapter)
	a.history.Add(job.ID(), sum, err)
	return sum, err
}

// Scheduler 本进程内同一个 job 不重入；跨节点互斥在 Run 里
func (a *App) Scheduler(loc *time.Location) *schedule.Scheduler {
	return schedule.New(func(ctx context.Context, job config.Job) error {
		_, err := a.Run(ctx, job)
		return err
	}, schedule.WithLocation(loc))
}

// CollectPools 连接池指标，直到 ctx 结束
func (a *App) CollectPools(ctx context.Context) {
	safe.GoCtx(ctx, func(ctx context.Context) {
		metrics.CollectPools(ctx, 15*time.Second, a.router.SQLDBs(), a.rdb)
	})
}

func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.mirror != nil {
		a.mirror.Close()
	}
	if a.broker != nil {
		_ = a.broker.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.router != nil {
		_ = a.router.Close()
	}
	if a.traceShutdown != nil {
		_ = a.traceShutdown(ctx)
	}
}
