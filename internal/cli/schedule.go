package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"datahouse.com/internal/config"
	"datahouse.com/internal/server"
	pkgconfig "datahouse.com/pkg/config"
	"datahouse.com/pkg/logger"
	"datahouse.com/pkg/metrics"
	"datahouse.com/pkg/ratelimit"
	"datahouse.com/pkg/safe"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type ScheduleOptions struct {
	*RootOptions
	Timezone string
}

func NewScheduleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScheduleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run configured jobs on their cron schedules",
		Long: `Start the long-running scheduler. Every job with a cron spec
(seconds first, e.g. "0 30 17 * * 1-5") is triggered on schedule; a job
never overlaps itself, and with redis configured only one node runs it.

The ops server on metrics_addr exposes /healthz, /metrics, /api/jobs,
/api/runs and POST /api/runs/:job for manual triggers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.Timezone, "tz", "", "time zone for cron specs, default local")
	return cmd
}

func runSchedule(parent context.Context, opts *ScheduleOptions) error {
	// ========= 0) 全局上下文 & 优雅退出 =========
	ctx, stop := signalContext(parent)
	defer stop()

	var loc *time.Location
	if opts.Timezone != "" {
		l, err := time.LoadLocation(opts.Timezone)
		if err != nil {
			return err
		}
		loc = l
	}

	// ========= 1) 配置 & 依赖 =========
	a, v, err := bootstrap(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()
	defer logger.Sync()
	cfg := a.Config()

	// 热更新只做校验和提示，cron 变更需要重启
	fresh := &config.Cfg{}
	pkgconfig.Watch(v, config.ServiceName, fresh, func() {
		if err := fresh.Validate(); err != nil {
			logger.Error(ctx, "reloaded config is invalid", zap.Error(err))
			return
		}
		logger.Warn(ctx, "config file changed, restart to apply job changes", zap.Int("jobs", len(fresh.Jobs)))
	})

	// ========= 2) 监控 =========
	metrics.MustRegister()
	a.CollectPools(ctx)

	// ========= 3) 调度 =========
	sched := a.Scheduler(loc)
	for _, job := range cfg.Jobs {
		if err := sched.Add(job); err != nil {
			return err
		}
		if job.Cron != "" {
			logger.Info(ctx, "job scheduled", zap.String("job", job.ID()), zap.String("cron", job.Cron))
		}
	}
	sched.Start(ctx)

	// ========= 4) 运维 HTTP =========
	limits := ratelimit.NewStore(rate.Limit(5), 10, 10*time.Minute)
	limits.StartJanitor(ctx, time.Minute)
	srv := server.New(ctx, cfg.Jobs, a.History(), sched.Trigger,
		server.WithScheduler(sched),
		server.WithRateLimit(limits),
	).HTTPServer(cfg.MetricsAddr)

	errCh := make(chan error, 1)
	safe.Go(func() {
		logger.Info(ctx, "ops server listening", zap.String("addr", cfg.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	})

	select {
	case <-ctx.Done():
	case err = <-errCh:
		logger.Error(ctx, "ops server failed", zap.Error(err))
	}

	// ========= 5) 退出 =========
	logger.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	sched.Stop()
	return err
}
