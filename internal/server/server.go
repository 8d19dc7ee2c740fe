package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"datahouse.com/internal/config"
	"datahouse.com/internal/schedule"
	"datahouse.com/pkg/common"
	"datahouse.com/pkg/logger"
	"datahouse.com/pkg/middleware"
	"datahouse.com/pkg/ratelimit"
	"datahouse.com/pkg/safe"
	"datahouse.com/pkg/xerr"
	"datahouse.com/pkg/xredis"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprom "github.com/zsais/go-gin-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// Trigger 手动触发 job，由调用方决定同步还是异步
type Trigger func(ctx context.Context, job config.Job) error

// Scheduler 只需要下一次触发时间
type Scheduler interface {
	Next(jobID string) time.Time
}

type Server struct {
	jobs    map[string]config.Job
	order   []string
	history *History
	trigger Trigger
	sched   Scheduler
	limit   *ratelimit.Store
	// runCtx 手动触发的运行挂在进程 ctx 上，不随请求结束
	runCtx context.Context
}

type Option func(*Server)

func WithScheduler(s Scheduler) Option { return func(srv *Server) { srv.sched = s } }

func WithRateLimit(store *ratelimit.Store) Option { return func(srv *Server) { srv.limit = store } }

func New(ctx context.Context, jobs []config.Job, h *History, trigger Trigger, opts ...Option) *Server {
	s := &Server{
		jobs:    make(map[string]config.Job, len(jobs)),
		history: h,
		trigger: trigger,
		runCtx:  ctx,
	}
	for _, j := range jobs {
		s.jobs[j.ID()] = j
		s.order = append(s.order, j.ID())
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler 路由：/healthz /metrics /api/jobs /api/runs
func (s *Server) Handler() http.Handler {
	r := gin.New()
	p := ginprom.NewPrometheus(config.ServiceName)
	p.Use(r)
	r.Use(
		otelgin.Middleware(config.ServiceName),
		middleware.ReqId(),
		cors.Default(),
		middleware.Recover(),
		middleware.RateLimit(s.limit),
	)
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	api := r.Group("/api")
	api.GET("/jobs", s.listJobs)
	api.GET("/runs", s.listRuns)
	api.POST("/runs/:job", s.triggerRun)
	return r
}

func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:           addr,
		Handler:        s.Handler(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
}

type jobView struct {
	Name     string     `json:"name"`
	Recorder string     `json:"recorder"`
	Cron     string     `json:"cron,omitempty"`
	Next     *time.Time `json:"next,omitempty"`
	Last     *Run       `json:"last,omitempty"`
}

func (s *Server) listJobs(c *gin.Context) {
	out := make([]jobView, 0, len(s.order))
	for _, id := range s.order {
		j := s.jobs[id]
		v := jobView{Name: id, Recorder: j.Recorder, Cron: j.Cron}
		if s.sched != nil {
			if next := s.sched.Next(id); !next.IsZero() {
				v.Next = &next
			}
		}
		if last, ok := s.history.Last(id); ok {
			v.Last = &last
		}
		out = append(out, v)
	}
	common.Success(c, out)
}

func (s *Server) listRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	common.Success(c, s.history.List(c.Query("job"), limit))
}

// triggerRun 异步执行，结果进 History，返回 202
func (s *Server) triggerRun(c *gin.Context) {
	id := c.Param("job")
	job, ok := s.jobs[id]
	if !ok {
		common.Fail(c, http.StatusNotFound, http.StatusNotFound, "unknown job "+id)
		return
	}
	rid := common.RequestIDFromGin(c)
	ctx := logger.With(s.runCtx, zap.String(common.CtxKeyRequestID, rid))

	accepted := make(chan error, 1)
	safe.GoCtx(ctx, func(ctx context.Context) {
		err := s.trigger(ctx, job)
		switch {
		case errors.Is(err, schedule.ErrRunning), errors.Is(err, xredis.ErrLockHeld):
			accepted <- err
		default:
			accepted <- nil
			if err != nil {
				logger.Error(ctx, "manual run failed", zap.String("job", id), zap.Error(err))
			}
		}
	})

	// 已经在跑的情况 Trigger 会立刻返回，稍等一下好给出 409
	select {
	case err := <-accepted:
		if err != nil {
			common.Fail(c, http.StatusConflict, http.StatusConflict, err.Error())
			return
		}
	case <-time.After(50 * time.Millisecond):
	case <-c.Request.Context().Done():
		common.FailErr(c, xerr.NewTransient(c.Request.Context().Err(), "request canceled"))
		return
	}
	common.Accepted(c, gin.H{"job": id, "request_id": rid})
}
