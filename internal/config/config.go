package config

import (
	"fmt"
	"time"

	"datahouse.com/internal/plugins"
	"datahouse.com/internal/progress"
	"datahouse.com/internal/recorder"
	"datahouse.com/internal/store"
	"datahouse.com/pkg/config"
	"datahouse.com/pkg/fetch"
	"datahouse.com/pkg/orm"
	"datahouse.com/pkg/trace"
	"datahouse.com/pkg/xredis"
	"github.com/spf13/viper"
)

const ServiceName = "recorder"

// Cfg recorder 进程的总配置，对应 config/recorder.yaml
type Cfg struct {
	Name        string                `mapstructure:"name"`
	Log         Log                   `mapstructure:"log"`
	Databases   map[string]orm.Config `mapstructure:"databases"` // route(default / chn / us_yahoo) -> 连接
	AutoMigrate bool                  `mapstructure:"auto_migrate"`
	Redis       xredis.Config         `mapstructure:"redis"`
	Progress    progress.Config       `mapstructure:"progress"`
	Influx      store.InfluxConfig    `mapstructure:"influx"`
	OTel        trace.Config          `mapstructure:"otel"`
	HTTP        fetch.Config          `mapstructure:"http"`
	Endpoints   plugins.Endpoints     `mapstructure:"endpoints"`
	MetricsAddr string                `mapstructure:"metrics_addr"`
	Lock        Lock                  `mapstructure:"lock"`
	Jobs        []Job                 `mapstructure:"jobs"`
}

type Log struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Lock 多节点部署时同一个 job 只在一个节点跑；没有 redis 时不加锁
type Lock struct {
	Prefix string        `mapstructure:"prefix"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// Job 一个 recorder 任务；Cron 为空时只能手动 run
type Job struct {
	Name     string           `mapstructure:"name"`
	Recorder string           `mapstructure:"recorder"`
	Cron     string           `mapstructure:"cron"`
	Options  recorder.Options `mapstructure:"options"`
}

// ID 没写 name 时用 recorder 名
func (j Job) ID() string {
	if j.Name != "" {
		return j.Name
	}
	return j.Recorder
}

var defaults = map[string]interface{}{
	"name":            ServiceName,
	"log.level":       "info",
	"auto_migrate":    true,
	"progress.driver": "none",
	"progress.topic":  "recorder.progress",
	"progress.key":    "recorder",
	"metrics_addr":    ":9108",
	"lock.prefix":     "recorder:lock:",
	"lock.ttl":        "30s",
	"http.timeout":    "30s",
}

// Load 读配置并做基本校验
func Load() (*Cfg, *viper.Viper, error) {
	cfg := &Cfg{}
	v, err := config.Load(ServiceName, cfg, defaults)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func (c *Cfg) Validate() error {
	if len(c.Databases) == 0 {
		return fmt.Errorf("config: no databases configured")
	}
	seen := map[string]struct{}{}
	for i, j := range c.Jobs {
		if j.Recorder == "" {
			return fmt.Errorf("config: jobs[%d] has no recorder", i)
		}
		if _, ok := plugins.Lookup(j.Recorder); !ok {
			return fmt.Errorf("config: jobs[%d] unknown recorder %q", i, j.Recorder)
		}
		if _, dup := seen[j.ID()]; dup {
			return fmt.Errorf("config: duplicate job %q", j.ID())
		}
		seen[j.ID()] = struct{}{}
	}
	return nil
}

// Job 按 id 找任务
func (c *Cfg) Job(id string) (Job, bool) {
	for _, j := range c.Jobs {
		if j.ID() == id {
			return j, true
		}
	}
	return Job{}, false
}
