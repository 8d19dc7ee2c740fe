package cli

import (
	"fmt"

	"datahouse.com/internal/config"
	"datahouse.com/internal/plugins"
	"datahouse.com/pkg/logger"
	"github.com/segmentio/encoding/json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RunOptions 命令行覆盖 job 的参数，没设置的保留配置文件里的值
type RunOptions struct {
	*RootOptions
	Force     bool
	Start     string
	End       string
	Codes     []string
	EntityIDs []string
	BatchSize int
	SleepTime float64
	FixWay    string
	Level     string
	Adjust    string
}

func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <job|recorder>...",
		Short: "Run jobs once and print their summaries",
		Long: `Run one or more jobs to completion, one after another.

An argument is first looked up among the configured jobs, then among the
registered recorders; a bare recorder runs with its default options.

Example:
  recorder run baostock_trade_day
  recorder run baostock_kdata --level 1d --codes 000001,600000 --force
  recorder run yahoo_detail --start 2024-01-01 --end 2024-06-30`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, _, err := bootstrap(ctx, opts.RootOptions)
			if err != nil {
				return err
			}
			defer a.Close()
			defer logger.Sync()

			jobs := make([]config.Job, 0, len(args))
			for _, name := range args {
				job, err := resolveJob(a.Config(), name)
				if err != nil {
					return err
				}
				jobs = append(jobs, opts.apply(cmd, job))
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			for _, job := range jobs {
				sum, err := a.Run(ctx, job)
				if encErr := enc.Encode(sum); encErr != nil {
					return encErr
				}
				if err != nil {
					logger.Error(ctx, "job aborted", zap.String("job", job.ID()), zap.Error(err))
					return fmt.Errorf("%s: %w", job.ID(), err)
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.Force, "force", false, "ignore the caught-up check")
	f.StringVar(&opts.Start, "start", "", "start timestamp, overrides the watermark")
	f.StringVar(&opts.End, "end", "", "end timestamp")
	f.StringSliceVar(&opts.Codes, "codes", nil, "restrict to these codes")
	f.StringSliceVar(&opts.EntityIDs, "entity-ids", nil, "restrict to these entity ids")
	f.IntVar(&opts.BatchSize, "batch-size", 0, "concurrent entities")
	f.Float64Var(&opts.SleepTime, "sleep", 0, "seconds each worker sleeps between entities")
	f.StringVar(&opts.FixWay, "fix-duplicate-way", "", "ignore|overwrite")
	f.StringVar(&opts.Level, "level", "", "bar level, e.g. 1d 1wk 30m")
	f.StringVar(&opts.Adjust, "adjust-type", "", "qfq|hfq|bfq (normal = bfq)")
	return cmd
}

// resolveJob 先找配置里的 job，再找注册的 recorder
func resolveJob(cfg *config.Cfg, name string) (config.Job, error) {
	if job, ok := cfg.Job(name); ok {
		return job, nil
	}
	if _, ok := plugins.Lookup(name); ok {
		return config.Job{Recorder: name}, nil
	}
	return config.Job{}, fmt.Errorf("unknown job or recorder %q, see `recorder list`", name)
}

// apply 只覆盖显式传入的 flag
func (o *RunOptions) apply(cmd *cobra.Command, job config.Job) config.Job {
	f := cmd.Flags()
	opt := job.Options
	if f.Changed("force") {
		opt.ForceUpdate = o.Force
	}
	if f.Changed("start") {
		opt.StartTimestamp = o.Start
	}
	if f.Changed("end") {
		opt.EndTimestamp = o.End
	}
	if f.Changed("codes") {
		opt.Codes = o.Codes
	}
	if f.Changed("entity-ids") {
		opt.EntityIDs = o.EntityIDs
	}
	if f.Changed("batch-size") {
		opt.BatchSize = o.BatchSize
	}
	if f.Changed("sleep") {
		opt.SleepTime = o.SleepTime
	}
	if f.Changed("fix-duplicate-way") {
		opt.FixDuplicateWay = o.FixWay
	}
	if f.Changed("level") {
		opt.Level = o.Level
	}
	if f.Changed("adjust-type") {
		opt.AdjustType = o.Adjust
	}
	job.Options = opt
	return job
}
