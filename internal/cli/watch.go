package cli

import (
	"fmt"

	"datahouse.com/internal/progress"
	"datahouse.com/pkg/xredis"
	"github.com/spf13/cobra"
)

func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [topic]",
		Short: "Print progress events as they are published",
		Long: `Subscribe to the progress topic (progress.topic by default) and print
one line per event until interrupted. Needs a broker that supports
subscribing: mem, nats or redis.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			cfg, _, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			topic := cfg.Progress.Topic
			if len(args) == 1 {
				topic = args[0]
			}

			rdb, err := xredis.NewRedis(&cfg.Redis)
			if err != nil {
				return err
			}
			if rdb != nil {
				defer rdb.Close()
			}
			b, err := progress.NewBroker(cfg.Progress, rdb)
			if err != nil {
				return err
			}
			if b == nil {
				return fmt.Errorf("progress driver %q has nothing to watch", cfg.Progress.Driver)
			}
			defer b.Close()
			sub, ok := b.(progress.Subscriber)
			if !ok {
				return fmt.Errorf("progress driver %q is publish-only", cfg.Progress.Driver)
			}

			msgs, err := sub.Subscribe(ctx, []string{topic})
			if err != nil {
				return err
			}
			return printEvents(cmd, msgs)
		},
	}
	return cmd
}

// printEvents 直到 channel 关闭（ctx 取消）
func printEvents(cmd *cobra.Command, msgs <-chan progress.Message) error {
	out := cmd.OutOrStdout()
	for m := range msgs {
		ev, err := progress.Decode(m.Payload)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "bad event on %s: %v\n", m.Topic, err)
			continue
		}
		pct := 0.0
		if ev.TotalCount > 0 {
			pct = float64(ev.ProcessedCount) * 100 / float64(ev.TotalCount)
		}
		fmt.Fprintf(out, "%s %s %s %d/%d %.1f%%\n", m.Topic, ev.TopicKey, ev.Recorder, ev.ProcessedCount, ev.TotalCount, pct)
	}
	return nil
}
