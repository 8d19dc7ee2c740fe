package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"datahouse.com/internal/app"
	"datahouse.com/internal/config"
	"datahouse.com/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RootOptions 所有子命令共用的参数
type RootOptions struct {
	LogLevel string
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   config.ServiceName,
		Short: "Market data recorder",
		Long: `Pulls calendars, stock lists and k-line bars from upstream providers
and writes them incrementally into per-region stores.

Configuration is read from ./config/recorder.yaml; any key can be
overridden by RECORDER_* environment variables.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override log.level (debug|info|warn|error)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewScheduleCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	return cmd
}

// Execute main 的唯一入口，返回进程退出码
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

// signalContext SIGINT/SIGTERM 时取消
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// loadConfig 读配置并初始化日志
func loadConfig(opts *RootOptions) (*config.Cfg, *viper.Viper, error) {
	cfg, v, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.Log.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger.InitWithFile(cfg.Name, level, cfg.Log.File)
	return cfg, v, nil
}

// bootstrap 配置 + 日志 + 所有依赖
func bootstrap(ctx context.Context, opts *RootOptions) (*app.App, *viper.Viper, error) {
	cfg, v, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return a, v, nil
}
