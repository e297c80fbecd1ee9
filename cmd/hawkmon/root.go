package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"hawkmon/internal/app"
	"hawkmon/internal/config"
)

type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var flags rootFlags
	cmd := &cobra.Command{
		Use:          "hawkmon",
		Short:        "Host resource monitor with threshold alerts",
		Long:         `hawkmon samples CPU, memory, disk, network and container usage on a fixed interval and notifies over email, Telegram or webhook when a metric stays above its threshold.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(&flags)
		},
	}

	fs := cmd.PersistentFlags()
	fs.StringVarP(&flags.configPath, "config", "c", "", "path to YAML config (default $HAWKMON_CONFIG)")
	fs.StringVar(&flags.logLevel, "log-level", "", "override log level: debug, info, warn, error")

	cmd.AddCommand(sysinfoCmd(&flags))
	cmd.AddCommand(notifyTestCmd(&flags))
	return cmd
}

func loadConfig(flags *rootFlags) (config.Config, string, error) {
	path := flags.configPath
	if path == "" {
		path = os.Getenv("HAWKMON_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, "", err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	return cfg, path, nil
}

func newLogger(w io.Writer, format, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func runMonitor(flags *rootFlags) error {
	cfg, path, err := loadConfig(flags)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	logger.Info("starting hawkmon", "addr", cfg.Addr, "db", cfg.DBPath, "interval", cfg.Interval, "required_cycles", cfg.Cycles)

	a, err := app.New(cfg, path, logger)
	if err != nil {
		logger.Error("init failed", "err", err)
		return fmt.Errorf("init: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := a.Run(ctx); err != nil {
		logger.Error("shutdown with error", "err", err)
		return err
	}
	return nil
}
