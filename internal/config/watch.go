package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads path whenever it is written or replaced and hands the new
// Config to onChange. The parent directory is watched so saves that write a
// temp file and rename it over path are seen. A file that fails to load is
// logged and the previous config stays active. It runs until ctx is cancelled.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(Config)) error {
	path = filepath.Clean(path)
	if _, err := os.Stat(path); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	logger.Info("watching config", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				logger.Error("config reload failed, keeping previous", "path", path, "err", err)
				continue
			}
			logger.Info("config reloaded", "path", path)
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("config watcher", "err", err)
		}
	}
}

// ApplyReload returns running with the thresholds and enable flags of next.
// Interval and required cycles only take effect on restart, because changing
// them mid-streak would break the hysteresis counters; the names of such
// ignored settings are returned.
func ApplyReload(running, next Config) (Config, []string) {
	var ignored []string
	if next.Interval != running.Interval {
		ignored = append(ignored, "interval")
	}
	if next.Cycles != running.Cycles {
		ignored = append(ignored, "required_cycles")
	}
	out := running
	out.Metrics = next.Metrics
	pairs := []struct {
		name     string
		dst      *MetricConfig
		previous MetricConfig
	}{
		{"metrics.cpu", &out.Metrics.CPU, running.Metrics.CPU},
		{"metrics.memory", &out.Metrics.Memory, running.Metrics.Memory},
		{"metrics.disk", &out.Metrics.Disk, running.Metrics.Disk},
		{"metrics.network", &out.Metrics.Network, running.Metrics.Network},
		{"metrics.container_cpu", &out.Metrics.ContainerCPU, running.Metrics.ContainerCPU},
		{"metrics.container_memory", &out.Metrics.ContainerMemory, running.Metrics.ContainerMemory},
	}
	for _, p := range pairs {
		if p.dst.Cycles != p.previous.Cycles {
			ignored = append(ignored, p.name+".required_cycles")
			p.dst.Cycles = p.previous.Cycles
		}
	}
	return out, ignored
}
