package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hawkmon/internal/alerts"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "hawkmon.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Interval != 60*time.Second || cfg.Cycles != 3 {
		t.Fatalf("interval/cycles = %v/%d", cfg.Interval, cfg.Cycles)
	}
	if cfg.DBPath != "./data/hawkmon.db" {
		t.Fatalf("db path = %q", cfg.DBPath)
	}
	th := cfg.Thresholds()
	if th[alerts.TypeCPU] != (alerts.MetricConfig{Threshold: 80, RequiredCycles: 3, Enabled: true}) {
		t.Fatalf("cpu thresholds = %+v", th[alerts.TypeCPU])
	}
	if th[alerts.TypeNetwork].Threshold != 1000 {
		t.Fatalf("network threshold = %v", th[alerts.TypeNetwork].Threshold)
	}
	if th[alerts.TypeContainerCPU].Enabled || cfg.ContainersEnabled() {
		t.Fatal("container alerts should be off by default")
	}
}

func TestLoadYAML(t *testing.T) {
	p := writeConfig(t, `
interval: 15s
required_cycles: 4
metrics:
  cpu:
    threshold: 95
    required_cycles: 2
  disk:
    enabled: false
  container_memory:
    enabled: true
smtp:
  host: mail.example.com
  to: [ops@example.com, oncall@example.com]
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	th := cfg.Thresholds()
	if th[alerts.TypeCPU] != (alerts.MetricConfig{Threshold: 95, RequiredCycles: 2, Enabled: true}) {
		t.Fatalf("cpu = %+v", th[alerts.TypeCPU])
	}
	if th[alerts.TypeMemory].RequiredCycles != 4 {
		t.Fatalf("memory cycles = %d, want global 4", th[alerts.TypeMemory].RequiredCycles)
	}
	if th[alerts.TypeDisk].Enabled {
		t.Fatal("disk should be disabled")
	}
	if !th[alerts.TypeContainerMemory].Enabled || th[alerts.TypeContainerMemory].Threshold != 90 {
		t.Fatalf("container memory = %+v", th[alerts.TypeContainerMemory])
	}
	if cfg.Interval != 15*time.Second {
		t.Fatalf("interval = %v", cfg.Interval)
	}
	if len(cfg.SMTP.To) != 2 || cfg.SMTP.Port != 465 {
		t.Fatalf("smtp = %+v", cfg.SMTP)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HAWKMON_INTERVAL", "5000")
	t.Setenv("HAWKMON_CYCLES", "5")
	t.Setenv("HAWKMON_MEM_THRESHOLD", "70.5")
	t.Setenv("HAWKMON_CONTAINER_ALERTS", "yes")
	t.Setenv("SMTP_TO", "a@example.com, b@example.com")
	cfg, err := Load(writeConfig(t, "interval: 1m\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Interval != 5*time.Second {
		t.Fatalf("interval = %v, want 5s", cfg.Interval)
	}
	if cfg.Cycles != 5 || cfg.Metrics.Memory.Threshold != 70.5 {
		t.Fatalf("cycles/mem = %d/%v", cfg.Cycles, cfg.Metrics.Memory.Threshold)
	}
	if !cfg.ContainersEnabled() {
		t.Fatal("container alerts not enabled from env")
	}
	if len(cfg.SMTP.To) != 2 || cfg.SMTP.To[1] != "b@example.com" {
		t.Fatalf("smtp to = %v", cfg.SMTP.To)
	}
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string]string{
		"zero cycles":       "required_cycles: 0\n",
		"negative type":     "metrics:\n  cpu:\n    required_cycles: -1\n",
		"negative interval": "interval: -1s\n",
		"bad webhook":       "webhook:\n  type: teams\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestApplyReload(t *testing.T) {
	running := Default()
	next := Default()
	next.Interval = time.Second
	next.Cycles = 9
	next.Metrics.CPU.Threshold = 50
	next.Metrics.CPU.Cycles = 7
	next.Metrics.Disk.Enabled = false

	got, ignored := ApplyReload(running, next)
	if got.Interval != running.Interval || got.Cycles != running.Cycles {
		t.Fatalf("interval/cycles changed on reload: %v/%d", got.Interval, got.Cycles)
	}
	if got.Metrics.CPU.Threshold != 50 || got.Metrics.CPU.Cycles != 0 {
		t.Fatalf("cpu = %+v", got.Metrics.CPU)
	}
	if got.Metrics.Disk.Enabled {
		t.Fatal("disk enable flag not applied")
	}
	want := []string{"interval", "required_cycles", "metrics.cpu.required_cycles"}
	if len(ignored) != len(want) {
		t.Fatalf("ignored = %v, want %v", ignored, want)
	}
	for i := range want {
		if ignored[i] != want[i] {
			t.Fatalf("ignored = %v, want %v", ignored, want)
		}
	}
}
