package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"testing"
	"time"
)

func TestWatchReloadsOnWrite(t *testing.T) {
	p := writeConfig(t, "metrics:\n  cpu:\n    threshold: 80\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Config, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, p, slog.New(slog.NewTextHandler(io.Discard, nil)), func(c Config) { got <- c })
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case c := <-got:
			if c.Metrics.CPU.Threshold != 42 {
				continue
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("watch returned %v", err)
			}
			return
		case <-tick.C:
			if err := os.WriteFile(p, []byte("metrics:\n  cpu:\n    threshold: 42\n"), 0o600); err != nil {
				t.Fatalf("rewrite config: %v", err)
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

func TestWatchReloadsOnAtomicRename(t *testing.T) {
	p := writeConfig(t, "metrics:\n  cpu:\n    threshold: 80\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Config, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, p, slog.New(slog.NewTextHandler(io.Discard, nil)), func(c Config) { got <- c })
	}()

	save := func(threshold string) {
		tmp := p + ".tmp"
		if err := os.WriteFile(tmp, []byte("metrics:\n  cpu:\n    threshold: "+threshold+"\n"), 0o600); err != nil {
			t.Fatalf("write temp: %v", err)
		}
		if err := os.Rename(tmp, p); err != nil {
			t.Fatalf("rename: %v", err)
		}
	}

	// two saves in a row: the second proves the watch survives the replaced inode
	for _, want := range []float64{42, 55} {
		deadline := time.After(5 * time.Second)
		tick := time.NewTicker(50 * time.Millisecond)
	wait:
		for {
			select {
			case c := <-got:
				if c.Metrics.CPU.Threshold == want {
					break wait
				}
			case <-tick.C:
				save(strconv.FormatFloat(want, 'f', -1, 64))
			case <-deadline:
				tick.Stop()
				t.Fatalf("no reload observed for threshold %v", want)
			}
		}
		tick.Stop()
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watch returned %v", err)
	}
}

func TestWatchMissingFile(t *testing.T) {
	err := Watch(context.Background(), t.TempDir()+"/missing.yaml", slog.New(slog.NewTextHandler(io.Discard, nil)), func(Config) {})
	if err == nil {
		t.Fatal("expected error watching a missing file")
	}
}
