package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestRootCommandTree(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"sysinfo", "notify-test"} {
		if c, _, err := cmd.Find([]string{name}); err != nil || c.Name() != name {
			t.Fatalf("subcommand %s missing: %v", name, err)
		}
	}
	if cmd.PersistentFlags().Lookup("config") == nil || cmd.PersistentFlags().Lookup("log-level") == nil {
		t.Fatal("persistent flags missing")
	}
}

func TestNotifyTestWithoutChannels(t *testing.T) {
	t.Setenv("HAWKMON_DATA_DIR", t.TempDir())
	t.Setenv("HAWKMON_CONFIG", "")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"notify-test", "--log-level", "error"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "no notification channel") {
		t.Fatalf("err = %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "json", "warn")
	l.Info("hidden")
	l.Warn("shown", "k", 1)
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"msg":"shown"`) {
		t.Fatalf("json logger output = %s", buf.String())
	}

	buf.Reset()
	l = newLogger(&buf, "text", "bogus")
	if !l.Enabled(context.Background(), slog.LevelInfo) || l.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("bad level should fall back to info")
	}
}
