package db

import (
	"context"
	"testing"
	"time"

	"hawkmon/internal/models"
)

func TestAlertEventsNewestFirstSince(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)

	for i, ev := range []models.AlertEvent{
		{ID: "a", MetricKey: "cpu", MetricType: "cpu", Transition: "raised", Value: 91, Threshold: 80, Subject: "s", Body: "b", TS: now.Add(-2 * time.Hour)},
		{ID: "b", MetricKey: "disk:/dev/sda1", MetricType: "disk", Transition: "raised", Value: 85, Threshold: 80, Subject: "s", Body: "b", TS: now.Add(-10 * time.Minute)},
		{ID: "c", MetricKey: "cpu", MetricType: "cpu", Transition: "cleared", Value: 40, Threshold: 80, Subject: "s", Body: "b", TS: now.Add(-time.Minute)},
	} {
		if err := repo.InsertAlertEvent(ctx, ev); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	got, err := repo.RecentAlertEvents(ctx, now.Add(-time.Hour), 50)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "b" {
		t.Fatalf("events = %+v", got)
	}
	if got[1].MetricKey != "disk:/dev/sda1" || got[1].Value != 85 || !got[1].TS.Equal(now.Add(-10*time.Minute)) {
		t.Fatalf("event fields = %+v", got[1])
	}
}

func TestNotificationEventsAndRetention(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)

	repo.now = func() time.Time { return now.Add(-48 * time.Hour) }
	if err := repo.InsertNotificationEvent(ctx, models.NotificationEvent{Channel: "email", Subject: "old", Status: "failed", Attempts: 3, LastErr: "dial tcp: refused"}); err != nil {
		t.Fatalf("insert old: %v", err)
	}
	if err := repo.InsertAlertEvent(ctx, models.AlertEvent{ID: "old", MetricKey: "cpu", MetricType: "cpu", Transition: "raised", TS: now.Add(-48 * time.Hour)}); err != nil {
		t.Fatalf("insert old alert: %v", err)
	}
	repo.now = func() time.Time { return now }
	sent := now
	if err := repo.InsertNotificationEvent(ctx, models.NotificationEvent{Channel: "telegram", Subject: "new", Status: "sent", Attempts: 1, SentAt: &sent}); err != nil {
		t.Fatalf("insert new: %v", err)
	}

	evs, err := repo.RecentNotificationEvents(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(evs) != 2 || evs[0].Channel != "telegram" || evs[0].SentAt == nil || evs[1].LastErr != "dial tcp: refused" {
		t.Fatalf("events = %+v", evs)
	}

	n, err := repo.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted = %d, want 2", n)
	}
	evs, _ = repo.RecentNotificationEvents(ctx, 10)
	if len(evs) != 1 || evs[0].Subject != "new" {
		t.Fatalf("after retention = %+v", evs)
	}
}

func TestTelegramSettingsRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	token, chat, err := repo.LoadTelegramSettings(ctx)
	if err != nil || token != "" || chat != "" {
		t.Fatalf("empty load = %q %q %v", token, chat, err)
	}
	if err := repo.SaveTelegramSettings(ctx, "tok1", "1"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.SaveTelegramSettings(ctx, "tok2", "2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	token, chat, err = repo.LoadTelegramSettings(ctx)
	if err != nil || token != "tok2" || chat != "2" {
		t.Fatalf("load = %q %q %v", token, chat, err)
	}
}

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	sqldb, err := Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = sqldb.Close() })
	if err := Migrate(sqldb); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return NewRepository(sqldb)
}
