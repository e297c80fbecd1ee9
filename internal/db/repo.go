package db

import (
	"context"
	"database/sql"
	"time"

	"hawkmon/internal/models"
)

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) DB() *sql.DB { return r.db }

func (r *Repository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *Repository) InsertAlertEvent(ctx context.Context, ev models.AlertEvent) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO alert_events
		(id,metric_key,metric_type,transition,value,threshold,subject,body,ts)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		ev.ID, ev.MetricKey, ev.MetricType, ev.Transition, ev.Value, ev.Threshold, ev.Subject, ev.Body, ev.TS.UTC())
	return err
}

// RecentAlertEvents returns transitions at or after since, newest first.
func (r *Repository) RecentAlertEvents(ctx context.Context, since time.Time, limit int) ([]models.AlertEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id,metric_key,metric_type,transition,value,threshold,subject,body,ts
		FROM alert_events WHERE ts >= ? ORDER BY ts DESC LIMIT ?`, since.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]models.AlertEvent, 0, limit)
	for rows.Next() {
		var ev models.AlertEvent
		if err := rows.Scan(&ev.ID, &ev.MetricKey, &ev.MetricType, &ev.Transition, &ev.Value, &ev.Threshold, &ev.Subject, &ev.Body, &ev.TS); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *Repository) InsertNotificationEvent(ctx context.Context, ev models.NotificationEvent) error {
	var lastErr any
	if ev.LastErr != "" {
		lastErr = ev.LastErr
	}
	var sent any
	if ev.SentAt != nil {
		sent = ev.SentAt.UTC()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO notification_events
		(channel,subject,status,attempts,last_error,created_ts,sent_ts_nullable)
		VALUES (?,?,?,?,?,?,?)`,
		ev.Channel, ev.Subject, ev.Status, ev.Attempts, lastErr, r.now().UTC(), sent)
	return err
}

func (r *Repository) RecentNotificationEvents(ctx context.Context, limit int) ([]models.NotificationEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `SELECT channel,subject,status,attempts,last_error,sent_ts_nullable
		FROM notification_events ORDER BY created_ts DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.NotificationEvent
	for rows.Next() {
		var ev models.NotificationEvent
		var lastErr sql.NullString
		var sent sql.NullTime
		if err := rows.Scan(&ev.Channel, &ev.Subject, &ev.Status, &ev.Attempts, &lastErr, &sent); err != nil {
			return nil, err
		}
		ev.LastErr = lastErr.String
		if sent.Valid {
			t := sent.Time
			ev.SentAt = &t
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	queries := []string{
		`DELETE FROM alert_events WHERE ts < ?`,
		`DELETE FROM notification_events WHERE created_ts < ?`,
	}
	var total int64
	for _, q := range queries {
		res, err := r.db.ExecContext(ctx, q, cutoff.UTC())
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	_, _ = r.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`)
	_, _ = r.db.ExecContext(ctx, `PRAGMA optimize`)
	return total, nil
}

func (r *Repository) SaveTelegramSettings(ctx context.Context, token, chatID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for k, v := range map[string]string{"telegram_token": token, "telegram_chat_id": chatID} {
		if _, err := tx.ExecContext(ctx, `INSERT INTO settings(key,value) VALUES (?,?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`, k, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadTelegramSettings returns empty strings when no override was saved.
func (r *Repository) LoadTelegramSettings(ctx context.Context) (token, chatID string, err error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key,value FROM settings WHERE key IN ('telegram_token','telegram_chat_id')`)
	if err != nil {
		return "", "", err
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return "", "", err
		}
		switch k {
		case "telegram_token":
			token = v
		case "telegram_chat_id":
			chatID = v
		}
	}
	return token, chatID, rows.Err()
}
