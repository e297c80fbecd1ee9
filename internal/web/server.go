package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hawkmon/internal/alerts"
	"hawkmon/internal/models"
)

type Store interface {
	Ping(ctx context.Context) error
	RecentAlertEvents(ctx context.Context, since time.Time, limit int) ([]models.AlertEvent, error)
	RecentNotificationEvents(ctx context.Context, limit int) ([]models.NotificationEvent, error)
	SaveTelegramSettings(ctx context.Context, token, chatID string) error
}

// StatusSource is the engine's published, read-only view.
type StatusSource interface {
	Statuses() []alerts.Status
	LastPass() time.Time
}

type Tester interface {
	SendTest(ctx context.Context, subject, body string) map[string]error
}

type TelegramUpdater interface {
	Update(token, chatID string)
}

type Server struct {
	store    Store
	status   StatusSource
	notify   Tester
	telegram TelegramUpdater
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time
}

// NewServer wires the HTTP surface. interval is the pass interval; /readyz
// fails once the last pass is older than three of them.
func NewServer(store Store, status StatusSource, notify Tester, telegram TelegramUpdater, interval time.Duration, logger *slog.Logger) *Server {
	return &Server{
		store:    store,
		status:   status,
		notify:   notify,
		telegram: telegram,
		interval: interval,
		log:      logger,
		now:      time.Now,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/alerts", s.handleAlerts)
	mux.HandleFunc("/api/alerts/history", s.handleAlertHistory)
	mux.HandleFunc("/api/alerts/test-notify", s.handleTestNotify)
	mux.HandleFunc("/api/notifications", s.handleNotifications)
	mux.HandleFunc("/api/settings/telegram", s.handleSettingsTelegram)
	return logMiddleware(mux, s.log)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	st := s.status.Statuses()
	alerting := 0
	for _, x := range st {
		if x.State == alerts.StateAlerting.String() {
			alerting++
		}
	}
	resp := map[string]any{"metrics": st, "alerting": alerting}
	if lp := s.status.LastPass(); !lp.IsZero() {
		resp["last_pass"] = lp.UTC()
	}
	writeJSON(w, resp)
}

func (s *Server) handleAlertHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	since := s.now().Add(-parseRange(r.URL.Query().Get("range"))).UTC()
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := s.store.RecentAlertEvents(r.Context(), since, limit)
	if err != nil {
		s.log.Error("query alert history", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]map[string]any, 0, len(events))
	for _, ev := range events {
		out = append(out, map[string]any{
			"id": ev.ID, "key": ev.MetricKey, "type": ev.MetricType, "transition": ev.Transition,
			"value": ev.Value, "threshold": ev.Threshold, "subject": ev.Subject, "body": ev.Body, "ts": ev.TS,
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := s.store.RecentNotificationEvents(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]map[string]any, 0, len(events))
	for _, ev := range events {
		item := map[string]any{"channel": ev.Channel, "subject": ev.Subject, "status": ev.Status, "attempts": ev.Attempts}
		if ev.LastErr != "" {
			item["last_error"] = ev.LastErr
		}
		if ev.SentAt != nil {
			item["sent_at"] = ev.SentAt
		}
		out = append(out, item)
	}
	writeJSON(w, out)
}

func (s *Server) handleTestNotify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	res := s.notify.SendTest(r.Context(), "[HawkSysmon] Test notification", "HawkSysmon test alert: notification channel is working")
	if len(res) == 0 {
		http.Error(w, "no notification channel configured", http.StatusBadRequest)
		return
	}
	out := map[string]string{}
	failed := 0
	for ch, err := range res {
		if err != nil {
			out[ch] = err.Error()
			failed++
			continue
		}
		out[ch] = "ok"
	}
	if failed == len(res) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(out)
		return
	}
	writeJSON(w, out)
}

func (s *Server) handleSettingsTelegram(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var in struct {
		Token  string `json:"token"`
		ChatID string `json:"chat_id"`
	}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&in); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		in.Token, in.ChatID = r.FormValue("token"), r.FormValue("chat_id")
	}
	token := strings.TrimSpace(in.Token)
	chatID := strings.TrimSpace(in.ChatID)
	if token == "" || chatID == "" {
		http.Error(w, "token and chat_id are both required", http.StatusBadRequest)
		return
	}
	if err := s.store.SaveTelegramSettings(r.Context(), token, chatID); err != nil {
		s.log.Error("save telegram settings", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.telegram.Update(token, chatID)
	s.log.Info("telegram settings updated")
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		http.Error(w, "db not ready", http.StatusServiceUnavailable)
		return
	}
	lp := s.status.LastPass()
	if lp.IsZero() {
		http.Error(w, "no pass completed", http.StatusServiceUnavailable)
		return
	}
	if s.interval > 0 && s.now().Sub(lp) > 3*s.interval {
		http.Error(w, "evaluation stalled", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func parseRange(v string) time.Duration {
	if v == "" {
		return 24 * time.Hour
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}
