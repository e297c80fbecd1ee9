package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hawkmon/internal/alerts"
	"hawkmon/internal/models"
)

type fakeStore struct {
	pingErr error
	since   time.Time
	events  []models.AlertEvent
	notifs  []models.NotificationEvent
	token   string
	chatID  string
	saveErr error
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) RecentAlertEvents(_ context.Context, since time.Time, _ int) ([]models.AlertEvent, error) {
	f.since = since
	return f.events, nil
}

func (f *fakeStore) RecentNotificationEvents(context.Context, int) ([]models.NotificationEvent, error) {
	return f.notifs, nil
}

func (f *fakeStore) SaveTelegramSettings(_ context.Context, token, chatID string) error {
	f.token, f.chatID = token, chatID
	return f.saveErr
}

type fakeStatus struct {
	st   []alerts.Status
	last time.Time
}

func (f fakeStatus) Statuses() []alerts.Status { return f.st }
func (f fakeStatus) LastPass() time.Time { return f.last }

type fakeTester map[string]error

func (f fakeTester) SendTest(context.Context, string, string) map[string]error { return f }

type fakeTelegram struct{ token, chatID string }

func (f *fakeTelegram) Update(token, chatID string) { f.token, f.chatID = token, chatID }

var testNow = time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)

func newTestServer(store *fakeStore, status fakeStatus, tester fakeTester, tg *fakeTelegram) http.Handler {
	s := NewServer(store, status, tester, tg, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return testNow }
	return s.Routes()
}

func do(h http.Handler, method, target, ctype, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if ctype != "" {
		req.Header.Set("Content-Type", ctype)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestReadyz(t *testing.T) {
	cases := []struct {
		name   string
		store  *fakeStore
		last   time.Time
		status int
	}{
		{"fresh pass", &fakeStore{}, testNow.Add(-30 * time.Second), http.StatusOK},
		{"no pass yet", &fakeStore{}, time.Time{}, http.StatusServiceUnavailable},
		{"stalled", &fakeStore{}, testNow.Add(-4 * time.Minute), http.StatusServiceUnavailable},
		{"db down", &fakeStore{pingErr: errors.New("closed")}, testNow, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestServer(tc.store, fakeStatus{last: tc.last}, nil, nil)
			if rr := do(h, http.MethodGet, "/readyz", "", ""); rr.Code != tc.status {
				t.Fatalf("status = %d, want %d", rr.Code, tc.status)
			}
		})
	}
}

func TestAlertsSnapshot(t *testing.T) {
	st := fakeStatus{
		st: []alerts.Status{
			{Key: "cpu", Type: "cpu", State: "alerting", ConsecutiveBreaches: 4, LastValue: 93},
			{Key: "memory", Type: "memory", State: "normal"},
		},
		last: testNow,
	}
	rr := do(newTestServer(&fakeStore{}, st, nil, nil), http.MethodGet, "/api/alerts", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body struct {
		Metrics  []alerts.Status `json:"metrics"`
		Alerting int             `json:"alerting"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Alerting != 1 || len(body.Metrics) != 2 || body.Metrics[0].ConsecutiveBreaches != 4 {
		t.Fatalf("body = %+v", body)
	}
}

func TestAlertHistoryRange(t *testing.T) {
	store := &fakeStore{events: []models.AlertEvent{{ID: "x", MetricKey: "cpu", Transition: "raised"}}}
	rr := do(newTestServer(store, fakeStatus{}, nil, nil), http.MethodGet, "/api/alerts/history?range=2h", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !store.since.Equal(testNow.Add(-2 * time.Hour)) {
		t.Fatalf("since = %v", store.since)
	}
	if !strings.Contains(rr.Body.String(), `"transition": "raised"`) {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestTestNotify(t *testing.T) {
	h := newTestServer(&fakeStore{}, fakeStatus{}, fakeTester{"email": nil, "telegram": errors.New("401")}, nil)
	rr := do(h, http.MethodPost, "/api/alerts/test-notify", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("partial success status = %d", rr.Code)
	}
	var out map[string]string
	_ = json.NewDecoder(rr.Body).Decode(&out)
	if out["email"] != "ok" || out["telegram"] != "401" {
		t.Fatalf("out = %+v", out)
	}

	if rr := do(newTestServer(&fakeStore{}, fakeStatus{}, fakeTester{}, nil), http.MethodPost, "/api/alerts/test-notify", "", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("no channels status = %d", rr.Code)
	}
	if rr := do(h, http.MethodGet, "/api/alerts/test-notify", "", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d", rr.Code)
	}
}

func TestSettingsTelegram(t *testing.T) {
	store := &fakeStore{}
	tg := &fakeTelegram{}
	h := newTestServer(store, fakeStatus{}, nil, tg)

	rr := do(h, http.MethodPost, "/api/settings/telegram", "application/json", `{"token":" abc ","chat_id":"99"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if store.token != "abc" || tg.token != "abc" || tg.chatID != "99" {
		t.Fatalf("store=%+v telegram=%+v", store, tg)
	}

	rr = do(h, http.MethodPost, "/api/settings/telegram", "application/x-www-form-urlencoded", "token=t2&chat_id=7")
	if rr.Code != http.StatusOK || tg.token != "t2" || tg.chatID != "7" {
		t.Fatalf("form update failed: %d %+v", rr.Code, tg)
	}

	for _, body := range []string{`{"token":"only-token"}`, `{"chat_id":"5"}`, `{"token":" ","chat_id":"5"}`} {
		rr = do(h, http.MethodPost, "/api/settings/telegram", "application/json", body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("partial body %s: status = %d, want 400", body, rr.Code)
		}
	}
	if store.token != "t2" || tg.token != "t2" || tg.chatID != "7" {
		t.Fatalf("partial body changed settings: store=%+v telegram=%+v", store, tg)
	}

	store.saveErr = errors.New("readonly")
	rr = do(h, http.MethodPost, "/api/settings/telegram", "application/json", `{"token":"t3","chat_id":"1"}`)
	if rr.Code != http.StatusInternalServerError || tg.token != "t2" {
		t.Fatalf("failed save must not update telegram: %d %+v", rr.Code, tg)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rr := do(newTestServer(&fakeStore{}, fakeStatus{}, nil, nil), http.MethodGet, "/metrics", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}
