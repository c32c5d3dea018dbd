package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/aruba-countdown/internal/api"
	"github.com/neexbeast/aruba-countdown/internal/cache"
	"github.com/neexbeast/aruba-countdown/internal/countdown"
	"github.com/neexbeast/aruba-countdown/internal/insight"
	"github.com/neexbeast/aruba-countdown/internal/offline"
	"github.com/neexbeast/aruba-countdown/internal/storage"
)

// ---- mock implementations ----

type mockSession struct {
	target  time.Time
	state   countdown.State
	expired bool
	outcome insight.Outcome
	ready   bool
}

func (m *mockSession) Target() time.Time                  { return m.target }
func (m *mockSession) Countdown() (countdown.State, bool) { return m.state, m.expired }
func (m *mockSession) Insights() (insight.Outcome, bool)  { return m.outcome, m.ready }

type mockChecklist struct {
	listFn func(ctx context.Context) ([]storage.ChecklistItem, error)
	setFn  func(ctx context.Context, id string, done bool) (*storage.ChecklistItem, error)
}

func (m *mockChecklist) ListChecklist(ctx context.Context) ([]storage.ChecklistItem, error) {
	return m.listFn(ctx)
}
func (m *mockChecklist) SetChecklistItem(ctx context.Context, id string, done bool) (*storage.ChecklistItem, error) {
	return m.setFn(ctx, id, done)
}

type mockHistory struct {
	listFn func(ctx context.Context, limit int) ([]storage.FetchRecord, error)
}

func (m *mockHistory) ListFetches(ctx context.Context, limit int) ([]storage.FetchRecord, error) {
	return m.listFn(ctx, limit)
}

type mockSharer struct {
	got    *countdown.ShareMessage
	shared bool
	err    error
}

func (m *mockSharer) Share(msg countdown.ShareMessage) (bool, error) {
	m.got = &msg
	return m.shared, m.err
}

type mockAssets struct {
	serveFn func(ctx context.Context, name string) (*cache.Asset, error)
}

func (m *mockAssets) Serve(ctx context.Context, name string) (*cache.Asset, error) {
	return m.serveFn(ctx, name)
}

type mockPinger struct{ err error }

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

// ---- helpers ----

const testToken = "secret-token"

var (
	aruba      = time.FixedZone("AST", -4*60*60)
	targetTime = time.Date(2026, time.January, 11, 0, 0, 0, 0, aruba)
	fixedNow   = time.Date(2025, time.December, 5, 13, 44, 30, 0, aruba)
)

func liveSession() *mockSession {
	bundle := insight.Fallback()
	bundle.Tips = []string{"uno", "dos", "tres"}
	return &mockSession{
		target:  targetTime,
		state:   countdown.State{Days: 36, Hours: 10, Minutes: 15, Seconds: 30},
		outcome: insight.Outcome{Bundle: bundle, Status: insight.StatusLive},
		ready:   true,
	}
}

func emptyChecklist() *mockChecklist {
	return &mockChecklist{
		listFn: func(_ context.Context) ([]storage.ChecklistItem, error) { return nil, nil },
		setFn: func(_ context.Context, _ string, _ bool) (*storage.ChecklistItem, error) {
			return nil, storage.ErrItemNotFound
		},
	}
}

func baseDeps() api.Deps {
	return api.Deps{
		Session:   liveSession(),
		Checklist: emptyChecklist(),
		Share:     api.ShareSettings{Title: "Vacaciones Familia Rubilar", Destination: "Aruba", URL: "https://example.test"},
		Now:       func() time.Time { return fixedNow },
	}
}

func buildRouter(deps api.Deps, token string, checks api.HealthChecks) http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return api.NewRouter(api.NewHandlers(deps, log), token, checks, log)
}

func do(t *testing.T, h http.Handler, method, target, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if auth {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// ---- GET /api/v1/countdown ----

func TestGetCountdown(t *testing.T) {
	router := buildRouter(baseDeps(), "", api.HealthChecks{})
	w := do(t, router, http.MethodGet, "/api/v1/countdown", "", false)

	assert.Equal(t, http.StatusOK, w.Code)
	var got map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.EqualValues(t, 36, got["days"])
	assert.EqualValues(t, 10, got["hours"])
	assert.EqualValues(t, 15, got["minutes"])
	assert.EqualValues(t, 30, got["seconds"])
	assert.Equal(t, false, got["expired"])
	assert.Equal(t, "2026-01-11T00:00:00-04:00", got["target"])
}

func TestGetCountdown_Expired(t *testing.T) {
	deps := baseDeps()
	deps.Session = &mockSession{target: targetTime, state: countdown.State{Seconds: 1}, expired: true}
	w := do(t, buildRouter(deps, "", api.HealthChecks{}), http.MethodGet, "/api/v1/countdown", "", false)

	var got map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, true, got["expired"])
	assert.EqualValues(t, 1, got["seconds"], "the last displayed value is kept")
}

// ---- GET /api/v1/calendar ----

type calendarBody struct {
	Year     int                `json:"year"`
	Month    int                `json:"month"`
	Name     string             `json:"name"`
	Weeks    [][7]countdown.Day `json:"weeks"`
	Weekdays []string           `json:"weekdays"`
}

func TestGetCalendar_CurrentMonth(t *testing.T) {
	w := do(t, buildRouter(baseDeps(), "", api.HealthChecks{}), http.MethodGet, "/api/v1/calendar", "", false)
	require.Equal(t, http.StatusOK, w.Code)

	var got calendarBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, 2025, got.Year)
	assert.Equal(t, 12, got.Month)
	assert.Equal(t, "diciembre", got.Name)
	assert.Equal(t, []string{"D", "L", "M", "X", "J", "V", "S"}, got.Weekdays)

	var today []string
	for _, week := range got.Weeks {
		for _, d := range week {
			if d.IsToday {
				today = append(today, d.Date)
			}
		}
	}
	assert.Equal(t, []string{"2025-12-05"}, today)
}

func TestGetCalendar_OffsetMarksTarget(t *testing.T) {
	w := do(t, buildRouter(baseDeps(), "", api.HealthChecks{}), http.MethodGet, "/api/v1/calendar?offset=1", "", false)
	require.Equal(t, http.StatusOK, w.Code)

	var got calendarBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, 2026, got.Year)
	assert.Equal(t, 1, got.Month)

	var targets []string
	for _, week := range got.Weeks {
		for _, d := range week {
			if d.IsTarget {
				targets = append(targets, d.Date)
			}
		}
	}
	assert.Equal(t, []string{"2026-01-11"}, targets)
}

func TestGetCalendar_BadOffset(t *testing.T) {
	router := buildRouter(baseDeps(), "", api.HealthChecks{})
	for _, q := range []string{"abc", "1.5", "1000"} {
		w := do(t, router, http.MethodGet, "/api/v1/calendar?offset="+q, "", false)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

// ---- GET /api/v1/insights ----

func TestGetInsights_Loading(t *testing.T) {
	deps := baseDeps()
	deps.Session = &mockSession{target: targetTime}
	w := do(t, buildRouter(deps, "", api.HealthChecks{}), http.MethodGet, "/api/v1/insights", "", false)

	assert.Equal(t, http.StatusAccepted, w.Code)
	var got map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, "loading", got["status"])
}

func TestGetInsights_Live(t *testing.T) {
	w := do(t, buildRouter(baseDeps(), "", api.HealthChecks{}), http.MethodGet, "/api/v1/insights", "", false)
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Status     string         `json:"status"`
		Missing    []string       `json:"missing"`
		Highlights []string       `json:"highlights"`
		Bundle     insight.Bundle `json:"bundle"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, "live", got.Status)
	assert.NotNil(t, got.Missing)
	assert.Empty(t, got.Missing)
	assert.Equal(t, []string{"uno", "dos"}, got.Highlights)
	assert.Len(t, got.Bundle.Tips, 3)
	assert.Equal(t, "Soleado", got.Bundle.Weather.Condition)
}

func TestGetInsights_Partial(t *testing.T) {
	deps := baseDeps()
	deps.Session = &mockSession{
		target: targetTime,
		ready:  true,
		outcome: insight.Outcome{
			Bundle:  insight.Fallback(),
			Status:  insight.StatusPartial,
			Missing: []insight.Group{insight.GroupTips},
		},
	}
	w := do(t, buildRouter(deps, "", api.HealthChecks{}), http.MethodGet, "/api/v1/insights", "", false)

	var got map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, "partial", got["status"])
	assert.Equal(t, []any{"tips"}, got["missing"])
}

// ---- checklist ----

func TestGetChecklist(t *testing.T) {
	deps := baseDeps()
	deps.Checklist = storage.NewStaticChecklist()
	w := do(t, buildRouter(deps, "", api.HealthChecks{}), http.MethodGet, "/api/v1/checklist", "", false)

	require.Equal(t, http.StatusOK, w.Code)
	var got []storage.ChecklistItem
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.True(t, got[0].Done)
	assert.False(t, got[1].Done)
}

func TestGetChecklist_Empty(t *testing.T) {
	w := do(t, buildRouter(baseDeps(), "", api.HealthChecks{}), http.MethodGet, "/api/v1/checklist", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestGetChecklist_Error(t *testing.T) {
	deps := baseDeps()
	deps.Checklist = &mockChecklist{
		listFn: func(_ context.Context) ([]storage.ChecklistItem, error) { return nil, fmt.Errorf("db down") },
	}
	w := do(t, buildRouter(deps, "", api.HealthChecks{}), http.MethodGet, "/api/v1/checklist", "", false)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSetChecklistItem_Success(t *testing.T) {
	var gotID string
	var gotDone bool
	deps := baseDeps()
	deps.Checklist = &mockChecklist{
		setFn: func(_ context.Context, id string, done bool) (*storage.ChecklistItem, error) {
			gotID, gotDone = id, done
			return &storage.ChecklistItem{ID: id, Label: "Trajes de baño listos", Done: done}, nil
		},
	}
	router := buildRouter(deps, testToken, api.HealthChecks{})
	w := do(t, router, http.MethodPut, "/api/v1/checklist/swimsuits", `{"done":true}`, true)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "swimsuits", gotID)
	assert.True(t, gotDone)
}

func TestSetChecklistItem_Errors(t *testing.T) {
	deps := baseDeps()
	deps.Checklist = &mockChecklist{
		setFn: func(_ context.Context, id string, _ bool) (*storage.ChecklistItem, error) {
			switch id {
			case "passports":
				return nil, storage.ErrReadOnly
			case "boom":
				return nil, fmt.Errorf("db down")
			}
			return nil, storage.ErrItemNotFound
		},
	}
	router := buildRouter(deps, testToken, api.HealthChecks{})

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"not found", "/api/v1/checklist/sunscreen", `{"done":true}`, http.StatusNotFound},
		{"read only", "/api/v1/checklist/passports", `{"done":false}`, http.StatusConflict},
		{"db error", "/api/v1/checklist/boom", `{"done":true}`, http.StatusInternalServerError},
		{"missing done", "/api/v1/checklist/passports", `{}`, http.StatusBadRequest},
		{"bad json", "/api/v1/checklist/passports", `done`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, router, http.MethodPut, tc.path, tc.body, true)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestSetChecklistItem_NotMountedWithoutToken(t *testing.T) {
	router := buildRouter(baseDeps(), "", api.HealthChecks{})
	w := do(t, router, http.MethodPut, "/api/v1/checklist/passports", `{"done":true}`, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ---- history ----

func TestGetInsightHistory(t *testing.T) {
	var gotLimit int
	id := uuid.New()
	deps := baseDeps()
	deps.History = &mockHistory{
		listFn: func(_ context.Context, limit int) ([]storage.FetchRecord, error) {
			gotLimit = limit
			return []storage.FetchRecord{{ID: id, Status: insight.StatusFallback}}, nil
		},
	}
	router := buildRouter(deps, testToken, api.HealthChecks{})

	w := do(t, router, http.MethodGet, "/api/v1/insights/history?limit=5", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, gotLimit)

	var got []storage.FetchRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)

	w = do(t, router, http.MethodGet, "/api/v1/insights/history", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 20, gotLimit)

	w = do(t, router, http.MethodGet, "/api/v1/insights/history?limit=0", "", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetInsightHistory_NoDatabase(t *testing.T) {
	router := buildRouter(baseDeps(), testToken, api.HealthChecks{})
	w := do(t, router, http.MethodGet, "/api/v1/insights/history", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestGetInsightHistory_Error(t *testing.T) {
	deps := baseDeps()
	deps.History = &mockHistory{
		listFn: func(_ context.Context, _ int) ([]storage.FetchRecord, error) { return nil, fmt.Errorf("db down") },
	}
	w := do(t, buildRouter(deps, testToken, api.HealthChecks{}), http.MethodGet, "/api/v1/insights/history", "", true)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// ---- POST /api/v1/share ----

type shareBody struct {
	Shared  bool                   `json:"shared"`
	Message countdown.ShareMessage `json:"message"`
}

func TestShare_NoSharer(t *testing.T) {
	w := do(t, buildRouter(baseDeps(), "", api.HealthChecks{}), http.MethodPost, "/api/v1/share", "", false)
	require.Equal(t, http.StatusOK, w.Code)

	var got shareBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.False(t, got.Shared)
	assert.Equal(t, "Vacaciones Familia Rubilar", got.Message.Title)
	assert.Equal(t, "¡Faltan 36 días para Aruba! 🌊🌴", got.Message.Text)
	assert.Equal(t, "https://example.test", got.Message.URL)
}

func TestShare_URLFromRequest(t *testing.T) {
	deps := baseDeps()
	deps.Share.URL = ""
	router := buildRouter(deps, "", api.HealthChecks{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/share", nil)
	req.Host = "aruba.example"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var got shareBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, "http://aruba.example/", got.Message.URL)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/share", nil)
	req.Host = "aruba.example"
	req.Header.Set("X-Forwarded-Proto", "https")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, "https://aruba.example/", got.Message.URL)
}

func TestShare_Published(t *testing.T) {
	sharer := &mockSharer{shared: true}
	deps := baseDeps()
	deps.Sharer = sharer
	w := do(t, buildRouter(deps, "", api.HealthChecks{}), http.MethodPost, "/api/v1/share", "", false)

	var got shareBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.True(t, got.Shared)
	require.NotNil(t, sharer.got)
	assert.Equal(t, got.Message, *sharer.got)
}

func TestShare_FailureIsSilent(t *testing.T) {
	deps := baseDeps()
	deps.Sharer = &mockSharer{shared: true, err: fmt.Errorf("broker gone")}
	w := do(t, buildRouter(deps, "", api.HealthChecks{}), http.MethodPost, "/api/v1/share", "", false)

	assert.Equal(t, http.StatusOK, w.Code)
	var got shareBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.False(t, got.Shared)
}

// ---- GET /offline/{asset} ----

func TestGetOfflineAsset(t *testing.T) {
	fetched := time.Date(2025, time.December, 1, 12, 0, 0, 0, time.UTC)
	deps := baseDeps()
	deps.Assets = &mockAssets{
		serveFn: func(_ context.Context, name string) (*cache.Asset, error) {
			switch name {
			case "fonts":
				return &cache.Asset{ContentType: "text/css", Body: []byte("body{}"), FetchedAt: fetched}, nil
			case "icon":
				return nil, fmt.Errorf("%w: icon", offline.ErrUnavailable)
			}
			return nil, offline.ErrUnknownAsset
		},
	}
	router := buildRouter(deps, "", api.HealthChecks{})

	w := do(t, router, http.MethodGet, "/offline/fonts", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/css", w.Header().Get("Content-Type"))
	assert.Equal(t, "body{}", w.Body.String())
	assert.Equal(t, fetched.Format(http.TimeFormat), w.Header().Get("Last-Modified"))

	w = do(t, router, http.MethodGet, "/offline/icon", "", false)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(t, router, http.MethodGet, "/offline/nope", "", false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetOfflineAsset_Disabled(t *testing.T) {
	w := do(t, buildRouter(baseDeps(), "", api.HealthChecks{}), http.MethodGet, "/offline/fonts", "", false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ---- GET /api/v1/health ----

func TestHealth_AllDisabled(t *testing.T) {
	w := do(t, buildRouter(baseDeps(), "", api.HealthChecks{}), http.MethodGet, "/api/v1/health", "", false)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "disabled", body["db"])
	assert.Equal(t, "disabled", body["redis"])
	assert.Equal(t, "disabled", body["mqtt"])
}

func TestHealth_OK(t *testing.T) {
	checks := api.HealthChecks{DB: &mockPinger{}, Redis: &mockPinger{}, MQTT: &mockPinger{}}
	w := do(t, buildRouter(baseDeps(), "", checks), http.MethodGet, "/api/v1/health", "", false)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ok", body["db"])
	assert.Equal(t, "ok", body["redis"])
	assert.Equal(t, "ok", body["mqtt"])
}

func TestHealth_DependencyDown(t *testing.T) {
	tests := []struct {
		name   string
		checks api.HealthChecks
		key    string
	}{
		{"db", api.HealthChecks{DB: &mockPinger{err: fmt.Errorf("db unreachable")}, Redis: &mockPinger{}}, "db"},
		{"redis", api.HealthChecks{Redis: &mockPinger{err: fmt.Errorf("redis unreachable")}}, "redis"},
		{"mqtt", api.HealthChecks{MQTT: &mockPinger{err: fmt.Errorf("not connected")}}, "mqtt"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, buildRouter(baseDeps(), "", tc.checks), http.MethodGet, "/api/v1/health", "", false)

			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
			var body map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, "degraded", body["status"])
			assert.Equal(t, "error", body[tc.key])
		})
	}
}

// ---- Auth middleware ----

func TestBearerAuth(t *testing.T) {
	router := buildRouter(baseDeps(), testToken, api.HealthChecks{})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong token", "Bearer wrong-token", http.StatusUnauthorized},
		{"missing bearer prefix", testToken, http.StatusUnauthorized},
		{"valid", "Bearer " + testToken, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/insights/history", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestBearerAuth_PublicRoutesNoAuth(t *testing.T) {
	router := buildRouter(baseDeps(), testToken, api.HealthChecks{})
	for _, path := range []string{"/api/v1/health", "/api/v1/countdown", "/api/v1/checklist"} {
		w := do(t, router, http.MethodGet, path, "", false)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
