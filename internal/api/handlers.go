package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/neexbeast/aruba-countdown/internal/countdown"
	"github.com/neexbeast/aruba-countdown/internal/insight"
	"github.com/neexbeast/aruba-countdown/internal/offline"
	"github.com/neexbeast/aruba-countdown/internal/storage"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	maxCalendarOffset   = 120
)

// ShareSettings are the static parts of the share message.
type ShareSettings struct {
	Title       string
	Destination string
	URL         string
}

// Deps are the collaborators of the handlers. History, Sharer and Assets may be nil.
type Deps struct {
	Session   SessionView
	Checklist ChecklistStore
	History   FetchHistory
	Sharer    Sharer
	Assets    AssetServer
	Share     ShareSettings
	// Now defaults to time.Now.
	Now func() time.Time
}

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	deps Deps
	log  *slog.Logger
}

// NewHandlers constructs Handlers.
func NewHandlers(deps Deps, log *slog.Logger) *Handlers {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Handlers{deps: deps, log: log}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type countdownResponse struct {
	Target time.Time `json:"target"`
	countdown.State
	Expired bool `json:"expired"`
}

// GetCountdown handles GET /api/v1/countdown.
func (h *Handlers) GetCountdown(w http.ResponseWriter, r *http.Request) {
	state, expired := h.deps.Session.Countdown()
	writeJSON(w, http.StatusOK, countdownResponse{
		Target:  h.deps.Session.Target(),
		State:   state,
		Expired: expired,
	})
}

type calendarResponse struct {
	countdown.Month
	Weekdays [7]string `json:"weekdays"`
}

// GetCalendar handles GET /api/v1/calendar?offset=N.
// offset counts months from the current one.
func (h *Handlers) GetCalendar(w http.ResponseWriter, r *http.Request) {
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < -maxCalendarOffset || n > maxCalendarOffset {
			writeError(w, http.StatusBadRequest, "offset must be an integer between -120 and 120")
			return
		}
		offset = n
	}

	target := h.deps.Session.Target()
	today := h.deps.Now().In(target.Location())
	year, month := countdown.MonthOffset(today, offset)

	writeJSON(w, http.StatusOK, calendarResponse{
		Month:    countdown.BuildMonth(year, month, target, today),
		Weekdays: countdown.WeekdayLabels,
	})
}

type insightsResponse struct {
	Status     insight.Status  `json:"status"`
	Missing    []insight.Group `json:"missing"`
	Highlights []string        `json:"highlights"`
	Bundle     insight.Bundle  `json:"bundle"`
}

// GetInsights handles GET /api/v1/insights.
// Returns 202 until the one-shot fetch has resolved.
func (h *Handlers) GetInsights(w http.ResponseWriter, r *http.Request) {
	out, ready := h.deps.Session.Insights()
	if !ready {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "loading"})
		return
	}

	missing := out.Missing
	if missing == nil {
		missing = []insight.Group{}
	}
	writeJSON(w, http.StatusOK, insightsResponse{
		Status:     out.Status,
		Missing:    missing,
		Highlights: out.Bundle.Highlights(),
		Bundle:     out.Bundle,
	})
}

// GetInsightHistory handles GET /api/v1/insights/history?limit=N.
func (h *Handlers) GetInsightHistory(w http.ResponseWriter, r *http.Request) {
	if h.deps.History == nil {
		writeJSON(w, http.StatusOK, []storage.FetchRecord{})
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 100")
			return
		}
		limit = n
	}

	records, err := h.deps.History.ListFetches(r.Context(), limit)
	if err != nil {
		h.log.Error("listing insight fetches failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if records == nil {
		records = []storage.FetchRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// GetChecklist handles GET /api/v1/checklist.
func (h *Handlers) GetChecklist(w http.ResponseWriter, r *http.Request) {
	items, err := h.deps.Checklist.ListChecklist(r.Context())
	if err != nil {
		h.log.Error("listing checklist failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if items == nil {
		items = []storage.ChecklistItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

type checklistUpdate struct {
	Done *bool `json:"done"`
}

// SetChecklistItem handles PUT /api/v1/checklist/{id}.
func (h *Handlers) SetChecklistItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body checklistUpdate
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&body); err != nil || body.Done == nil {
		writeError(w, http.StatusBadRequest, `body must be {"done": true|false}`)
		return
	}

	item, err := h.deps.Checklist.SetChecklistItem(r.Context(), id, *body.Done)
	switch {
	case errors.Is(err, storage.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "checklist item not found")
		return
	case errors.Is(err, storage.ErrReadOnly):
		writeError(w, http.StatusConflict, "checklist is read-only")
		return
	case err != nil:
		h.log.Error("updating checklist item failed", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, item)
}

type shareResponse struct {
	Shared  bool                   `json:"shared"`
	Message countdown.ShareMessage `json:"message"`
}

// Share handles POST /api/v1/share.
// A missing or failing share target is not an error for the caller.
func (h *Handlers) Share(w http.ResponseWriter, r *http.Request) {
	state, _ := h.deps.Session.Countdown()
	s := h.deps.Share
	url := s.URL
	if url == "" {
		url = pageURL(r)
	}
	msg := countdown.NewShareMessage(s.Title, s.Destination, url, state)

	shared := false
	if h.deps.Sharer != nil {
		ok, err := h.deps.Sharer.Share(msg)
		if err != nil {
			h.log.Warn("share failed", "err", err)
		}
		shared = ok && err == nil
	}

	writeJSON(w, http.StatusOK, shareResponse{Shared: shared, Message: msg})
}

// GetOfflineAsset handles GET /offline/{asset}.
func (h *Handlers) GetOfflineAsset(w http.ResponseWriter, r *http.Request) {
	if h.deps.Assets == nil {
		writeError(w, http.StatusNotFound, "offline assets disabled")
		return
	}

	name := chi.URLParam(r, "asset")
	a, err := h.deps.Assets.Serve(r.Context(), name)
	switch {
	case errors.Is(err, offline.ErrUnknownAsset):
		writeError(w, http.StatusNotFound, "unknown asset")
		return
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, "asset unavailable")
		return
	}

	if a.ContentType != "" {
		w.Header().Set("Content-Type", a.ContentType)
	}
	w.Header().Set("Last-Modified", a.FetchedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Body)
}

// pageURL is the root URL the caller reached this server on.
func pageURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host + "/"
}
