package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"deal_scout/models"
	"deal_scout/services"
	"deal_scout/voice"
)

const (
	TriggerAPI = "api"

	defaultRunLimit  = 20
	maxRunLimit      = 200
	defaultDealLimit = 25
	defaultDealAge   = 7 * 24 * time.Hour
	maxBodyBytes     = 64 << 10
)

// Agent answers one query end to end.
type Agent interface {
	Run(ctx context.Context, query, trigger string) (*models.AgentResponse, error)
}

// RunStore reads back recorded run history.
type RunStore interface {
	RecentRuns(ctx context.Context, limit int) ([]models.SearchRun, error)
	RunLogs(ctx context.Context, runID uuid.UUID) ([]models.RunLog, error)
	RunResults(ctx context.Context, runID uuid.UUID) ([]models.AnalyzedProperty, error)
}

// DealStore reads the cross-run deal archive.
type DealStore interface {
	TopDeals(ctx context.Context, maxAge time.Duration, limit int) ([]models.Deal, error)
	GetDealByFingerprint(ctx context.Context, fingerprint string) (*models.Deal, error)
}

// WatchlistTrigger replays the saved searches on demand.
type WatchlistTrigger interface {
	TriggerNow(ctx context.Context)
}

type Handlers struct {
	Agent     Agent
	Runs      RunStore
	Speaker   voice.Speaker
	Deals     DealStore        // optional
	Watchlist WatchlistTrigger // optional
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// PostAgent handles POST /api/agent.
func (h *Handlers) PostAgent(w http.ResponseWriter, r *http.Request) {
	var req models.AgentRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Query is required")
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeJSONError(w, http.StatusBadRequest, "Query is required")
		return
	}

	resp, err := h.Agent.Run(r.Context(), query, TriggerAPI)
	if err != nil {
		log.Printf("Agent error: %v", err)
		writeJSONError(w, http.StatusInternalServerError, agentErrorMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListRuns handles GET /api/runs?limit=N.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, defaultRunLimit)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	runs, err := h.Runs.RecentRuns(r.Context(), limit)
	if err != nil {
		log.Printf("List runs: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	if runs == nil {
		runs = []models.SearchRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// ListRunLogs handles GET /api/runs/{runID}/logs.
func (h *Handlers) ListRunLogs(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid run ID")
		return
	}

	logs, err := h.Runs.RunLogs(r.Context(), runID)
	if err != nil {
		log.Printf("Run logs %s: %v", runID, err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to load run logs")
		return
	}
	if logs == nil {
		logs = []models.RunLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

// ListRunResults handles GET /api/runs/{runID}/results.
func (h *Handlers) ListRunResults(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid run ID")
		return
	}

	props, err := h.Runs.RunResults(r.Context(), runID)
	if err != nil {
		log.Printf("Run results %s: %v", runID, err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to load run results")
		return
	}
	if props == nil {
		props = []models.AnalyzedProperty{}
	}
	writeJSON(w, http.StatusOK, props)
}

// ListDeals handles GET /api/deals?limit=N&max_age=72h.
func (h *Handlers) ListDeals(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, defaultDealLimit)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxAge := defaultDealAge
	if s := r.URL.Query().Get("max_age"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			writeJSONError(w, http.StatusBadRequest, "Invalid max_age")
			return
		}
		maxAge = d
	}

	deals, err := h.Deals.TopDeals(r.Context(), maxAge, limit)
	if err != nil {
		log.Printf("Top deals: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to list deals")
		return
	}
	if deals == nil {
		deals = []models.Deal{}
	}
	writeJSON(w, http.StatusOK, deals)
}

// GetDeal handles GET /api/deals/{fingerprint}.
func (h *Handlers) GetDeal(w http.ResponseWriter, r *http.Request) {
	deal, err := h.Deals.GetDealByFingerprint(r.Context(), chi.URLParam(r, "fingerprint"))
	if err != nil {
		log.Printf("Get deal: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to load deal")
		return
	}
	if deal == nil {
		writeJSONError(w, http.StatusNotFound, "Deal not found")
		return
	}
	writeJSON(w, http.StatusOK, deal)
}

// RunWatchlist handles POST /api/watchlist/run. The saved searches run in the
// background; the request returns immediately.
func (h *Handlers) RunWatchlist(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	go h.Watchlist.TriggerNow(ctx)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// Speak handles GET /api/speak?text=..&voice=.. and streams the audio back.
func (h *Handlers) Speak(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.URL.Query().Get("text"))
	if text == "" {
		writeJSONError(w, http.StatusBadRequest, "Text is required")
		return
	}

	audio, err := h.Speaker.Speak(r.Context(), text, r.URL.Query().Get("voice"))
	if err != nil {
		log.Printf("TTS error: %v", err)
		writeJSONError(w, http.StatusBadGateway, "Speech synthesis failed")
		return
	}
	defer audio.Close()

	w.Header().Set("Content-Type", audio.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, audio); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("TTS stream: %v", err)
	}
}

const (
	msgClassification = "Sorry, I couldn't understand that request. Please try rephrasing it."
	msgUnhandled      = "An error occurred while processing your request"
)

// agentErrorMessage is what the caller sees for a failed run. Only the
// configuration message is passed through; upstream detail stays in the log.
func agentErrorMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrConfiguration):
		return err.Error()
	case errors.Is(err, services.ErrClassification):
		return msgClassification
	default:
		return msgUnhandled
	}
}

var errInvalidLimit = errors.New("limit must be a positive integer")

func limitParam(r *http.Request, def int) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, errInvalidLimit
	}
	if n > maxRunLimit {
		n = maxRunLimit
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("encode response: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{Error: message})
}
