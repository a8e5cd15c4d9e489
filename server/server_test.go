package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deal_scout/models"
	"deal_scout/services"
	"deal_scout/voice"
)

type fakeAgent struct {
	resp    *models.AgentResponse
	err     error
	query   string
	trigger string
}

func (a *fakeAgent) Run(ctx context.Context, query, trigger string) (*models.AgentResponse, error) {
	a.query, a.trigger = query, trigger
	return a.resp, a.err
}

type fakeRuns struct {
	runs    []models.SearchRun
	logs    []models.RunLog
	results []models.AnalyzedProperty
	limit   int
	err     error
}

func (s *fakeRuns) RecentRuns(ctx context.Context, limit int) ([]models.SearchRun, error) {
	s.limit = limit
	return s.runs, s.err
}

func (s *fakeRuns) RunLogs(ctx context.Context, runID uuid.UUID) ([]models.RunLog, error) {
	return s.logs, s.err
}

func (s *fakeRuns) RunResults(ctx context.Context, runID uuid.UUID) ([]models.AnalyzedProperty, error) {
	return s.results, s.err
}

type fakeDeals struct {
	maxAge time.Duration
	limit  int
}

func (d *fakeDeals) TopDeals(ctx context.Context, maxAge time.Duration, limit int) ([]models.Deal, error) {
	d.maxAge, d.limit = maxAge, limit
	return []models.Deal{{Title: "123 Main St", Profit: 52500}}, nil
}

func (d *fakeDeals) GetDealByFingerprint(ctx context.Context, fingerprint string) (*models.Deal, error) {
	if fingerprint != "abc123" {
		return nil, nil
	}
	return &models.Deal{Fingerprint: fingerprint, Title: "123 Main St"}, nil
}

type fakeWatchlist struct {
	called chan struct{}
}

func (f *fakeWatchlist) TriggerNow(ctx context.Context) {
	close(f.called)
}

type fakeSpeaker struct {
	text, voice string
	err         error
}

func (s *fakeSpeaker) Speak(ctx context.Context, text, v string) (*voice.Audio, error) {
	s.text, s.voice = text, v
	if s.err != nil {
		return nil, s.err
	}
	return &voice.Audio{ReadCloser: io.NopCloser(strings.NewReader("ID3audio")), ContentType: "audio/wav"}, nil
}

func newTestHandlers() (*Handlers, *fakeAgent, *fakeRuns, *fakeSpeaker) {
	agent := &fakeAgent{}
	runs := &fakeRuns{}
	speaker := &fakeSpeaker{}
	return &Handlers{Agent: agent, Runs: runs, Speaker: speaker}, agent, runs, speaker
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var e models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e.Error
}

func TestPostAgent_MissingQuery(t *testing.T) {
	h, agent, _, _ := newTestHandlers()
	router := NewRouter(h)

	for _, body := range []string{`{}`, `{"query":"   "}`, `not json`} {
		rec := do(t, router, http.MethodPost, "/api/agent", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "Query is required", decodeError(t, rec))
	}
	assert.Empty(t, agent.query, "agent must not run without a query")
}

func TestPostAgent_Search(t *testing.T) {
	h, agent, _, _ := newTestHandlers()
	agent.resp = &models.AgentResponse{
		Type:     models.CategorySearch,
		Response: "Found one deal.",
		Properties: []models.AnalyzedProperty{
			{ListingCandidate: models.ListingCandidate{Title: "123 Main St", PriceText: "350000"}, Profit: 52500},
		},
		Status: models.StatusCompleted,
		Query:  "houses in Austin",
	}

	rec := do(t, NewRouter(h), http.MethodPost, "/api/agent", `{"query":"  houses in Austin "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "houses in Austin", agent.query)
	assert.Equal(t, TriggerAPI, agent.trigger)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "search", body["type"])
	assert.Equal(t, "houses in Austin", body["query"])
	props, ok := body["properties"].([]any)
	require.True(t, ok)
	assert.Len(t, props, 1)
}

func TestPostAgent_ConversationOmitsProperties(t *testing.T) {
	h, agent, _, _ := newTestHandlers()
	agent.resp = &models.AgentResponse{Type: models.CategoryConversation, Response: "Hello!", Status: models.StatusCompleted}

	rec := do(t, NewRouter(h), http.MethodPost, "/api/agent", `{"query":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"type":"conversation","response":"Hello!","status":"completed"}`, rec.Body.String())
}

func TestPostAgent_Errors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"configuration", fmt.Errorf("%w: set LLM_API_KEY", services.ErrConfiguration), "configuration error: set LLM_API_KEY"},
		{"classification", fmt.Errorf("%w: chat completion: 401 invalid key sk-abc", services.ErrClassification), msgClassification},
		{"unhandled", errors.New("summary: dial tcp 10.0.0.7:443: connection refused"), msgUnhandled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, agent, _, _ := newTestHandlers()
			agent.err = tc.err

			rec := do(t, NewRouter(h), http.MethodPost, "/api/agent", `{"query":"houses"}`)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, tc.want, decodeError(t, rec))
			assert.NotContains(t, rec.Body.String(), "sk-abc")
			assert.NotContains(t, rec.Body.String(), "10.0.0.7")
		})
	}
}

func TestListRuns(t *testing.T) {
	h, _, runs, _ := newTestHandlers()
	router := NewRouter(h)

	rec := do(t, router, http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultRunLimit, runs.limit)
	assert.JSONEq(t, `[]`, rec.Body.String())

	runs.runs = []models.SearchRun{*models.NewSearchRun("condos", "api")}
	rec = do(t, router, http.MethodGet, "/api/runs?limit=5000", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxRunLimit, runs.limit)

	rec = do(t, router, http.MethodGet, "/api/runs?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	runs.err = errors.New("disk gone")
	rec = do(t, router, http.MethodGet, "/api/runs", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListRunLogs(t *testing.T) {
	h, _, runs, _ := newTestHandlers()
	runs.logs = []models.RunLog{{Stage: "discovery", Message: "search failed"}}
	router := NewRouter(h)

	rec := do(t, router, http.MethodGet, "/api/runs/not-a-uuid/logs", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/runs/"+uuid.NewString()+"/logs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "search failed")

	rec = do(t, router, http.MethodGet, "/api/runs/"+uuid.NewString()+"/results", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListDeals_OnlyMountedWithArchive(t *testing.T) {
	h, _, _, _ := newTestHandlers()
	rec := do(t, NewRouter(h), http.MethodGet, "/api/deals", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	deals := &fakeDeals{}
	h.Deals = deals
	router := NewRouter(h)

	rec = do(t, router, http.MethodGet, "/api/deals?limit=3&max_age=72h", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, deals.limit)
	assert.Equal(t, 72*time.Hour, deals.maxAge)
	assert.Contains(t, rec.Body.String(), "123 Main St")

	rec = do(t, router, http.MethodGet, "/api/deals?max_age=soon", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/deals/abc123", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fingerprint":"abc123"`)

	rec = do(t, router, http.MethodGet, "/api/deals/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunWatchlist(t *testing.T) {
	h, _, _, _ := newTestHandlers()
	rec := do(t, NewRouter(h), http.MethodPost, "/api/watchlist/run", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	wl := &fakeWatchlist{called: make(chan struct{})}
	h.Watchlist = wl
	rec = do(t, NewRouter(h), http.MethodPost, "/api/watchlist/run", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case <-wl.called:
	case <-time.After(2 * time.Second):
		t.Fatal("watchlist was not triggered")
	}
}

func TestSpeak(t *testing.T) {
	h, _, _, speaker := newTestHandlers()
	router := NewRouter(h)

	rec := do(t, router, http.MethodGet, "/api/speak", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/speak?text=Found+two+deals&voice=Amy", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ID3audio", rec.Body.String())
	assert.Equal(t, "Found two deals", speaker.text)
	assert.Equal(t, "Amy", speaker.voice)

	speaker.err = errors.New("tts status 503")
	rec = do(t, router, http.MethodGet, "/api/speak?text=hello", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHealth(t *testing.T) {
	h, _, _, _ := newTestHandlers()
	rec := do(t, NewRouter(h), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
