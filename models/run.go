package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Degradation names a stage that fell back instead of failing.
type Degradation string

const (
	ExpansionDegraded Degradation = "expansion_degraded"
	DiscoveryDegraded Degradation = "discovery_degraded"
	ScrapeSkipped     Degradation = "scrape_skipped"
	AnalysisDegraded  Degradation = "analysis_degraded"
)

// SearchRun is the history record of one pipeline execution.
type SearchRun struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	Query         string        `json:"query" db:"query"`
	Type          Category      `json:"type" db:"type"`
	Trigger       string        `json:"trigger" db:"trigger"` // api, cli, watchlist
	StartedAt     time.Time     `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time    `json:"finished_at" db:"finished_at"`
	Status        RunStatus     `json:"status" db:"status"`
	Phrases       int           `json:"phrases" db:"phrases"`
	URLsFound     int           `json:"urls_found" db:"urls_found"`
	ListingsFound int           `json:"listings_found" db:"listings_found"`
	Analyzed      int           `json:"analyzed" db:"analyzed"`
	Results       int           `json:"results" db:"results"`
	Degradations  []Degradation `json:"degradations" db:"degradations"`
	Error         string        `json:"error,omitempty" db:"error"`
}

func NewSearchRun(query, trigger string) *SearchRun {
	return &SearchRun{
		ID:        uuid.New(),
		Query:     query,
		Trigger:   trigger,
		StartedAt: time.Now(),
		Status:    RunStatusRunning,
	}
}

// Degrade records d once per run.
func (r *SearchRun) Degrade(d Degradation) {
	for _, existing := range r.Degradations {
		if existing == d {
			return
		}
	}
	r.Degradations = append(r.Degradations, d)
}

func (r *SearchRun) Finish(status RunStatus, err error) {
	now := time.Now()
	r.FinishedAt = &now
	r.Status = status
	if err != nil {
		r.Error = err.Error()
	}
}

func (r *SearchRun) DegradationsJSON() []byte {
	if len(r.Degradations) == 0 {
		return []byte("[]")
	}
	data, _ := json.Marshal(r.Degradations)
	return data
}
