package models

import (
	"time"

	"github.com/google/uuid"
)

// Deal is the archived form of an AnalyzedProperty. One row per
// fingerprint; repeated sightings refresh the economics and last_seen.
type Deal struct {
	ID              uuid.UUID `json:"id" db:"id"`
	Fingerprint     string    `json:"fingerprint" db:"fingerprint"`
	Title           string    `json:"title" db:"title"`
	Address         string    `json:"address" db:"address"`
	URL             string    `json:"url" db:"url"`
	SourceURL       string    `json:"source_url" db:"source_url"`
	Host            string    `json:"host" db:"host"`
	PurchasePrice   float64   `json:"purchase_price" db:"purchase_price"`
	ARV             float64   `json:"arv" db:"arv"`
	Repairs         float64   `json:"repairs" db:"repairs"`
	MOV             float64   `json:"mov" db:"mov"`
	AdditionalCosts float64   `json:"additional_costs" db:"additional_costs"`
	Profit          float64   `json:"profit" db:"profit"`
	Analysis        string    `json:"analysis" db:"analysis"`
	Estimated       bool      `json:"estimated" db:"estimated"`
	LastRunID       uuid.UUID `json:"last_run_id" db:"last_run_id"`
	LastQuery       string    `json:"last_query" db:"last_query"`
	TimesSeen       int       `json:"times_seen" db:"times_seen"`
	FirstSeenAt     time.Time `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt      time.Time `json:"last_seen_at" db:"last_seen_at"`
}
