package models

import (
	"time"

	"github.com/google/uuid"
)

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// RunLog is one stage message persisted alongside a SearchRun.
type RunLog struct {
	ID        int64     `json:"id" db:"id"`
	RunID     uuid.UUID `json:"run_id" db:"run_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Level     LogLevel  `json:"level" db:"level"`
	Stage     string    `json:"stage" db:"stage"`
	Message   string    `json:"message" db:"message"`
}
