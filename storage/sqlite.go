package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"deal_scout/models"
)

// SQLiteStore keeps the local run history: one row per pipeline run, its
// stage log, and the result set it returned.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS search_runs (
		id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		type TEXT,
		triggered_by TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		phrases INTEGER DEFAULT 0,
		urls_found INTEGER DEFAULT 0,
		listings_found INTEGER DEFAULT 0,
		analyzed INTEGER DEFAULT 0,
		results INTEGER DEFAULT 0,
		degradations JSON,
		error TEXT
	);

	CREATE TABLE IF NOT EXISTS run_logs (
		id INTEGER PRIMARY KEY,
		run_id TEXT,
		timestamp DATETIME,
		level TEXT,
		stage TEXT,
		message TEXT
	);

	CREATE TABLE IF NOT EXISTS run_results (
		id INTEGER PRIMARY KEY,
		run_id TEXT NOT NULL,
		rank INTEGER,
		title TEXT,
		url TEXT,
		price REAL,
		profit REAL,
		estimated BOOLEAN DEFAULT FALSE,
		data JSON,
		FOREIGN KEY (run_id) REFERENCES search_runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON search_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON search_runs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON run_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_results_run ON run_results(run_id, rank);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *models.SearchRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_runs (id, query, type, triggered_by, started_at, status, degradations)
		VALUES (?, ?, ?, ?, ?, ?, '[]')`,
		run.ID.String(), run.Query, run.Type, run.Trigger, run.StartedAt, run.Status)
	return err
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *models.SearchRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE search_runs SET type = ?, finished_at = ?, status = ?, phrases = ?,
			urls_found = ?, listings_found = ?, analyzed = ?, results = ?,
			degradations = ?, error = ?
		WHERE id = ?`,
		run.Type, run.FinishedAt, run.Status, run.Phrases,
		run.URLsFound, run.ListingsFound, run.Analyzed, run.Results,
		string(run.DegradationsJSON()), run.Error, run.ID.String())
	return err
}

func (s *SQLiteStore) Log(ctx context.Context, entry *models.RunLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO run_logs (run_id, timestamp, level, stage, message)
		VALUES (?, ?, ?, ?, ?)`,
		entry.RunID.String(), entry.Timestamp, entry.Level, entry.Stage, entry.Message)
	if err != nil {
		return err
	}
	entry.ID, _ = result.LastInsertId()
	return nil
}

// SaveResults stores the result set in rank order.
func (s *SQLiteStore) SaveResults(ctx context.Context, runID uuid.UUID, props []models.AnalyzedProperty) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_results (run_id, rank, title, url, price, profit, estimated, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, p := range props {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, runID.String(), i+1, p.Title, p.ResolvedURL,
			p.PurchasePrice, p.Profit, p.Estimated, string(data)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecentRuns returns the newest runs first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]models.SearchRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query, type, triggered_by, started_at, finished_at, status, phrases,
			urls_found, listings_found, analyzed, results, degradations, error
		FROM search_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.SearchRun
	for rows.Next() {
		var (
			r            models.SearchRun
			id           string
			kind         sql.NullString
			trigger      sql.NullString
			finishedAt   sql.NullTime
			degradations sql.NullString
			errMsg       sql.NullString
		)
		if err := rows.Scan(&id, &r.Query, &kind, &trigger, &r.StartedAt, &finishedAt, &r.Status,
			&r.Phrases, &r.URLsFound, &r.ListingsFound, &r.Analyzed, &r.Results, &degradations, &errMsg); err != nil {
			return nil, err
		}

		r.ID, _ = uuid.Parse(id)
		r.Type = models.Category(kind.String)
		r.Trigger = trigger.String
		r.Error = errMsg.String
		if finishedAt.Valid {
			t := finishedAt.Time
			r.FinishedAt = &t
		}
		if degradations.Valid && degradations.String != "" {
			json.Unmarshal([]byte(degradations.String), &r.Degradations)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunLogs returns the stage log of one run in write order.
func (s *SQLiteStore) RunLogs(ctx context.Context, runID uuid.UUID) ([]models.RunLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, level, stage, message
		FROM run_logs WHERE run_id = ?
		ORDER BY id`, runID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.RunLog
	for rows.Next() {
		l := models.RunLog{RunID: runID}
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Stage, &l.Message); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// RunResults returns the stored result set of one run in rank order.
func (s *SQLiteStore) RunResults(ctx context.Context, runID uuid.UUID) ([]models.AnalyzedProperty, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM run_results WHERE run_id = ? ORDER BY rank`, runID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var props []models.AnalyzedProperty
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var p models.AnalyzedProperty
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, rows.Err()
}
