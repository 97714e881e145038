package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/carloslaurellineves/websearch-agent/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	output_path TEXT NOT NULL DEFAULT '',
	stats       TEXT,
	error       TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS verdicts (
	run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position        INTEGER NOT NULL,
	name            TEXT NOT NULL,
	version         TEXT NOT NULL DEFAULT '',
	original_status TEXT NOT NULL,
	verified_status TEXT NOT NULL,
	confidence      INTEGER NOT NULL,
	searched_at     DATETIME NOT NULL,
	sources         TEXT NOT NULL,
	links           TEXT NOT NULL,
	summary         TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_verdicts_name ON verdicts(name);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, source string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, status, started_at) VALUES (?, ?, ?, ?)`,
		id, source, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Source:    source,
		Status:    model.RunStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, outcome RunOutcome) error {
	statsJSON, err := json.Marshal(outcome.Stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stats")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, output_path = ?, stats = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(outcome.Status), outcome.OutputPath, string(statsJSON), outcome.Error, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

// GetRun returns the run with the given ID. A unique ID prefix, as printed
// by the runs list, is accepted too.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, status, output_path, stats, error, started_at, finished_at FROM runs
		WHERE id = ? OR (length(?) >= 4 AND id LIKE ? || '%')
		ORDER BY id = ? DESC, started_at DESC LIMIT 1`,
		runID, runID, runID, runID,
	)
	r, err := scanRun(row)
	if eris.Is(err, ErrNotFound) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, source, status, output_path, stats, error, started_at, finished_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// SaveVerdicts stores verdicts in input order, replacing any previously
// saved for the run.
func (s *SQLiteStore) SaveVerdicts(ctx context.Context, runID string, verdicts []model.LicenseVerdict) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin verdicts tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM verdicts WHERE run_id = ?`, runID); err != nil {
		return eris.Wrapf(err, "sqlite: clear verdicts for run %s", runID)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO verdicts
		(run_id, position, name, version, original_status, verified_status, confidence, searched_at, sources, links, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare verdict insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, v := range verdicts {
		sources, err := json.Marshal(nonNil(v.Sources))
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal sources")
		}
		links, err := json.Marshal(nonNil(v.Links))
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal links")
		}
		_, err = stmt.ExecContext(ctx,
			runID, i, v.Record.Name, v.Record.Version, string(v.Record.OriginalStatus),
			string(v.VerifiedStatus), v.Confidence, v.SearchedAt.UTC(), string(sources), string(links), v.Summary,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert verdict %d for run %s", i, runID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit verdicts")
}

func (s *SQLiteStore) ListVerdicts(ctx context.Context, runID string) ([]model.LicenseVerdict, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, version, original_status, verified_status, confidence, searched_at, sources, links, summary
		FROM verdicts WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list verdicts for run %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.LicenseVerdict
	for rows.Next() {
		var v model.LicenseVerdict
		var sources, links string
		if err := rows.Scan(
			&v.Record.Name, &v.Record.Version, &v.Record.OriginalStatus,
			&v.VerifiedStatus, &v.Confidence, &v.SearchedAt, &sources, &links, &v.Summary,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan verdict")
		}
		if err := json.Unmarshal([]byte(sources), &v.Sources); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal sources")
		}
		if err := json.Unmarshal([]byte(links), &v.Links); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal links")
		}
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list verdicts iterate")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var statsJSON sql.NullString
	var finishedAt sql.NullTime

	err := row.Scan(&r.ID, &r.Source, &r.Status, &r.OutputPath, &statsJSON, &r.Error, &r.StartedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if statsJSON.Valid {
		if err := json.Unmarshal([]byte(statsJSON.String), &r.Stats); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal stats")
		}
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
