package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/tuition-research/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS extraction_records (
	id             TEXT PRIMARY KEY,
	school         TEXT NOT NULL,
	program        TEXT NOT NULL,
	status         TEXT NOT NULL,
	confidence     TEXT NOT NULL,
	tuition_amount TEXT,
	source_url     TEXT NOT NULL DEFAULT '',
	record         TEXT NOT NULL,
	created_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS usage_events (
	id                TEXT PRIMARY KEY,
	endpoint          TEXT NOT NULL,
	model             TEXT NOT NULL,
	operation_type    TEXT NOT NULL,
	input_tokens      INTEGER NOT NULL DEFAULT 0,
	output_tokens     INTEGER NOT NULL DEFAULT 0,
	elapsed_ms        INTEGER NOT NULL DEFAULT 0,
	retry_count       INTEGER NOT NULL DEFAULT 0,
	success           INTEGER NOT NULL,
	error             TEXT,
	request_metadata  TEXT,
	response_metadata TEXT,
	created_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_school_program ON extraction_records(school COLLATE NOCASE, program COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_records_status ON extraction_records(status);
CREATE INDEX IF NOT EXISTS idx_records_created_at ON extraction_records(created_at);
CREATE INDEX IF NOT EXISTS idx_usage_created_at ON usage_events(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRecord(ctx context.Context, rec *model.ExtractionRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal record")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO extraction_records (id, school, program, status, confidence, tuition_amount, source_url, record, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.School, rec.Program, string(rec.Status), string(rec.ConfidenceScore),
		rec.TuitionAmount, rec.SourceURL, string(body), rec.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert record %s", rec.ID)
}

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*model.ExtractionRecord, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM extraction_records WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %s", id)
	}
	return decodeRecord([]byte(body))
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.ExtractionRecord, error) {
	query := `SELECT record FROM extraction_records WHERE 1=1`
	var args []any

	if filter.School != "" {
		query += ` AND school = ? COLLATE NOCASE`
		args = append(args, filter.School)
	}
	if filter.Program != "" {
		query += ` AND program = ? COLLATE NOCASE`
		args = append(args, filter.Program)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, filter.limit())

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ExtractionRecord
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		rec, err := decodeRecord([]byte(body))
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

func (s *SQLiteStore) LogUsage(ctx context.Context, ev model.UsageEvent) error {
	reqMeta, err := marshalMetadata(ev.RequestMetadata)
	if err != nil {
		return err
	}
	respMeta, err := marshalMetadata(ev.ResponseMetadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO usage_events (id, endpoint, model, operation_type, input_tokens, output_tokens, elapsed_ms, retry_count, success, error, request_metadata, response_metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), ev.Endpoint, ev.Model, ev.OperationType,
		ev.Tokens.InputTokens, ev.Tokens.OutputTokens, ev.ElapsedMs, ev.RetryCount,
		ev.Success, nullString(ev.Error), nullBytes(reqMeta), nullBytes(respMeta), ev.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: insert usage event")
}

func decodeRecord(body []byte) (*model.ExtractionRecord, error) {
	var rec model.ExtractionRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal record")
	}
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBytes(b []byte) sql.NullString {
	return sql.NullString{String: string(b), Valid: b != nil}
}
