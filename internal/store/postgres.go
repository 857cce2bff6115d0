package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tuition-research/internal/db"
	"github.com/sells-group/tuition-research/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_record": `INSERT INTO extraction_records (id, school, program, status, confidence, tuition_amount, source_url, record, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	"get_record":    `SELECT record FROM extraction_records WHERE id = $1`,
	"insert_usage":  `INSERT INTO usage_events (id, endpoint, model, operation_type, input_tokens, output_tokens, elapsed_ms, retry_count, success, error, request_metadata, response_metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS extraction_records (
	id             TEXT PRIMARY KEY,
	school         TEXT NOT NULL,
	program        TEXT NOT NULL,
	status         TEXT NOT NULL,
	confidence     TEXT NOT NULL,
	tuition_amount TEXT,
	source_url     TEXT NOT NULL DEFAULT '',
	record         JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS usage_events (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	endpoint          TEXT NOT NULL,
	model             TEXT NOT NULL,
	operation_type    TEXT NOT NULL,
	input_tokens      BIGINT NOT NULL DEFAULT 0,
	output_tokens     BIGINT NOT NULL DEFAULT 0,
	elapsed_ms        BIGINT NOT NULL DEFAULT 0,
	retry_count       INTEGER NOT NULL DEFAULT 0,
	success           BOOLEAN NOT NULL,
	error             TEXT,
	request_metadata  JSONB,
	response_metadata JSONB,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_records_school_program ON extraction_records(lower(school), lower(program));
CREATE INDEX IF NOT EXISTS idx_records_status ON extraction_records(status);
CREATE INDEX IF NOT EXISTS idx_records_created_at ON extraction_records(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_usage_created_at ON usage_events(created_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveRecord(ctx context.Context, rec *model.ExtractionRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal record")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO extraction_records (id, school, program, status, confidence, tuition_amount, source_url, record, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.School, rec.Program, string(rec.Status), string(rec.ConfidenceScore),
		rec.TuitionAmount, rec.SourceURL, body, rec.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert record %s", rec.ID)
}

func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*model.ExtractionRecord, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT record FROM extraction_records WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %s", id)
	}
	return decodeRecord(body)
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.ExtractionRecord, error) {
	query := `SELECT record FROM extraction_records WHERE true`
	args := []any{}
	argIdx := 1

	if filter.School != "" {
		query += fmt.Sprintf(` AND lower(school) = lower($%d)`, argIdx)
		args = append(args, filter.School)
		argIdx++
	}
	if filter.Program != "" {
		query += fmt.Sprintf(` AND lower(program) = lower($%d)`, argIdx)
		args = append(args, filter.Program)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d`, argIdx)
	args = append(args, filter.limit())
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var out []model.ExtractionRecord
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		rec, err := decodeRecord(body)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

func (s *PostgresStore) LogUsage(ctx context.Context, ev model.UsageEvent) error {
	reqMeta, err := marshalMetadata(ev.RequestMetadata)
	if err != nil {
		return err
	}
	respMeta, err := marshalMetadata(ev.ResponseMetadata)
	if err != nil {
		return err
	}
	var errText *string
	if ev.Error != "" {
		errText = &ev.Error
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO usage_events (id, endpoint, model, operation_type, input_tokens, output_tokens, elapsed_ms, retry_count, success, error, request_metadata, response_metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.New().String(), ev.Endpoint, ev.Model, ev.OperationType,
		ev.Tokens.InputTokens, ev.Tokens.OutputTokens, ev.ElapsedMs, ev.RetryCount,
		ev.Success, errText, reqMeta, respMeta, ev.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: insert usage event")
}
