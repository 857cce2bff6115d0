package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tuition-research/internal/model"
)

// ErrNotFound is returned by GetRecord for an unknown id.
var ErrNotFound = eris.New("store: record not found")

// DefaultListLimit caps ListRecords when no limit is given.
const DefaultListLimit = 100

// RecordFilter specifies criteria for listing extraction records. School
// and Program match case-insensitively.
type RecordFilter struct {
	School  string             `json:"school,omitempty"`
	Program string             `json:"program,omitempty"`
	Status  model.RecordStatus `json:"status,omitempty"`
	Limit   int                `json:"limit,omitempty"`
	Offset  int                `json:"offset,omitempty"`
}

func (f RecordFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// Store persists extraction records and usage events. Records are insert
// only: a re-extraction is a new record.
type Store interface {
	// Records
	SaveRecord(ctx context.Context, rec *model.ExtractionRecord) error
	GetRecord(ctx context.Context, id string) (*model.ExtractionRecord, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.ExtractionRecord, error)

	// Usage
	LogUsage(ctx context.Context, ev model.UsageEvent) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures a store driver.
type Config struct {
	Driver      string      `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string      `yaml:"database_url" mapstructure:"database_url"`
	Pool        *PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// Open creates the store selected by cfg.Driver ("sqlite" or "postgres").
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "tuition.db"
		}
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, cfg.Pool)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}

func validateRecord(rec *model.ExtractionRecord) error {
	if rec == nil || rec.ID == "" {
		return eris.New("store: record id is required")
	}
	return nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	return b, eris.Wrap(err, "store: marshal metadata")
}
