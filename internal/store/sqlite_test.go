package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tuition-research/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testRecord(school, program string, status model.RecordStatus, at time.Time) *model.ExtractionRecord {
	months := 24
	return &model.ExtractionRecord{
		ID:                  model.NewRecordID(),
		School:              school,
		Program:             program,
		TuitionAmount:       model.StrPtr("$48,000"),
		ProgramLengthMonths: &months,
		Status:              status,
		ConfidenceScore:     model.ConfidenceMedium,
		SourceURL:           "https://acme.edu/tuition",
		ValidatedSources: []model.AttributedSource{
			{Title: "Tuition", URL: "https://acme.edu/tuition", RawContent: "Tuition is $48,000."},
		},
		Verification: &model.VerificationResult{
			Status:     model.VerificationVerified,
			Issues:     []string{},
			Confidence: model.ConfidenceMedium,
		},
		CreatedAt: at.UTC(),
	}
}

func TestSQLite_SaveAndGetRecord(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := testRecord("Acme University", "Weekend MBA", model.RecordStatusSuccess, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, st.SaveRecord(ctx, rec))

	got, err := st.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "$48,000", model.Deref(got.TuitionAmount))
	assert.Equal(t, 24, *got.ProgramLengthMonths)
	assert.Equal(t, rec.ValidatedSources, got.ValidatedSources)
	require.NotNil(t, got.Verification)
	assert.Equal(t, model.VerificationVerified, got.Verification.Status)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
}

func TestSQLite_SaveRecord_InsertOnly(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := testRecord("Acme University", "MBA", model.RecordStatusSuccess, time.Now())
	require.NoError(t, st.SaveRecord(ctx, rec))
	err := st.SaveRecord(ctx, rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite: insert record")
}

func TestSQLite_SaveRecord_RequiresID(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.Error(t, st.SaveRecord(context.Background(), &model.ExtractionRecord{}))
	require.Error(t, st.SaveRecord(context.Background(), nil))
}

func TestSQLite_GetRecord_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.GetRecord(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListRecords(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	r1 := testRecord("Acme University", "MBA", model.RecordStatusSuccess, base)
	r2 := testRecord("Acme University", "MS Finance", model.RecordStatusNotFound, base.Add(time.Hour))
	r3 := testRecord("Globex College", "MBA", model.RecordStatusFailed, base.Add(2*time.Hour))
	r4 := testRecord("acme university", "mba", model.RecordStatusSuccess, base.Add(3*time.Hour))
	for _, r := range []*model.ExtractionRecord{r1, r2, r3, r4} {
		require.NoError(t, st.SaveRecord(ctx, r))
	}

	ids := func(recs []model.ExtractionRecord) []string {
		out := make([]string, len(recs))
		for i, r := range recs {
			out[i] = r.ID
		}
		return out
	}

	tests := []struct {
		name   string
		filter RecordFilter
		want   []string
	}{
		{"all newest first", RecordFilter{}, []string{r4.ID, r3.ID, r2.ID, r1.ID}},
		{"school case-insensitive", RecordFilter{School: "ACME UNIVERSITY"}, []string{r4.ID, r2.ID, r1.ID}},
		{"school and program", RecordFilter{School: "Acme University", Program: "MBA"}, []string{r4.ID, r1.ID}},
		{"status", RecordFilter{Status: model.RecordStatusFailed}, []string{r3.ID}},
		{"limit", RecordFilter{Limit: 2}, []string{r4.ID, r3.ID}},
		{"offset", RecordFilter{Limit: 2, Offset: 2}, []string{r2.ID, r1.ID}},
		{"no match", RecordFilter{School: "Initech"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.ListRecords(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestSQLite_LogUsage(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	ev := model.UsageEvent{
		Endpoint:         "gemini",
		Model:            "gemini-2.5-flash",
		OperationType:    "tuition_extraction",
		Tokens:           model.TokenUsage{InputTokens: 100, OutputTokens: 20},
		ElapsedMs:        1200,
		RetryCount:       3,
		Success:          true,
		RequestMetadata:  map[string]any{"school": "Acme University"},
		ResponseMetadata: map[string]any{"status": "Success"},
		CreatedAt:        time.Now(),
	}
	require.NoError(t, st.LogUsage(ctx, ev))

	ev.Success = false
	ev.Error = "perplexity: unexpected status 503"
	ev.ResponseMetadata = nil
	require.NoError(t, st.LogUsage(ctx, ev))

	var n, retries int
	require.NoError(t, st.db.QueryRowContext(ctx, `SELECT count(*), sum(retry_count) FROM usage_events`).Scan(&n, &retries))
	assert.Equal(t, 2, n)
	assert.Equal(t, 6, retries)

	var errText, respMeta sql.NullString
	require.NoError(t, st.db.QueryRowContext(ctx,
		`SELECT error, response_metadata FROM usage_events WHERE success = 0`).Scan(&errText, &respMeta))
	assert.Equal(t, "perplexity: unexpected status 503", errText.String)
	assert.False(t, respMeta.Valid)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}

func TestOpen_SQLite(t *testing.T) {
	st, err := Open(context.Background(), Config{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "open.db")})
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
