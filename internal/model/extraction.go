package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ExtractionRequest identifies a (school, program) target.
type ExtractionRequest struct {
	School  string `json:"school"`
	Program string `json:"program"`
}

// Valid reports whether both school and program are non-blank.
func (r ExtractionRequest) Valid() bool {
	return strings.TrimSpace(r.School) != "" && strings.TrimSpace(r.Program) != ""
}

// ExtractionStatus is the status the model reports in its JSON payload.
type ExtractionStatus string

const (
	ExtractionSuccess  ExtractionStatus = "Success"
	ExtractionNotFound ExtractionStatus = "NotFound"
)

// RecordStatus is the terminal status of an ExtractionRecord.
type RecordStatus string

const (
	RecordStatusSuccess  RecordStatus = "Success"
	RecordStatusNotFound RecordStatus = "NotFound"
	RecordStatusFailed   RecordStatus = "Failed"
)

// ExtractedFields is the structured payload parsed from a grounded response.
// Every field except Status may be absent.
type ExtractedFields struct {
	TuitionAmount       *string          `json:"tuition_amount"`
	TuitionPeriod       *string          `json:"tuition_period"`
	AcademicYear        *string          `json:"academic_year"`
	CostPerCredit       *string          `json:"cost_per_credit"`
	TotalCredits        *string          `json:"total_credits"`
	ProgramLength       *string          `json:"program_length"`
	ProgramLengthMonths *int             `json:"program_length_months"`
	ActualProgramName   *string          `json:"actual_program_name"`
	IsSTEM              *bool            `json:"is_stem"`
	AdditionalFees      *string          `json:"additional_fees"`
	Remarks             *string          `json:"remarks"`
	Status              ExtractionStatus `json:"status"`
}

// HasTuition reports whether a non-blank tuition amount is present.
func (f ExtractedFields) HasTuition() bool {
	return present(f.TuitionAmount)
}

// Usable reports whether the payload yields a tuition figure the pipeline
// can finalize as a success.
func (f ExtractedFields) Usable() bool {
	return f.Status == ExtractionSuccess && f.HasTuition()
}

// AttributedSource is one deduplicated source backing a record.
type AttributedSource struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	RawContent string `json:"raw_content"`
}

// InlineCitation maps a span of generated text to the validated sources
// that support it.
type InlineCitation struct {
	TextSnippet   string `json:"text_snippet"`
	SourceIndices []int  `json:"source_indices"`
	StartIndex    int    `json:"start_index"`
	EndIndex      int    `json:"end_index"`
}

// VerificationStatus is the outcome of the verification pass.
type VerificationStatus string

const (
	VerificationVerified         VerificationStatus = "verified"
	VerificationNeedsReview      VerificationStatus = "needs_review"
	VerificationRetryRecommended VerificationStatus = "retry_recommended"
	VerificationFailed           VerificationStatus = "failed"
	VerificationSkipped          VerificationStatus = "skipped"
)

// VerificationResult records what the verification pass found.
type VerificationResult struct {
	Status            VerificationStatus `json:"status"`
	Issues            []string           `json:"issues"`
	Validations       []string           `json:"validations"`
	Reasoning         string             `json:"reasoning"`
	CompletenessScore float64            `json:"completeness_score"`
	Confidence        Confidence         `json:"confidence"`
	RetryRecommended  bool               `json:"retry_recommended"`
	// Review is set when an AI review contributed to the result.
	Review            *ReviewUsage       `json:"review,omitempty"`
}

// ExtractionRecord is the final, immutable output of one extraction request.
type ExtractionRecord struct {
	ID      string `json:"id"`
	School  string `json:"school"`
	Program string `json:"program"`

	TuitionAmount       *string `json:"tuition_amount"`
	TuitionPeriod       *string `json:"tuition_period"`
	AcademicYear        *string `json:"academic_year"`
	CostPerCredit       *string `json:"cost_per_credit"`
	TotalCredits        *string `json:"total_credits"`
	ProgramLength       *string `json:"program_length"`
	ProgramLengthMonths *int    `json:"program_length_months"`
	ActualProgramName   *string `json:"actual_program_name"`
	IsSTEM              *bool   `json:"is_stem"`
	AdditionalFees      *string `json:"additional_fees"`
	Remarks             *string `json:"remarks"`

	Status           RecordStatus        `json:"status"`
	ConfidenceScore  Confidence          `json:"confidence_score"`
	SourceURL        string              `json:"source_url"`
	ValidatedSources []AttributedSource  `json:"validated_sources"`
	RawContent       string              `json:"raw_content"`
	SearchQuery      string              `json:"search_query"`
	InlineCitations  []InlineCitation    `json:"inline_citations,omitempty"`
	Verification     *VerificationResult `json:"verification"`
	ProgramSearched  string              `json:"program_searched,omitempty"`
	ErrorMessage     string              `json:"error_message,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
}

// NewRecordID returns a fresh identifier for an ExtractionRecord.
func NewRecordID() string {
	return uuid.New().String()
}

// ApplyFields copies the extracted payload onto the record.
func (r *ExtractionRecord) ApplyFields(f ExtractedFields) {
	r.TuitionAmount = f.TuitionAmount
	r.TuitionPeriod = f.TuitionPeriod
	r.AcademicYear = f.AcademicYear
	r.CostPerCredit = f.CostPerCredit
	r.TotalCredits = f.TotalCredits
	r.ProgramLength = f.ProgramLength
	r.ProgramLengthMonths = f.ProgramLengthMonths
	r.ActualProgramName = f.ActualProgramName
	r.IsSTEM = f.IsSTEM
	r.AdditionalFees = f.AdditionalFees
	r.Remarks = f.Remarks
}

// ClearTuitionFields nulls every tuition-related field, leaving remarks.
func (r *ExtractionRecord) ClearTuitionFields() {
	r.TuitionAmount = nil
	r.TuitionPeriod = nil
	r.AcademicYear = nil
	r.CostPerCredit = nil
	r.TotalCredits = nil
	r.ProgramLength = nil
	r.ProgramLengthMonths = nil
	r.ActualProgramName = nil
	r.IsSTEM = nil
	r.AdditionalFees = nil
}

// AppendRemark appends note to the record's remarks.
func (r *ExtractionRecord) AppendRemark(note string) {
	r.Remarks = AppendNote(r.Remarks, note)
}

// AppendNote joins note onto an optional remarks string.
func AppendNote(remarks *string, note string) *string {
	note = strings.TrimSpace(note)
	if note == "" {
		return remarks
	}
	if !present(remarks) {
		return &note
	}
	joined := strings.TrimSpace(*remarks) + " " + note
	return &joined
}

func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// StrPtr returns a pointer to s, or nil when s is blank.
func StrPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
