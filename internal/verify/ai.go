package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tuition-research/internal/model"
	"github.com/sells-group/tuition-research/pkg/anthropic"
)

const reviewSystemPrompt = `You audit tuition figures extracted from university websites.
Judge whether the extracted record is internally consistent and plausible for the named program.
Respond with a single JSON object: {"status": "verified|needs_review|retry_recommended|failed", "issues": [string], "reasoning": string, "confidence": "High|Medium|Low"}.`

// AIReviewer asks Claude for a qualitative review of a borderline record.
type AIReviewer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAIReviewer creates a reviewer backed by the Anthropic API.
func NewAIReviewer(client anthropic.Client, model string, maxTokens int64) *AIReviewer {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AIReviewer{client: client, model: model, maxTokens: maxTokens}
}

// Review implements Reviewer.
func (r *AIReviewer) Review(ctx context.Context, rec *model.ExtractionRecord, det *model.VerificationResult) (*Review, error) {
	temp := 0.0
	resp, err := r.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       r.model,
		MaxTokens:   r.maxTokens,
		System:      reviewSystemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: reviewPrompt(rec, det)}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}
	out, err := parseReview(resp.Text())
	if err != nil {
		return nil, err
	}
	out.Model = r.model
	if resp.Model != "" {
		out.Model = resp.Model
	}
	out.Usage = model.TokenUsage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens}
	return out, nil
}

type reviewPayload struct {
	Status     string   `json:"status"`
	Issues     []string `json:"issues"`
	Reasoning  string   `json:"reasoning"`
	Confidence string   `json:"confidence"`
}

func parseReview(text string) (*Review, error) {
	var p reviewPayload
	if err := json.Unmarshal([]byte(cleanJSON(text)), &p); err != nil {
		return nil, eris.Wrap(err, "verify: parse review")
	}

	out := &Review{Issues: p.Issues, Reasoning: p.Reasoning}
	switch s := model.VerificationStatus(strings.ToLower(strings.TrimSpace(p.Status))); s {
	case model.VerificationVerified, model.VerificationNeedsReview,
		model.VerificationRetryRecommended, model.VerificationFailed:
		out.Status = s
	}
	if c, ok := model.ParseConfidence(p.Confidence); ok {
		out.Confidence = c
	}
	return out, nil
}

func reviewPrompt(rec *model.ExtractionRecord, det *model.VerificationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "School: %s\nProgram searched: %s\n\n", rec.School, rec.Program)
	b.WriteString("Extracted record:\n")
	field := func(name string, v *string) {
		fmt.Fprintf(&b, "- %s: %s\n", name, orNull(v))
	}
	field("tuition_amount", rec.TuitionAmount)
	field("tuition_period", rec.TuitionPeriod)
	field("academic_year", rec.AcademicYear)
	field("cost_per_credit", rec.CostPerCredit)
	field("total_credits", rec.TotalCredits)
	field("program_length", rec.ProgramLength)
	field("actual_program_name", rec.ActualProgramName)
	field("additional_fees", rec.AdditionalFees)
	field("remarks", rec.Remarks)

	b.WriteString("\nSources:\n")
	if len(rec.ValidatedSources) == 0 {
		b.WriteString("(none)\n")
	}
	for i, s := range rec.ValidatedSources {
		fmt.Fprintf(&b, "%d. %s (%s)\n%s\n", i+1, s.Title, s.URL, excerpt(s.RawContent, 1500))
	}

	fmt.Fprintf(&b, "\nAutomated checks found %d issue(s): %s\n", len(det.Issues), strings.Join(det.Issues, "; "))
	fmt.Fprintf(&b, "Completeness score: %.2f\n", det.CompletenessScore)
	return b.String()
}

func orNull(s *string) string {
	if s == nil {
		return "null"
	}
	return *s
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// cleanJSON extracts a JSON object from text that may contain markdown code
// fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
