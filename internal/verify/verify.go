// Package verify checks a finalized extraction record for completeness and
// plausibility, optionally escalating borderline records to an AI review.
package verify

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/tuition-research/internal/model"
	"github.com/sells-group/tuition-research/internal/resilience"
	"github.com/sells-group/tuition-research/internal/sanitize"
)

var printer = message.NewPrinter(language.English)

// Config holds verification thresholds.
type Config struct {
	Enabled bool
	// Plausible tuition range, in currency units.
	MinTuition float64
	MaxTuition float64
	// CrossCheckTolerance is the allowed relative gap between tuition and
	// credits x cost-per-credit.
	CrossCheckTolerance float64
	MinCredits          float64
	MaxCredits          float64
	// RetryThreshold: completeness below this recommends re-extraction.
	RetryThreshold float64
	// Completeness in [BorderlineLow, BorderlineHigh) triggers AI review.
	BorderlineLow  float64
	BorderlineHigh float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		MinTuition:          1000,
		MaxTuition:          250000,
		CrossCheckTolerance: 0.10,
		MinCredits:          6,
		MaxCredits:          120,
		RetryThreshold:      0.4,
		BorderlineLow:       0.4,
		BorderlineHigh:      0.7,
	}
}

// Review is a qualitative second opinion on a record.
type Review struct {
	Status     model.VerificationStatus
	Issues     []string
	Reasoning  string
	Confidence model.Confidence
	Model      string
	Usage      model.TokenUsage
}

// Reviewer performs one AI review call. Implementations make a single
// upstream request; the Agent applies backoff.
type Reviewer interface {
	Review(ctx context.Context, rec *model.ExtractionRecord, det *model.VerificationResult) (*Review, error)
}

// Agent verifies extraction records.
type Agent struct {
	cfg      Config
	reviewer Reviewer
	exec     resilience.Executor
}

// NewAgent creates a verification agent. reviewer may be nil, in which case
// only the deterministic checks run.
func NewAgent(cfg Config, reviewer Reviewer, exec resilience.Executor) *Agent {
	if exec == nil {
		exec = resilience.NewBackoff(resilience.DefaultRetryConfig())
	}
	return &Agent{cfg: cfg, reviewer: reviewer, exec: exec}
}

// Verify checks rec, whose ConfidenceScore holds the pre-verification
// confidence. The result's confidence never exceeds that value. An error
// is returned only when the AI review fails.
func (a *Agent) Verify(ctx context.Context, rec *model.ExtractionRecord) (*model.VerificationResult, error) {
	pre := rec.ConfidenceScore
	res := a.check(rec)

	if !a.cfg.Enabled {
		return &model.VerificationResult{
			Status:            model.VerificationSkipped,
			Issues:            []string{},
			Validations:       []string{},
			Reasoning:         "verification disabled",
			CompletenessScore: res.CompletenessScore,
			Confidence:        pre,
		}, nil
	}

	if a.reviewer != nil && a.borderline(res) {
		review, retries, err := resilience.RunVal(ctx, a.exec, "verification_review", func(ctx context.Context) (*Review, error) {
			return a.reviewer.Review(ctx, rec, res)
		})
		if err != nil {
			return nil, eris.Wrap(err, "verify: ai review")
		}
		merge(res, review)
		if review != nil {
			res.Review = &model.ReviewUsage{Model: review.Model, Tokens: review.Usage, Retries: retries}
		}
	}

	res.Confidence = model.MinConfidence(res.Confidence, pre)
	zap.L().Debug("verify: record checked",
		zap.String("school", rec.School),
		zap.String("program", rec.Program),
		zap.String("status", string(res.Status)),
		zap.Int("issues", len(res.Issues)),
		zap.Float64("completeness", res.CompletenessScore),
	)
	return res, nil
}

func (a *Agent) borderline(res *model.VerificationResult) bool {
	if res.Status == model.VerificationFailed {
		return false
	}
	return res.CompletenessScore >= a.cfg.BorderlineLow && res.CompletenessScore < a.cfg.BorderlineHigh
}

// check runs the deterministic checks and maps them to a status.
func (a *Agent) check(rec *model.ExtractionRecord) *model.VerificationResult {
	pre := rec.ConfidenceScore
	res := &model.VerificationResult{Issues: []string{}, Validations: []string{}}
	res.CompletenessScore = Completeness(rec)

	tuition, hasTuition := amount(rec.TuitionAmount)
	switch {
	case !present(rec.TuitionAmount):
		res.Issues = append(res.Issues, "missing tuition amount")
	case !hasTuition:
		res.Issues = append(res.Issues, fmt.Sprintf("tuition amount %q is not numeric", *rec.TuitionAmount))
	case tuition < a.cfg.MinTuition || tuition > a.cfg.MaxTuition:
		res.Issues = append(res.Issues, fmt.Sprintf("tuition amount %s outside plausible range %s-%s",
			*rec.TuitionAmount, money(a.cfg.MinTuition), money(a.cfg.MaxTuition)))
	default:
		res.Validations = append(res.Validations, "tuition amount within plausible range")
	}

	credits, hasCredits := amount(rec.TotalCredits)
	if hasCredits {
		if credits < a.cfg.MinCredits || credits > a.cfg.MaxCredits {
			res.Issues = append(res.Issues, fmt.Sprintf("total credits %s outside plausible range %g-%g",
				*rec.TotalCredits, a.cfg.MinCredits, a.cfg.MaxCredits))
		} else {
			res.Validations = append(res.Validations, "total credits within plausible range")
		}
	}

	perCredit, hasPerCredit := amount(rec.CostPerCredit)
	if hasTuition && hasCredits && hasPerCredit && coversProgram(rec.TuitionPeriod) {
		expected := credits * perCredit
		if expected > 0 && math.Abs(tuition-expected)/expected > a.cfg.CrossCheckTolerance {
			res.Issues = append(res.Issues, fmt.Sprintf("tuition %s does not match %g credits x %s = %s",
				*rec.TuitionAmount, credits, *rec.CostPerCredit, money(expected)))
		} else {
			res.Validations = append(res.Validations, "tuition matches credits x cost per credit")
		}
	}

	if len(rec.ValidatedSources) > 0 {
		res.Validations = append(res.Validations, fmt.Sprintf("%d validated source(s)", len(rec.ValidatedSources)))
	} else {
		res.Issues = append(res.Issues, "no validated sources")
	}

	switch {
	case !present(rec.TuitionAmount):
		res.Status = model.VerificationFailed
		res.Confidence = model.ConfidenceLow
		res.Reasoning = "no tuition amount to verify"
	case len(res.Issues) > 0:
		res.Status = model.VerificationNeedsReview
		res.Confidence = pre.Downgrade()
		res.Reasoning = fmt.Sprintf("%d issue(s) require review", len(res.Issues))
	case res.CompletenessScore < a.cfg.RetryThreshold:
		res.Status = model.VerificationRetryRecommended
		res.Confidence = model.ConfidenceLow
		res.RetryRecommended = true
		res.Reasoning = fmt.Sprintf("completeness %.2f below %.2f", res.CompletenessScore, a.cfg.RetryThreshold)
	default:
		res.Status = model.VerificationVerified
		res.Confidence = pre
		res.Reasoning = "all checks passed"
	}
	return res
}

// merge folds an AI review into the deterministic result. The review may
// add issues and lower confidence but never raises it.
func merge(res *model.VerificationResult, review *Review) {
	if review == nil {
		return
	}
	seen := make(map[string]bool, len(res.Issues))
	for _, i := range res.Issues {
		seen[strings.ToLower(i)] = true
	}
	for _, i := range review.Issues {
		i = strings.TrimSpace(i)
		if i == "" || seen[strings.ToLower(i)] {
			continue
		}
		seen[strings.ToLower(i)] = true
		res.Issues = append(res.Issues, i)
	}

	switch review.Status {
	case model.VerificationVerified, model.VerificationNeedsReview,
		model.VerificationRetryRecommended, model.VerificationFailed:
		res.Status = review.Status
	}
	if res.Status == model.VerificationRetryRecommended {
		res.RetryRecommended = true
	}
	if review.Confidence.Valid() {
		res.Confidence = model.MinConfidence(res.Confidence, review.Confidence)
	}
	if r := strings.TrimSpace(review.Reasoning); r != "" {
		res.Reasoning = r
	}
}

// Completeness is the fraction of key record fields that are present.
func Completeness(rec *model.ExtractionRecord) float64 {
	checks := []bool{
		present(rec.TuitionAmount),
		present(rec.TuitionPeriod),
		present(rec.AcademicYear),
		present(rec.CostPerCredit),
		present(rec.TotalCredits),
		present(rec.ProgramLength) || rec.ProgramLengthMonths != nil,
		present(rec.ActualProgramName),
		len(rec.ValidatedSources) > 0,
	}
	n := 0
	for _, ok := range checks {
		if ok {
			n++
		}
	}
	return float64(n) / float64(len(checks))
}

// Note returns the remarks annotation for a result, or "" when none is due.
func Note(res *model.VerificationResult) string {
	if res == nil || len(res.Issues) == 0 || res.Status == model.VerificationVerified || res.Status == model.VerificationSkipped {
		return ""
	}
	return fmt.Sprintf("[Verification: %d issue(s) found]", len(res.Issues))
}

// coversProgram reports whether the tuition period describes a whole
// program rather than a year, term or credit.
func coversProgram(period *string) bool {
	if !present(period) {
		return true
	}
	p := strings.ToLower(*period)
	for _, partial := range []string{"year", "annual", "semester", "term", "quarter", "credit", "month"} {
		if strings.Contains(p, partial) {
			return false
		}
	}
	return true
}

func amount(s *string) (float64, bool) {
	if !present(s) {
		return 0, false
	}
	return sanitize.ParseAmount(*s)
}

func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func money(v float64) string {
	return printer.Sprintf("$%d", int64(math.Round(v)))
}
