// Package extract turns a (school, program) request into a finalized,
// source-attributed and verified tuition record.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tuition-research/internal/cost"
	"github.com/sells-group/tuition-research/internal/grounding"
	"github.com/sells-group/tuition-research/internal/model"
	"github.com/sells-group/tuition-research/internal/sanitize"
	"github.com/sells-group/tuition-research/internal/scorer"
	"github.com/sells-group/tuition-research/internal/sources"
	"github.com/sells-group/tuition-research/internal/usage"
	"github.com/sells-group/tuition-research/internal/variation"
	"github.com/sells-group/tuition-research/internal/verify"
)

// OperationType labels usage events emitted by the engine.
const OperationType = "tuition_extraction"

// ErrInvalidRequest is returned when school or program is blank. It is the
// only error Extract returns; every other failure becomes a Failed record.
var ErrInvalidRequest = eris.New("extract: school and program are required")

// Searcher runs grounded extraction calls.
type Searcher interface {
	Extract(ctx context.Context, school, program string) (*grounding.Result, error)
	Reground(ctx context.Context, school, program string) (*model.GroundedResponse, error)
	Provider() grounding.Provider
}

// Verifier checks a finalized record.
type Verifier interface {
	Verify(ctx context.Context, rec *model.ExtractionRecord) (*model.VerificationResult, error)
}

// Reconciler builds validated sources from a grounded response.
type Reconciler interface {
	Reconcile(ctx context.Context, raw *model.GroundedResponse, school, program string) sources.Reconciled
}

// Option configures an Engine.
type Option func(*Engine)

// WithVariations sets the program-name variation resolver.
func WithVariations(r *variation.Resolver) Option {
	return func(e *Engine) { e.variations = r }
}

// WithReconciler overrides the default source reconciler.
func WithReconciler(r Reconciler) Option {
	return func(e *Engine) { e.reconciler = r }
}

// WithVerifier enables the verification pass.
func WithVerifier(v Verifier) Option {
	return func(e *Engine) { e.verifier = v }
}

// WithUsageLogger sets the usage event sink.
func WithUsageLogger(l usage.Logger) Option {
	return func(e *Engine) { e.usage = l }
}

// WithCostCalculator attaches USD estimates to usage events.
func WithCostCalculator(c *cost.Calculator) Option {
	return func(e *Engine) { e.cost = c }
}

// WithMaxVariations caps the alternate names tried after a miss.
func WithMaxVariations(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxVariations = n
		}
	}
}

// Engine is the extraction orchestrator. It holds no per-request state and
// is safe for concurrent use.
type Engine struct {
	search        Searcher
	variations    *variation.Resolver
	reconciler    Reconciler
	verifier      Verifier
	usage         usage.Logger
	cost          *cost.Calculator
	maxVariations int
	now           func() time.Time
}

// New creates an Engine around a grounded searcher.
func New(search Searcher, opts ...Option) *Engine {
	e := &Engine{
		search:        search,
		variations:    variation.New(),
		reconciler:    sources.NewReconciler(),
		usage:         usage.Nop{},
		maxVariations: variation.DefaultMax,
		now:           time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// run accumulates what one request spent across provider calls.
type run struct {
	calls    int
	retries  int
	tokens   model.TokenUsage
	tried    []string
	searched string
	err      error
}

func (r *run) observe(res *grounding.Result) {
	if res == nil {
		return
	}
	r.calls += res.Retries + 1
	r.retries += res.Retries
	if res.Raw != nil {
		r.tokens = r.tokens.Add(res.Raw.Usage)
	}
}

// Extract resolves one request into a record. NotFound, Failed and
// low-confidence outcomes are all returned as records with a nil error.
func (e *Engine) Extract(ctx context.Context, req model.ExtractionRequest) (*model.ExtractionRecord, error) {
	if !req.Valid() {
		return nil, ErrInvalidRequest
	}
	school := strings.TrimSpace(req.School)
	program := strings.TrimSpace(req.Program)
	log := zap.L().With(zap.String("school", school), zap.String("program", program))

	start := e.now()
	rec := &model.ExtractionRecord{
		ID:               model.NewRecordID(),
		School:           school,
		Program:          program,
		ValidatedSources: []model.AttributedSource{},
		CreatedAt:        start.UTC(),
	}
	st := &run{}
	defer func() {
		e.logUsage(ctx, rec, st, e.now().Sub(start))
	}()

	res, err := e.attempt(ctx, school, program, st, log)
	if err != nil {
		e.fail(rec, res, st, err)
		log.Info("extract: failed", zap.Error(err))
		return rec, nil
	}
	if !res.Fields.Usable() {
		e.notFound(rec, res, st)
		log.Info("extract: not found", zap.Strings("variations_tried", st.tried))
		return rec, nil
	}

	e.finalize(ctx, rec, res, st, log)
	log.Info("extract: complete",
		zap.String("status", string(rec.Status)),
		zap.String("confidence", string(rec.ConfidenceScore)),
		zap.Int("sources", len(rec.ValidatedSources)),
	)
	return rec, nil
}

// attempt runs the primary search and, on a miss, up to maxVariations
// alternate names. It returns the first usable result, or the primary
// result when nothing was usable. An error means the primary call failed
// or the context ended.
func (e *Engine) attempt(ctx context.Context, school, program string, st *run, log *zap.Logger) (*grounding.Result, error) {
	st.searched = program
	primary, err := e.search.Extract(ctx, school, program)
	st.observe(primary)
	if err != nil {
		return primary, err
	}
	primary.Fields = cleanFields(primary.Fields)
	if primary.Fields.Usable() {
		return primary, nil
	}

	alts := e.variations.For(program)
	if len(alts) > e.maxVariations {
		alts = alts[:e.maxVariations]
	}
	log.Debug("extract: primary search missed", zap.Strings("variations", alts))

	for _, alt := range alts {
		st.tried = append(st.tried, alt)
		res, err := e.search.Extract(ctx, school, alt)
		st.observe(res)
		if err != nil {
			if ctx.Err() != nil {
				return res, err
			}
			log.Warn("extract: variation search failed", zap.String("variation", alt), zap.Error(err))
			continue
		}
		res.Fields = cleanFields(res.Fields)
		if res.Fields.Usable() {
			st.searched = alt
			return res, nil
		}
	}
	return primary, nil
}

func (e *Engine) finalize(ctx context.Context, rec *model.ExtractionRecord, res *grounding.Result, st *run, log *zap.Logger) {
	raw := res.Raw
	if raw == nil {
		raw = &model.GroundedResponse{}
	}
	if len(raw.Chunks) == 0 {
		log.Debug("extract: no grounding chunks, retrying retrieval")
		again, err := e.search.Reground(ctx, rec.School, st.searched)
		st.calls++
		if again != nil {
			st.tokens = st.tokens.Add(again.Usage)
		}
		switch {
		case err != nil:
			log.Warn("extract: grounding retry failed", zap.Error(err))
		case again != nil && len(again.Chunks) > 0:
			raw = again
		}
	}

	fields := res.Fields
	rec.ApplyFields(fields)
	rec.Status = model.RecordStatusSuccess
	rec.ConfidenceScore = scorer.Score(fields)
	rec.SearchQuery = res.SearchQuery

	rc := e.reconciler.Reconcile(ctx, raw, rec.School, st.searched)
	rec.ValidatedSources = rc.Sources
	if rec.ValidatedSources == nil {
		rec.ValidatedSources = []model.AttributedSource{}
	}
	rec.SourceURL = rc.PrimaryURL
	rec.InlineCitations = rc.Citations
	rec.RawContent = rc.RawContent
	if rec.RawContent == "" {
		rec.RawContent = fieldSummary(rec, st.searched)
	}

	if st.searched != rec.Program {
		rec.ProgramSearched = st.searched
		rec.AppendRemark(fmt.Sprintf("Found as %q (searched for %q).", st.searched, rec.Program))
	}

	if e.verifier == nil {
		return
	}
	vr, err := e.verifier.Verify(ctx, rec)
	if err != nil {
		log.Warn("extract: verification failed, keeping pre-verification result", zap.Error(err))
		return
	}
	rec.Verification = vr
	rec.ConfidenceScore = model.MinConfidence(rec.ConfidenceScore, vr.Confidence)
	rec.AppendRemark(verify.Note(vr))
}

// fieldSummary describes the extracted figures for records whose sources
// carried no text.
func fieldSummary(rec *model.ExtractionRecord, searched string) string {
	program := searched
	if rec.ActualProgramName != nil {
		program = *rec.ActualProgramName
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Tuition for %s at %s: %s", program, rec.School, model.Deref(rec.TuitionAmount))
	if rec.TuitionPeriod != nil {
		fmt.Fprintf(&b, " (%s)", *rec.TuitionPeriod)
	}
	b.WriteString(".")
	if rec.AcademicYear != nil {
		fmt.Fprintf(&b, " Academic year: %s.", *rec.AcademicYear)
	}
	if rec.CostPerCredit != nil {
		fmt.Fprintf(&b, " Cost per credit: %s.", *rec.CostPerCredit)
	}
	if rec.TotalCredits != nil {
		fmt.Fprintf(&b, " Total credits: %s.", *rec.TotalCredits)
	}
	if rec.AdditionalFees != nil {
		fmt.Fprintf(&b, " Additional fees: %s.", *rec.AdditionalFees)
	}
	fmt.Fprintf(&b, " Source: %s", rec.SourceURL)
	return sanitize.Text(b.String())
}

func (e *Engine) notFound(rec *model.ExtractionRecord, res *grounding.Result, st *run) {
	if res != nil {
		rec.Remarks = sanitize.OptionalText(res.Fields.Remarks)
		rec.SearchQuery = res.SearchQuery
	}
	rec.ClearTuitionFields()
	rec.Status = model.RecordStatusNotFound
	rec.ConfidenceScore = model.ConfidenceLow
	rec.SourceURL = sources.FallbackSearchURL(rec.School, rec.Program)
	rec.RawContent = fmt.Sprintf("No official tuition source found for %s at %s.", rec.Program, rec.School)

	if len(st.tried) == 0 {
		rec.AppendRemark("Not found; no program-name variations available.")
		return
	}
	quoted := make([]string, len(st.tried))
	for i, v := range st.tried {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	rec.AppendRemark("Not found; also tried " + strings.Join(quoted, ", ") + ".")
}

func (e *Engine) fail(rec *model.ExtractionRecord, res *grounding.Result, st *run, err error) {
	st.err = err
	rec.Status = model.RecordStatusFailed
	rec.ConfidenceScore = model.ConfidenceLow
	rec.ErrorMessage = err.Error()
	rec.SourceURL = sources.FallbackSearchURL(rec.School, rec.Program)
	rec.SearchQuery = grounding.DefaultSearchQuery(rec.School, rec.Program)
	if res != nil && res.SearchQuery != "" {
		rec.SearchQuery = res.SearchQuery
	}

	var pe *grounding.ParseError
	if errors.As(err, &pe) {
		rec.RawContent = sanitize.Text(pe.Excerpt)
	}
	rec.AppendRemark("Extraction failed: " + sanitize.Truncate(sanitize.Text(err.Error()), 300))
}

func (e *Engine) logUsage(ctx context.Context, rec *model.ExtractionRecord, st *run, elapsed time.Duration) {
	p := e.search.Provider()
	ev := model.UsageEvent{
		Endpoint:      p.Name(),
		Model:         p.Model(),
		OperationType: OperationType,
		Tokens:        st.tokens,
		ElapsedMs:     elapsed.Milliseconds(),
		RetryCount:    st.retries,
		Success:       rec.Status != model.RecordStatusFailed,
		RequestMetadata: map[string]any{
			"school":  rec.School,
			"program": rec.Program,
		},
		CreatedAt: e.now().UTC(),
	}
	if len(st.tried) > 0 {
		ev.RequestMetadata["variations_tried"] = st.tried
	}
	if st.err != nil {
		ev.Error = st.err.Error()
	} else {
		ev.ResponseMetadata = map[string]any{
			"record_id":        rec.ID,
			"status":           string(rec.Status),
			"confidence":       string(rec.ConfidenceScore),
			"sources":          len(rec.ValidatedSources),
			"provider_calls":   st.calls,
			"program_searched": st.searched,
		}
		var review *model.ReviewUsage
		if rec.Verification != nil {
			ev.ResponseMetadata["verification_status"] = string(rec.Verification.Status)
			review = rec.Verification.Review
		}
		if review != nil {
			ev.RetryCount += review.Retries
			ev.ResponseMetadata["review_model"] = review.Model
			ev.ResponseMetadata["review_input_tokens"] = review.Tokens.InputTokens
			ev.ResponseMetadata["review_output_tokens"] = review.Tokens.OutputTokens
		}
		if e.cost != nil {
			usd := e.cost.Grounded(p.Name(), p.Model(), st.calls, st.tokens.InputTokens, st.tokens.OutputTokens)
			if review != nil {
				usd += e.cost.Claude(review.Model, review.Tokens.InputTokens, review.Tokens.OutputTokens)
			}
			ev.ResponseMetadata["estimated_cost_usd"] = usd
		}
	}

	if err := e.usage.Log(context.WithoutCancel(ctx), ev); err != nil {
		zap.L().Warn("extract: usage logging failed", zap.String("record_id", rec.ID), zap.Error(err))
	}
}

// cleanFields sanitizes every text field and normalizes the monetary ones.
func cleanFields(f model.ExtractedFields) model.ExtractedFields {
	f.TuitionAmount = sanitize.Currency(f.TuitionAmount)
	f.CostPerCredit = sanitize.Currency(f.CostPerCredit)
	f.TuitionPeriod = sanitize.OptionalText(f.TuitionPeriod)
	f.AcademicYear = sanitize.OptionalText(f.AcademicYear)
	f.TotalCredits = sanitize.OptionalText(f.TotalCredits)
	f.ProgramLength = sanitize.OptionalText(f.ProgramLength)
	f.ActualProgramName = sanitize.OptionalText(f.ActualProgramName)
	f.AdditionalFees = sanitize.OptionalText(f.AdditionalFees)
	f.Remarks = sanitize.OptionalText(f.Remarks)
	return f
}
