// Package batch runs extraction requests in bulk with caller-side pacing.
package batch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/tuition-research/internal/model"
)

// DefaultInterval is the pause between consecutive extraction starts.
const DefaultInterval = 2 * time.Second

// Extractor produces one record per request.
type Extractor interface {
	Extract(ctx context.Context, req model.ExtractionRequest) (*model.ExtractionRecord, error)
}

// Saver persists finished records.
type Saver interface {
	SaveRecord(ctx context.Context, rec *model.ExtractionRecord) error
}

// Summary reports the outcome of a batch run. Records keeps input order;
// entries are nil for requests that were rejected.
type Summary struct {
	Total      int                       `json:"total"`
	Succeeded  int                       `json:"succeeded"`
	NotFound   int                       `json:"not_found"`
	Failed     int                       `json:"failed"`
	Rejected   int                       `json:"rejected"`
	SaveErrors int                       `json:"save_errors"`
	Records    []*model.ExtractionRecord `json:"records"`
}

// Option configures a Runner.
type Option func(*Runner)

// WithInterval sets the minimum spacing between extraction starts. Zero
// disables pacing.
func WithInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d >= 0 {
			r.interval = d
		}
	}
}

// WithConcurrency bounds in-flight extractions.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithSaver persists every record the extractor returns.
func WithSaver(s Saver) Option {
	return func(r *Runner) { r.saver = s }
}

// Runner drives an Extractor over many requests.
type Runner struct {
	extractor   Extractor
	saver       Saver
	interval    time.Duration
	concurrency int
}

// NewRunner creates a Runner with sequential, 2s-paced defaults.
func NewRunner(ex Extractor, opts ...Option) *Runner {
	r := &Runner{
		extractor:   ex,
		interval:    DefaultInterval,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run extracts every request. Individual failures never stop the batch;
// only context cancellation returns an error, alongside the partial summary.
func (r *Runner) Run(ctx context.Context, reqs []model.ExtractionRequest) (*Summary, error) {
	sum := &Summary{
		Total:   len(reqs),
		Records: make([]*model.ExtractionRecord, len(reqs)),
	}
	if len(reqs) == 0 {
		return sum, nil
	}

	limit := rate.Inf
	if r.interval > 0 {
		limit = rate.Every(r.interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	zap.L().Info("batch: starting",
		zap.Int("requests", len(reqs)),
		zap.Int("concurrency", r.concurrency),
		zap.Duration("interval", r.interval),
	)

	var succeeded, notFound, failed, rejected, saveErrors atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, req := range reqs {
		if err := limiter.Wait(gctx); err != nil {
			break
		}
		g.Go(func() error {
			log := zap.L().With(zap.String("school", req.School), zap.String("program", req.Program))

			rec, err := r.extractor.Extract(gctx, req)
			if err != nil {
				rejected.Add(1)
				log.Warn("batch: request rejected", zap.Error(err))
				return nil // don't abort batch on individual failure
			}
			sum.Records[i] = rec

			switch rec.Status {
			case model.RecordStatusSuccess:
				succeeded.Add(1)
			case model.RecordStatusNotFound:
				notFound.Add(1)
			default:
				failed.Add(1)
			}

			if r.saver != nil {
				if err := r.saver.SaveRecord(context.WithoutCancel(gctx), rec); err != nil {
					saveErrors.Add(1)
					log.Error("batch: save record failed", zap.String("record_id", rec.ID), zap.Error(err))
				}
			}

			log.Info("batch: request complete",
				zap.String("status", string(rec.Status)),
				zap.String("confidence", string(rec.ConfidenceScore)),
			)
			return nil
		})
	}

	_ = g.Wait()

	sum.Succeeded = int(succeeded.Load())
	sum.NotFound = int(notFound.Load())
	sum.Failed = int(failed.Load())
	sum.Rejected = int(rejected.Load())
	sum.SaveErrors = int(saveErrors.Load())

	zap.L().Info("batch: complete",
		zap.Int("total", sum.Total),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("not_found", sum.NotFound),
		zap.Int("failed", sum.Failed),
		zap.Int("rejected", sum.Rejected),
	)

	if err := ctx.Err(); err != nil {
		return sum, eris.Wrap(err, "batch: cancelled")
	}
	return sum, nil
}
