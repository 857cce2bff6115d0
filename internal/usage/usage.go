// Package usage delivers per-request AI usage events to logging sinks.
package usage

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tuition-research/internal/model"
)

// Logger records one usage event. Implementations must be safe for
// concurrent use.
type Logger interface {
	Log(ctx context.Context, ev model.UsageEvent) error
}

// ZapLogger writes usage events to a zap logger at info level.
type ZapLogger struct {
	log *zap.Logger
}

// NewZapLogger creates a ZapLogger. A nil logger uses zap.L() at call time.
func NewZapLogger(log *zap.Logger) *ZapLogger {
	return &ZapLogger{log: log}
}

// Log implements Logger.
func (z *ZapLogger) Log(_ context.Context, ev model.UsageEvent) error {
	log := z.log
	if log == nil {
		log = zap.L()
	}
	fields := []zap.Field{
		zap.String("endpoint", ev.Endpoint),
		zap.String("model", ev.Model),
		zap.String("operation", ev.OperationType),
		zap.Int64("input_tokens", ev.Tokens.InputTokens),
		zap.Int64("output_tokens", ev.Tokens.OutputTokens),
		zap.Int64("elapsed_ms", ev.ElapsedMs),
		zap.Int("retry_count", ev.RetryCount),
		zap.Bool("success", ev.Success),
	}
	if ev.Error != "" {
		fields = append(fields, zap.String("error", ev.Error))
	}
	if ev.ResponseMetadata != nil {
		fields = append(fields, zap.Any("response_metadata", ev.ResponseMetadata))
	}
	log.Info("usage: ai call", fields...)
	return nil
}

// Sink is the persistence side of StoreLogger.
type Sink interface {
	LogUsage(ctx context.Context, ev model.UsageEvent) error
}

// StoreLogger persists usage events.
type StoreLogger struct {
	sink Sink
}

// NewStoreLogger creates a StoreLogger.
func NewStoreLogger(sink Sink) *StoreLogger {
	return &StoreLogger{sink: sink}
}

// Log implements Logger.
func (s *StoreLogger) Log(ctx context.Context, ev model.UsageEvent) error {
	if err := s.sink.LogUsage(ctx, ev); err != nil {
		return eris.Wrap(err, "usage: store event")
	}
	return nil
}

// Multi fans an event out to every logger. All loggers are called; their
// errors are joined.
type Multi []Logger

// Log implements Logger.
func (m Multi) Log(ctx context.Context, ev model.UsageEvent) error {
	var errs []error
	for _, l := range m {
		if l == nil {
			continue
		}
		if err := l.Log(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

// Log implements Logger.
func (Nop) Log(context.Context, model.UsageEvent) error { return nil }
