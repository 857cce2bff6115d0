package workflows

import (
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"
)

// Registry is the subset of worker.Worker used to register workflows and activities.
type Registry interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// Register adds BatchExtractWorkflow and the extraction activity to r.
func Register(r Registry, acts *Activities) {
	r.RegisterWorkflowWithOptions(BatchExtractWorkflow, workflow.RegisterOptions{Name: BatchExtractWorkflowName})
	r.RegisterActivityWithOptions(acts.ExtractTuition, activity.RegisterOptions{Name: ExtractActivityName})
}

// ZapLogger adapts a zap logger to Temporal's log.Logger interface.
type ZapLogger struct {
	s *zap.SugaredLogger
}

// NewZapLogger wraps l; a nil l uses the global logger.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.L()
	}
	return &ZapLogger{s: l.Sugar()}
}

func (z *ZapLogger) Debug(msg string, keyvals ...interface{}) { z.s.Debugw(msg, keyvals...) }
func (z *ZapLogger) Info(msg string, keyvals ...interface{})  { z.s.Infow(msg, keyvals...) }
func (z *ZapLogger) Warn(msg string, keyvals ...interface{})  { z.s.Warnw(msg, keyvals...) }
func (z *ZapLogger) Error(msg string, keyvals ...interface{}) { z.s.Errorw(msg, keyvals...) }
