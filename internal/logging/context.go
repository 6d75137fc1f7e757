package logging

import (
	"context"
	"log/slog"

	"blendflow/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldJobID is the standardized structured logging key for batch job identifiers.
	FieldJobID = "job_id"
	// FieldJobName is the human-readable job name from the batch descriptor.
	FieldJobName = "job_name"
	// FieldStage is the standardized structured logging key for workflow stage names.
	FieldStage = "stage"
	// FieldDependency names the external dependency a stage calls.
	FieldDependency = "dependency"
	// FieldAttempt is the 1-based attempt number within a stage invocation.
	FieldAttempt = "attempt"
	// FieldCorrelationID is the standardized structured logging key for the batch run identifier.
	FieldCorrelationID = "correlation_id"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
	// FieldEventType classifies a record for filtering (stage_failure, breaker_transition, ...).
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step.
	FieldErrorHint = "error_hint"
	// FieldErrorKind is the failure classification (transient, permanent, ...).
	FieldErrorKind = "error_kind"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 5)
	if id, ok := services.JobIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldJobID, id))
	}
	if name, ok := services.JobNameFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldJobName, name))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if dep, ok := services.DependencyFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldDependency, dep))
	}
	if rid, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
