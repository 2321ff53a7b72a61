package usecase

import (
	"context"
	"time"

	"github.com/sellerhub/stockengine/internal/observability"
	"github.com/sellerhub/stockengine/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const spanPrefix = "UC."

// Op carries the per-invocation observability state of a use case: one span,
// RED metrics and a single use_case_done log written when the op ends.
type Op struct {
	span         trace.Span
	start        time.Time
	useCase      string
	outcome      string
	status       string
	logger       observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

// Start opens a span named UC.<spanName>, binds a use-case scoped logger to
// the returned context and arms the RED instruments. End must be deferred.
func Start(
	ctx context.Context,
	tel observability.Telemetry,
	base observability.Logger,
	useCase, spanName string,
	attrs ...attribute.KeyValue,
) (context.Context, *Op) {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	if base == nil {
		base = tel.Logger()
	}

	ctx, span := tel.Tracer().Start(ctx, spanPrefix+spanName,
		append(attrs, attribute.String("use_case", useCase))...)

	logger := logctx.FromOr(ctx, base).With(observability.F("use_case", useCase))
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		logger = logger.With(
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	ctx = logctx.With(ctx, logger)

	return ctx, &Op{
		span:         span,
		start:        time.Now(),
		useCase:      useCase,
		outcome:      "success",
		status:       "OK",
		logger:       logger,
		reqCounter:   tel.Counter(observability.MUsecaseRequests),
		durHistogram: tel.Histogram(observability.MUsecaseDuration),
	}
}

// Fail marks the op as failed with a machine-readable status and passes the
// error through so call sites stay one-liners.
func (o *Op) Fail(status string, err error) error {
	o.outcome, o.status = "error", status
	return err
}

// Logger returns the use-case scoped logger.
func (o *Op) Logger() observability.Logger { return o.logger }

// Note records a span attribute on the in-flight op.
func (o *Op) Note(attrs ...attribute.KeyValue) {
	if o.span != nil {
		o.span.SetAttributes(attrs...)
	}
}

// End closes the span, records metrics and writes the tail log. It takes a
// pointer to the named error result so a plain `defer op.End(&err)` observes
// the final value.
func (o *Op) End(errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	if err != nil && o.outcome == "success" {
		o.outcome, o.status = "error", "ERROR"
	}
	latency := time.Since(o.start).Seconds()

	if o.span != nil {
		if err != nil {
			o.span.RecordError(err)
			o.span.SetStatus(codes.Error, o.status)
		} else {
			o.span.SetStatus(codes.Ok, o.status)
		}
		o.span.End()
	}

	if o.reqCounter != nil {
		o.reqCounter.Add(1,
			observability.L("use_case", o.useCase),
			observability.L("outcome", o.outcome),
		)
	}
	if o.durHistogram != nil {
		o.durHistogram.Observe(latency,
			observability.L("use_case", o.useCase),
		)
	}

	fields := []observability.Field{
		observability.F("outcome", o.outcome),
		observability.F("status", o.status),
		observability.F("latency_seconds", latency),
	}
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	o.logger.Info("use_case_done", fields...)
}
