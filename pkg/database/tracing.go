package database

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/george-bobby/app-opencats-sub001/pkg/database"

// traceQuery starts a span for a database call. The returned function must be
// called with the call's error when it completes. Calls slower than the
// writer's threshold are logged as warnings.
func (w *Writer) traceQuery(ctx context.Context, statement string) (context.Context, func(error)) {
	start := time.Now()
	operation := operationOf(statement)
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if w.slowThreshold <= 0 || w.logger == nil {
			return
		}
		if elapsed := time.Since(start); elapsed >= w.slowThreshold {
			attrs := []any{
				slog.String("operation", operation),
				slog.String("statement", statement),
				slog.Duration("duration", elapsed),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			w.logger.WarnContext(ctx, "slow query detected", attrs...)
		}
	}
}

// operationOf returns the lower-cased leading SQL keyword of a statement.
func operationOf(statement string) string {
	fields := strings.Fields(statement)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}
