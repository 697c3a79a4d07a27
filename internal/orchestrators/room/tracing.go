package room

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/replication"
)

func (r *Room) startCommandSpan(ctx context.Context, playerID string, cmd replication.Command) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return r.tracer.Start(ctx, "room.command",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("room.id", r.id),
			attribute.String("player.id", playerID),
			attribute.String("command.type", string(cmd.CommandType())),
			attribute.Int64("room.seq", r.sess.Seq()),
		),
	)
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetAttributes(attribute.String("error.kind", string(errors.GetKind(err))))
	span.SetStatus(codes.Error, errors.GetMessage(err))
}
