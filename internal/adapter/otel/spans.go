package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "botforge"

// StartTurnSpan starts a span for one conversational turn.
func StartTurnSpan(ctx context.Context, chatbotID, conversationID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "turn",
		trace.WithAttributes(
			attribute.String("chatbot.id", chatbotID),
			attribute.String("conversation.id", conversationID),
		),
	)
}

// StartToolCallSpan starts a span for a tool call within a turn.
func StartToolCallSpan(ctx context.Context, callID, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "toolcall",
		trace.WithAttributes(
			attribute.String("toolcall.id", callID),
			attribute.String("toolcall.tool", tool),
		),
	)
}

// StartRetrievalSpan starts a span for a knowledge search.
func StartRetrievalSpan(ctx context.Context, chatbotID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "retrieval",
		trace.WithAttributes(
			attribute.String("chatbot.id", chatbotID),
		),
	)
}

// StartIngestSpan starts a span for a document ingest.
func StartIngestSpan(ctx context.Context, chatbotID, documentID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "ingest",
		trace.WithAttributes(
			attribute.String("chatbot.id", chatbotID),
			attribute.String("document.id", documentID),
		),
	)
}
