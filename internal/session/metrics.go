package session

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	triggerRollover = "rollover"
	triggerEnd      = "end"
	triggerTimeout  = "timeout"
)

var (
	meter = otel.Meter("github.com/lukaszraczylo/genius-loci/internal/session")

	sessionsCreated, _ = meter.Int64Counter("loci.sessions.created",
		metric.WithDescription("Sessions registered"))

	sessionsArchived, _ = meter.Int64Counter("loci.sessions.archived",
		metric.WithDescription("Archive records written, by trigger"))

	turnsCompleted, _ = meter.Int64Counter("loci.turns.completed",
		metric.WithDescription("Conversation turns completed"))
)

func recordArchived(ctx context.Context, trigger string) {
	sessionsArchived.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", trigger)))
}
