package main

import (
	"context"
	"log/slog"

	"github.com/dukex/stepflow/pkg/eventbus"
	"github.com/dukex/stepflow/pkg/events"
)

var auditedEvents = []events.EventType{
	events.WorkflowSavedEvent,
	events.WorkflowPublishedEvent,
	events.WorkflowUnpublishedEvent,
	events.WorkflowDeletedEvent,
	events.NodeStatusChangedEvent,
	events.EdgeDecidedEvent,
	events.ApprovalDigestEvent,
}

// subscribeAudit logs every domain event that reaches the bus.
func subscribeAudit(ctx context.Context, bus eventbus.EventSubscriber, logger *slog.Logger) error {
	logger = logger.With("module", "audit")

	for _, eventType := range auditedEvents {
		err := bus.Handle(eventType, func(ctx context.Context, event eventbus.Event) error {
			logger.InfoContext(ctx, "Event received", "event_type", eventType, "event", event)

			return nil
		})
		if err != nil {
			return err
		}
	}

	return bus.Subscribe(ctx)
}
