// Package audit delivers operator activity to the audit trail.
package audit

import (
	"context"
	"time"

	"transit-console/internal/backup/domain/model"
	"transit-console/internal/shared/contextkeys"
	"transit-console/internal/shared/eventbus"
)

const eventSource = "backup"

// BusAuditSink publishes activities on the event bus; subscribers persist them.
type BusAuditSink struct {
	bus eventbus.Publisher
	now func() time.Time
}

// NewBusAuditSink creates a sink publishing to bus.
func NewBusAuditSink(bus eventbus.Publisher) *BusAuditSink {
	return &BusAuditSink{bus: bus, now: time.Now}
}

// LogActivity fills in the timestamp and operator and publishes without waiting.
func (s *BusAuditSink) LogActivity(ctx context.Context, activity model.Activity) {
	if activity.Timestamp.IsZero() {
		activity.Timestamp = s.now().UTC()
	}
	if activity.OperatorID == "" {
		activity.OperatorID = contextkeys.OperatorID(ctx)
	}
	if activity.Severity == "" {
		activity.Severity = model.SeverityInfo
	}
	s.bus.PublishAndForget(ctx, eventbus.NewBasicEvent(eventbus.EventTypeAuditActivity, activity, eventSource))
}
