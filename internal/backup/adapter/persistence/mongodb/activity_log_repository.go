package mongodb

import (
	"context"
	"fmt"
	"time"

	"transit-console/internal/backup/domain/model"
	"transit-console/internal/shared/docpath"
	"transit-console/internal/shared/eventbus"
	"transit-console/internal/shared/logger"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

// ActivityLogsPath is the tree collection audit entries are written to. It
// is the same collection the activityLogs logical collection backs up.
const ActivityLogsPath = "activity_logs"

// ActivityLogRepository persists audit activities as documents of the live tree.
type ActivityLogRepository struct {
	documents *DocumentStore
	logger    logger.Logger
	newID     func() string
}

// NewActivityLogRepository writes activities through a DocumentStore over db.
func NewActivityLogRepository(db *mongo.Database, log logger.Logger) *ActivityLogRepository {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ActivityLogRepository{
		documents: NewDocumentStore(db, log),
		logger:    log.WithComponent("activity_log_repository"),
		newID:     uuid.NewString,
	}
}

// Save stores activity under activity_logs/<id>, assigning an id when empty.
func (r *ActivityLogRepository) Save(ctx context.Context, activity model.Activity) (string, error) {
	if activity.ID == "" {
		activity.ID = r.newID()
	}
	if activity.Timestamp.IsZero() {
		activity.Timestamp = time.Now().UTC()
	}

	data := model.DocumentData{
		"kind":        string(activity.Kind),
		"description": activity.Description,
		"severity":    string(activity.Severity),
		"timestamp":   activity.Timestamp.UTC(),
	}
	if activity.OperatorID != "" {
		data["operatorId"] = activity.OperatorID
	}
	if len(activity.Metadata) > 0 {
		data["metadata"] = activity.Metadata
	}

	if err := r.documents.SetDocument(ctx, docpath.Join(ActivityLogsPath, activity.ID), data); err != nil {
		return "", fmt.Errorf("save activity %s: %w", activity.Kind, err)
	}
	return activity.ID, nil
}

// Handle is an eventbus.Handler for audit activity events.
func (r *ActivityLogRepository) Handle(ctx context.Context, event eventbus.Event) error {
	activity, ok := event.Data().(model.Activity)
	if !ok {
		r.logger.Warnf("Ignoring %s event with payload %T", event.Type(), event.Data())
		return nil
	}
	_, err := r.Save(ctx, activity)
	return err
}
