package model

import "time"

// ActivityKind names an audited action.
type ActivityKind string

const (
	ActivityBackupCreated    ActivityKind = "backup_created"
	ActivityBackupFailed     ActivityKind = "backup_failed"
	ActivityBackupDeleted    ActivityKind = "backup_deleted"
	ActivityBackupsExpired   ActivityKind = "backups_expired_cleanup"
	ActivityBackupRestored   ActivityKind = "backup_restored"
	ActivityRestoreFailed    ActivityKind = "restore_failed"
	ActivityRestoreCancelled ActivityKind = "restore_cancelled"
)

// ActivitySeverity grades an audit entry.
type ActivitySeverity string

const (
	SeverityInfo    ActivitySeverity = "info"
	SeverityWarning ActivitySeverity = "warning"
	SeverityError   ActivitySeverity = "error"
)

// Activity is one audit trail entry.
type Activity struct {
	ID          string                 `json:"id,omitempty" bson:"_id,omitempty"`
	Kind        ActivityKind           `json:"kind" bson:"kind"`
	Description string                 `json:"description" bson:"description"`
	Metadata    map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Severity    ActivitySeverity       `json:"severity" bson:"severity"`
	OperatorID  string                 `json:"operatorId,omitempty" bson:"operatorId,omitempty"`
	Timestamp   time.Time              `json:"timestamp" bson:"timestamp"`
}
