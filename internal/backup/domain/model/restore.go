package model

import (
	"fmt"
	"strings"
	"time"

	"transit-console/internal/shared/errors"
)

// RestoreMode controls how existing documents are treated during a restore.
type RestoreMode string

const (
	RestoreModeMissingOnly RestoreMode = "missing-only"
	RestoreModeOverwrite   RestoreMode = "overwrite"
	RestoreModeMerge       RestoreMode = "merge"
)

// ParseRestoreMode accepts the canonical names plus common spellings. An
// empty string selects missing-only.
func ParseRestoreMode(s string) (RestoreMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "missing-only", "missing_only", "missingonly":
		return RestoreModeMissingOnly, nil
	case "overwrite":
		return RestoreModeOverwrite, nil
	case "merge":
		return RestoreModeMerge, nil
	}
	return "", fmt.Errorf("%w: %q", errors.ErrInvalidRestoreMode, s)
}

// RestorePhase is the lifecycle stage of a restore run.
type RestorePhase string

const (
	RestorePhaseInitializing RestorePhase = "initializing"
	RestorePhaseAnalyzing    RestorePhase = "analyzing"
	RestorePhaseRestoring    RestorePhase = "restoring"
	RestorePhaseCompleted    RestorePhase = "completed"
	RestorePhaseCancelled    RestorePhase = "cancelled"
	RestorePhaseFailed       RestorePhase = "failed"
)

// Terminal reports whether no further progress follows this phase.
func (p RestorePhase) Terminal() bool {
	return p == RestorePhaseCompleted || p == RestorePhaseCancelled || p == RestorePhaseFailed
}

// RestoreProgress is a point-in-time view of a restore run.
type RestoreProgress struct {
	RestoreID           string       `json:"restoreId,omitempty"`
	BackupID            string       `json:"backupId,omitempty"`
	Mode                RestoreMode  `json:"mode"`
	Phase               RestorePhase `json:"phase"`
	TotalDocuments      int          `json:"totalDocuments"`
	ProcessedDocuments  int          `json:"processedDocuments"`
	DocumentsRestored   int          `json:"documentsRestored"`
	DocumentsSkipped    int          `json:"documentsSkipped"`
	TotalConductors     int          `json:"totalConductors"`
	ProcessedConductors int          `json:"processedConductors"`
	CurrentItem         string       `json:"currentItem,omitempty"`
	Errors              []string     `json:"errors"`
	StartTime           time.Time    `json:"startTime"`
	UpdatedAt           time.Time    `json:"updatedAt"`
}

// Percentage returns processed documents as a share of the total.
func (p RestoreProgress) Percentage() float64 {
	if p.TotalDocuments == 0 {
		if p.Phase == RestorePhaseCompleted {
			return 100
		}
		return 0
	}
	return float64(p.ProcessedDocuments) * 100 / float64(p.TotalDocuments)
}

// Clone returns a copy that shares no slices with p.
func (p RestoreProgress) Clone() RestoreProgress {
	p.Errors = append([]string{}, p.Errors...)
	return p
}

// RestoreProgressFunc receives restore progress snapshots.
type RestoreProgressFunc func(RestoreProgress)

// RestoreResult is the outcome of a restore run.
type RestoreResult struct {
	Success           bool         `json:"success"`
	Phase             RestorePhase `json:"phase"`
	DocumentsRestored int          `json:"documentsRestored"`
	DocumentsSkipped  int          `json:"documentsSkipped"`
	Errors            []string     `json:"errors"`
	Error             string       `json:"error,omitempty"`
}

// RestoreOptions parameterise a restore run.
type RestoreOptions struct {
	Mode RestoreMode
	// Collections limits the restore to these snapshot keys. Empty means all.
	Collections []string
}
