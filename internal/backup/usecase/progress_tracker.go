package usecase

import (
	"fmt"
	"sync"
	"time"

	"transit-console/internal/backup/domain/model"
)

// progressTracker owns the RestoreProgress of one run and reports a copy
// after every change. Reports are delivered in order.
type progressTracker struct {
	mu   sync.Mutex
	p    model.RestoreProgress
	emit model.RestoreProgressFunc
	now  func() time.Time
}

func newProgressTracker(restoreID, backupID string, mode model.RestoreMode, emit model.RestoreProgressFunc, now func() time.Time) *progressTracker {
	start := now().UTC()
	t := &progressTracker{
		p: model.RestoreProgress{
			RestoreID: restoreID,
			BackupID:  backupID,
			Mode:      mode,
			Phase:     model.RestorePhaseInitializing,
			Errors:    []string{},
			StartTime: start,
			UpdatedAt: start,
		},
		emit: emit,
		now:  now,
	}
	return t
}

func (t *progressTracker) update(fn func(p *model.RestoreProgress)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.p)
	t.p.UpdatedAt = t.now().UTC()
	if t.emit != nil {
		t.emit(t.p.Clone())
	}
}

func (t *progressTracker) phase(phase model.RestorePhase, item string) {
	t.update(func(p *model.RestoreProgress) {
		p.Phase = phase
		p.CurrentItem = item
	})
}

func (t *progressTracker) totals(documents, conductors int) {
	t.update(func(p *model.RestoreProgress) {
		p.TotalDocuments = documents
		p.TotalConductors = conductors
	})
}

func (t *progressTracker) restored(path string) {
	t.update(func(p *model.RestoreProgress) {
		p.ProcessedDocuments++
		p.DocumentsRestored++
		p.CurrentItem = path
	})
}

func (t *progressTracker) skipped(path string) {
	t.update(func(p *model.RestoreProgress) {
		p.ProcessedDocuments++
		p.DocumentsSkipped++
		p.CurrentItem = path
	})
}

func (t *progressTracker) failed(path string, err error) {
	t.update(func(p *model.RestoreProgress) {
		p.ProcessedDocuments++
		p.CurrentItem = path
		p.Errors = append(p.Errors, fmt.Sprintf("failed to restore %s: %v", path, err))
	})
}

func (t *progressTracker) note(msg string) {
	t.update(func(p *model.RestoreProgress) {
		p.Errors = append(p.Errors, msg)
	})
}

func (t *progressTracker) conductorDone(conductorID string) {
	t.update(func(p *model.RestoreProgress) {
		p.ProcessedConductors++
		p.CurrentItem = "conductor " + conductorID
	})
}

func (t *progressTracker) snapshot() model.RestoreProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.p.Clone()
}
