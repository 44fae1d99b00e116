package usecase

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"transit-console/internal/backup/domain/model"
	"transit-console/internal/backup/domain/repository"
	"transit-console/internal/shared/contextkeys"
	"transit-console/internal/shared/docpath"
	"transit-console/internal/shared/errors"
	"transit-console/internal/shared/logger"
)

// RestoreEngineConfig tunes a RestoreEngine.
type RestoreEngineConfig struct {
	ConductorConcurrency int
	// RecollectFallback rebuilds the snapshot from the live store when the
	// stored blob cannot be read.
	RecollectFallback bool
}

// RestoreEngine writes snapshots back into the live document store.
//
// There is no transaction around a restore: documents written by other
// clients while a restore runs can be overwritten or kept depending on
// which write lands last. Cancelling a restore keeps what was already written.
type RestoreEngine struct {
	store     repository.DocumentStore
	registry  *model.CollectionRegistry
	snapshots *SnapshotStore
	builder   *SnapshotBuilder
	audit     repository.AuditSink
	cfg       RestoreEngineConfig
	log       logger.Logger
	now       func() time.Time
}

// NewRestoreEngine creates a RestoreEngine. snapshots and builder are only
// needed by RestoreBackup.
func NewRestoreEngine(
	store repository.DocumentStore,
	registry *model.CollectionRegistry,
	snapshots *SnapshotStore,
	builder *SnapshotBuilder,
	audit repository.AuditSink,
	cfg RestoreEngineConfig,
	log logger.Logger,
) *RestoreEngine {
	if cfg.ConductorConcurrency <= 0 {
		cfg.ConductorConcurrency = DefaultConductorConcurrency
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &RestoreEngine{
		store:     store,
		registry:  registry,
		snapshots: snapshots,
		builder:   builder,
		audit:     audit,
		cfg:       cfg,
		log:       log.WithComponent("restore_engine"),
		now:       time.Now,
	}
}

// LookupBackup returns the metadata of a restorable backup.
func (e *RestoreEngine) LookupBackup(ctx context.Context, backupID string) (*model.BackupMetadata, error) {
	return e.snapshots.Get(ctx, backupID)
}

// RestoreBackup loads the snapshot stored for backupID and restores it.
func (e *RestoreEngine) RestoreBackup(ctx context.Context, backupID string, opts model.RestoreOptions, onProgress model.RestoreProgressFunc) *model.RestoreResult {
	tracker := newProgressTracker(contextkeys.RestoreID(ctx), backupID, modeOrDefault(opts.Mode), onProgress, e.now)
	tracker.phase(model.RestorePhaseInitializing, "Loading backup "+backupID)

	meta, err := e.snapshots.Get(ctx, backupID)
	if err != nil {
		return e.abort(ctx, tracker, backupID, fmt.Errorf("load backup metadata: %w", err))
	}

	snapshot, err := e.snapshots.Download(ctx, meta)
	if err != nil && e.cfg.RecollectFallback && e.builder != nil && ctx.Err() == nil {
		e.log.WithContext(ctx).WithError(err).Warnf("Snapshot %s unreadable, re-collecting from live store", meta.FileName)
		snapshot, err = e.builder.Build(ctx, meta.Collections, nil)
	}
	if err != nil {
		return e.abort(ctx, tracker, meta.FileName, fmt.Errorf("load snapshot: %w", err))
	}
	return e.run(ctx, tracker, snapshot, meta.FileName, opts)
}

// Restore writes an already loaded snapshot back into the store.
func (e *RestoreEngine) Restore(ctx context.Context, snapshot *model.SnapshotDocument, opts model.RestoreOptions, onProgress model.RestoreProgressFunc) *model.RestoreResult {
	label := "snapshot " + snapshot.Metadata.CreatedAt.UTC().Format(time.RFC3339)
	tracker := newProgressTracker(contextkeys.RestoreID(ctx), "", modeOrDefault(opts.Mode), onProgress, e.now)
	tracker.phase(model.RestorePhaseInitializing, "Preparing "+label)
	return e.run(ctx, tracker, snapshot, label, opts)
}

func modeOrDefault(mode model.RestoreMode) model.RestoreMode {
	if mode == "" {
		return model.RestoreModeMissingOnly
	}
	return mode
}

type restoreTarget struct {
	key  string
	path string
	slot *model.CollectionSnapshot
}

func (e *RestoreEngine) run(ctx context.Context, tracker *progressTracker, snapshot *model.SnapshotDocument, label string, opts model.RestoreOptions) *model.RestoreResult {
	mode := modeOrDefault(opts.Mode)
	if _, err := model.ParseRestoreMode(string(mode)); err != nil {
		return e.abort(ctx, tracker, label, err)
	}
	log := e.log.WithContext(ctx).WithFields(map[string]interface{}{"backup": label, "mode": mode})

	tracker.phase(model.RestorePhaseAnalyzing, "Counting documents")
	targets, err := e.plan(snapshot, opts.Collections)
	if err != nil {
		return e.abort(ctx, tracker, label, err)
	}
	totalDocs, totalConductors := 0, 0
	for _, t := range targets {
		if t.slot.Failed() {
			tracker.note(fmt.Sprintf("skipped %s: %s", t.key, t.slot.Error))
			continue
		}
		totalDocs += t.slot.DocumentCount()
		if t.slot.IsForest() {
			totalConductors += len(t.slot.Conductors)
		}
	}
	tracker.totals(totalDocs, totalConductors)
	log.Infof("Restoring %d documents across %d collections", totalDocs, len(targets))

	tracker.phase(model.RestorePhaseRestoring, "Restoring documents")
	w := &restoreWalk{engine: e, mode: mode, tracker: tracker}
	for _, t := range targets {
		if ctx.Err() != nil {
			break
		}
		if t.slot.Failed() {
			continue
		}
		if t.slot.IsForest() {
			w.restoreForest(ctx, t.path, t.slot.Conductors)
			continue
		}
		for _, doc := range t.slot.Documents {
			w.restoreDocument(ctx, docpath.Join(t.path, doc.ID), doc.Data)
		}
	}

	if ctx.Err() != nil {
		tracker.phase(model.RestorePhaseCancelled, "Restore cancelled")
		final := tracker.snapshot()
		log.Warnf("Restore cancelled after %d of %d documents", final.ProcessedDocuments, final.TotalDocuments)
		e.logActivity(ctx, model.ActivityRestoreCancelled, model.SeverityWarning,
			fmt.Sprintf("Restore of %s cancelled", label),
			map[string]interface{}{
				"backupFile":         label,
				"mode":               string(mode),
				"documentsRestored":  final.DocumentsRestored,
				"processedDocuments": final.ProcessedDocuments,
			})
		return resultFrom(final, false, "restore cancelled")
	}

	tracker.phase(model.RestorePhaseCompleted, "Restore completed")
	final := tracker.snapshot()
	log.Infof("Restore completed: %d restored, %d skipped, %d errors", final.DocumentsRestored, final.DocumentsSkipped, len(final.Errors))
	e.logActivity(ctx, model.ActivityBackupRestored, model.SeverityInfo,
		fmt.Sprintf("Restored %d documents from %s", final.DocumentsRestored, label),
		map[string]interface{}{
			"backupFile":        label,
			"mode":              string(mode),
			"documentsRestored": final.DocumentsRestored,
			"errorCount":        len(final.Errors),
		})
	return resultFrom(final, true, "")
}

// plan resolves which snapshot slots to restore and where they live.
func (e *RestoreEngine) plan(snapshot *model.SnapshotDocument, only []string) ([]restoreTarget, error) {
	keys := snapshot.OrderedKeys()
	if len(only) > 0 {
		for _, k := range only {
			if _, ok := snapshot.Data[k]; !ok {
				return nil, fmt.Errorf("%w: %q is not in this backup", errors.ErrUnknownCollection, k)
			}
		}
		keys = only
	}

	targets := make([]restoreTarget, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		slot := snapshot.Data[key]
		if slot == nil {
			continue
		}
		p, err := e.collectionPath(key, slot)
		if err != nil {
			return nil, err
		}
		targets = append(targets, restoreTarget{key: key, path: p, slot: slot})
	}
	return targets, nil
}

func (e *RestoreEngine) collectionPath(key string, slot *model.CollectionSnapshot) (string, error) {
	if e.registry != nil {
		if c, ok := e.registry.Lookup(key); ok {
			return c.Path, nil
		}
	}
	if !slot.IsForest() && slot.CollectionPath != "" && !slot.Failed() {
		return slot.CollectionPath, nil
	}
	if slot.Failed() {
		return "", nil
	}
	return "", fmt.Errorf("%w: cannot place %q", errors.ErrUnknownCollection, key)
}

func (e *RestoreEngine) abort(ctx context.Context, tracker *progressTracker, label string, err error) *model.RestoreResult {
	tracker.update(func(p *model.RestoreProgress) {
		p.Phase = model.RestorePhaseFailed
		p.CurrentItem = ""
		p.Errors = append(p.Errors, err.Error())
	})
	final := tracker.snapshot()
	e.log.WithContext(ctx).WithError(err).Errorf("Restore of %s failed", label)
	e.logActivity(ctx, model.ActivityRestoreFailed, model.SeverityError,
		fmt.Sprintf("Restore of %s failed: %v", label, err),
		map[string]interface{}{"backupFile": label, "mode": string(final.Mode), "error": err.Error()})
	return resultFrom(final, false, err.Error())
}

func resultFrom(p model.RestoreProgress, success bool, errMsg string) *model.RestoreResult {
	return &model.RestoreResult{
		Success:           success,
		Phase:             p.Phase,
		DocumentsRestored: p.DocumentsRestored,
		DocumentsSkipped:  p.DocumentsSkipped,
		Errors:            p.Errors,
		Error:             errMsg,
	}
}

func (e *RestoreEngine) logActivity(ctx context.Context, kind model.ActivityKind, severity model.ActivitySeverity, description string, metadata map[string]interface{}) {
	if e.audit == nil {
		return
	}
	e.audit.LogActivity(ctx, model.Activity{
		Kind:        kind,
		Description: description,
		Metadata:    metadata,
		Severity:    severity,
		OperatorID:  contextkeys.OperatorID(ctx),
		Timestamp:   e.now().UTC(),
	})
}

// writeOutcome tells whether a document write happened.
type writeOutcome int

const (
	outcomeWritten writeOutcome = iota
	outcomeSkipped
)

// apply writes data at path following mode. For missing-only and merge the
// existence check happens before the write on the same path.
func (e *RestoreEngine) apply(ctx context.Context, mode model.RestoreMode, path string, data model.DocumentData) (writeOutcome, error) {
	switch mode {
	case model.RestoreModeOverwrite:
		return outcomeWritten, e.store.SetDocument(ctx, path, data)

	case model.RestoreModeMerge:
		existing, err := e.store.GetDocument(ctx, path)
		if err != nil && !errors.IsNotFound(err) {
			return outcomeSkipped, fmt.Errorf("read existing: %w", err)
		}
		merged := make(model.DocumentData, len(existing)+len(data))
		for k, v := range existing {
			merged[k] = v
		}
		for k, v := range data {
			merged[k] = v
		}
		return outcomeWritten, e.store.SetDocument(ctx, path, merged)

	default:
		_, err := e.store.GetDocument(ctx, path)
		if err == nil {
			return outcomeSkipped, nil
		}
		if !errors.IsNotFound(err) {
			return outcomeSkipped, fmt.Errorf("read existing: %w", err)
		}
		return outcomeWritten, e.store.SetDocument(ctx, path, data)
	}
}

func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded))
}
