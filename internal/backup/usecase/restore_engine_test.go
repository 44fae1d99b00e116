package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"transit-console/internal/backup/adapter/persistence/memory"
	"transit-console/internal/backup/domain/model"
	"transit-console/internal/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestore_RoundTripPreservesConductorShape(t *testing.T) {
	source := memory.NewDocumentStore()
	source.Put("conductors/c1", model.DocumentData{"name": "P"})
	source.Put("conductors/c1/dailyTrips/D", model.DocumentData{"trip1": map[string]interface{}{"route": "R1"}})
	source.Put("conductors/c1/dailyTrips/D/trip1/tickets/tickets/t1", model.DocumentData{"fare": 10.0})
	source.Put("conductors/c1/dailyTrips/D/trip1/tickets/tickets/t2", model.DocumentData{"fare": 12.0})

	snap := jsonRoundTrip(t, buildSnapshot(t, source, "conductors"))

	target := memory.NewDocumentStore()
	result := newTestEngine(target, nil).Restore(context.Background(), snap, model.RestoreOptions{Mode: model.RestoreModeOverwrite}, nil)
	require.True(t, result.Success, result.Errors)
	assert.Equal(t, 4, result.DocumentsRestored)

	assert.Equal(t, []string{
		"conductors/c1",
		"conductors/c1/dailyTrips/D",
		"conductors/c1/dailyTrips/D/trip1/tickets/tickets/t1",
		"conductors/c1/dailyTrips/D/trip1/tickets/tickets/t2",
	}, target.Paths())

	day, err := target.GetDocument(context.Background(), "conductors/c1/dailyTrips/D")
	require.NoError(t, err)
	assert.Contains(t, day, "trip1")
}

func TestRestore_MissingOnlyIsIdempotent(t *testing.T) {
	source := memory.NewDocumentStore()
	seedTransitData(source)
	snap := jsonRoundTrip(t, buildSnapshot(t, source, "conductors", "routes"))

	target := memory.NewDocumentStore()
	target.Put("routes/r1", model.DocumentData{"name": "Edited"})
	engine := newTestEngine(target, nil)

	first := engine.Restore(context.Background(), snap, model.RestoreOptions{}, nil)
	require.True(t, first.Success)
	assert.Equal(t, seededDocuments-1, first.DocumentsRestored)
	assert.Equal(t, 1, first.DocumentsSkipped)
	stateAfterFirst := target.Paths()

	second := engine.Restore(context.Background(), snap, model.RestoreOptions{Mode: model.RestoreModeMissingOnly}, nil)
	require.True(t, second.Success)
	assert.Zero(t, second.DocumentsRestored)
	assert.Equal(t, seededDocuments, second.DocumentsSkipped)
	assert.Equal(t, stateAfterFirst, target.Paths())

	kept, err := target.GetDocument(context.Background(), "routes/r1")
	require.NoError(t, err)
	assert.Equal(t, "Edited", kept["name"])
}

func TestRestore_OverwriteIsDeterministic(t *testing.T) {
	source := memory.NewDocumentStore()
	seedTransitData(source)
	snap := buildSnapshot(t, source, "routes")

	target := memory.NewDocumentStore()
	target.Put("routes/r1", model.DocumentData{"name": "Edited", "extra": true})
	engine := newTestEngine(target, nil)

	for i := 0; i < 2; i++ {
		result := engine.Restore(context.Background(), snap, model.RestoreOptions{Mode: model.RestoreModeOverwrite}, nil)
		require.True(t, result.Success)
		assert.Equal(t, 2, result.DocumentsRestored)

		r1, err := target.GetDocument(context.Background(), "routes/r1")
		require.NoError(t, err)
		assert.Equal(t, model.DocumentData{"name": "North"}, r1)
	}
}

func TestRestore_MergeLetsSnapshotWin(t *testing.T) {
	source := memory.NewDocumentStore()
	source.Put("routes/r1", model.DocumentData{"name": "North", "stops": 5.0})
	snap := buildSnapshot(t, source, "routes")

	target := memory.NewDocumentStore()
	target.Put("routes/r1", model.DocumentData{"name": "Edited", "color": "red"})

	result := newTestEngine(target, nil).Restore(context.Background(), snap, model.RestoreOptions{Mode: model.RestoreModeMerge}, nil)
	require.True(t, result.Success)

	r1, err := target.GetDocument(context.Background(), "routes/r1")
	require.NoError(t, err)
	assert.Equal(t, model.DocumentData{"name": "North", "stops": 5.0, "color": "red"}, r1)
}

func TestRestore_ConvertsTimestampsToNativeType(t *testing.T) {
	source := memory.NewDocumentStore()
	source.Put("activity_logs/a1", model.DocumentData{
		"submittedAt": submittedAt,
		"history":     []interface{}{map[string]interface{}{"at": submittedAt}},
	})
	snap := jsonRoundTrip(t, buildSnapshot(t, source, "activityLogs"))

	target := memory.NewDocumentStore()
	result := newTestEngine(target, nil).Restore(context.Background(), snap, model.RestoreOptions{}, nil)
	require.True(t, result.Success)

	doc, err := target.GetDocument(context.Background(), "activity_logs/a1")
	require.NoError(t, err)
	got, ok := doc["submittedAt"].(time.Time)
	require.True(t, ok, "got %T", doc["submittedAt"])
	assert.True(t, got.Equal(submittedAt))

	nested := doc["history"].([]interface{})[0].(map[string]interface{})
	_, ok = nested["at"].(time.Time)
	assert.True(t, ok)
}

func TestRestore_PerDocumentFailuresDoNotAbort(t *testing.T) {
	source := memory.NewDocumentStore()
	seedTransitData(source)
	snap := buildSnapshot(t, source, "conductors", "routes")

	target := memory.NewDocumentStore()
	badPath := "conductors/c1/dailyTrips/2024-05-01/trip1/tickets/tickets/t1"
	target.FailOn(memory.OpSet, badPath, fmt.Errorf("quota exceeded"))
	audit := &recordingAudit{}

	var last model.RestoreProgress
	result := newTestEngine(target, audit).Restore(context.Background(), snap, model.RestoreOptions{Mode: model.RestoreModeOverwrite}, func(p model.RestoreProgress) {
		last = p
	})

	require.True(t, result.Success)
	assert.Equal(t, seededDocuments-1, result.DocumentsRestored)
	assert.Equal(t, []string{"failed to restore " + badPath + ": quota exceeded"}, result.Errors)

	assert.Equal(t, model.RestorePhaseCompleted, last.Phase)
	assert.Equal(t, seededDocuments, last.TotalDocuments)
	assert.Equal(t, seededDocuments, last.ProcessedDocuments)
	assert.Equal(t, 2, last.TotalConductors)
	assert.Equal(t, 2, last.ProcessedConductors)

	restored := audit.ofKind(model.ActivityBackupRestored)
	require.Len(t, restored, 1)
	assert.Equal(t, "overwrite", restored[0].Metadata["mode"])
	assert.Equal(t, seededDocuments-1, restored[0].Metadata["documentsRestored"])
	assert.Equal(t, 1, restored[0].Metadata["errorCount"])
}

func TestRestore_ProgressIsMonotonic(t *testing.T) {
	source := memory.NewDocumentStore()
	seedTransitData(source)
	snap := buildSnapshot(t, source, "conductors", "routes")

	var phases []model.RestorePhase
	processed := -1
	result := newTestEngine(memory.NewDocumentStore(), nil).Restore(context.Background(), snap, model.RestoreOptions{}, func(p model.RestoreProgress) {
		if len(phases) == 0 || phases[len(phases)-1] != p.Phase {
			phases = append(phases, p.Phase)
		}
		assert.GreaterOrEqual(t, p.ProcessedDocuments, processed)
		if p.TotalDocuments > 0 {
			assert.LessOrEqual(t, p.ProcessedDocuments, p.TotalDocuments)
		}
		processed = p.ProcessedDocuments
	})
	require.True(t, result.Success)
	assert.Equal(t, []model.RestorePhase{
		model.RestorePhaseInitializing,
		model.RestorePhaseAnalyzing,
		model.RestorePhaseRestoring,
		model.RestorePhaseCompleted,
	}, phases[len(phases)-4:])
}

func TestRestore_SkipsErrorMarkers(t *testing.T) {
	snap := &model.SnapshotDocument{
		Metadata: model.SnapshotMetadata{Collections: []string{"devices", "routes"}},
		Data: map[string]*model.CollectionSnapshot{
			"devices": model.NewErrorSnapshot(fmt.Errorf("permission denied")),
			"routes":  model.NewFlatSnapshot("routes", []model.DocumentEntry{{ID: "r1", Data: model.DocumentData{"name": "North"}}}),
		},
	}

	target := memory.NewDocumentStore()
	result := newTestEngine(target, nil).Restore(context.Background(), snap, model.RestoreOptions{}, nil)
	require.True(t, result.Success)
	assert.Equal(t, 1, result.DocumentsRestored)
	assert.Equal(t, []string{"skipped devices: permission denied"}, result.Errors)
}

func TestRestore_LimitsToSelectedCollections(t *testing.T) {
	source := memory.NewDocumentStore()
	seedTransitData(source)
	snap := buildSnapshot(t, source, "conductors", "routes")

	target := memory.NewDocumentStore()
	engine := newTestEngine(target, nil)
	result := engine.Restore(context.Background(), snap, model.RestoreOptions{Collections: []string{"routes"}}, nil)
	require.True(t, result.Success)
	assert.Equal(t, []string{"routes/r1", "routes/r2"}, target.Paths())

	result = engine.Restore(context.Background(), snap, model.RestoreOptions{Collections: []string{"devices"}}, nil)
	assert.False(t, result.Success)
	assert.Equal(t, model.RestorePhaseFailed, result.Phase)
	assert.Contains(t, result.Error, "devices")
}

func TestRestore_CancellationIsTerminal(t *testing.T) {
	source := memory.NewDocumentStore()
	seedTransitData(source)
	snap := buildSnapshot(t, source, "conductors", "routes")

	ctx, cancel := context.WithCancel(context.Background())
	audit := &recordingAudit{}
	target := memory.NewDocumentStore()
	writes := 0
	result := newTestEngine(target, audit).Restore(ctx, snap, model.RestoreOptions{Mode: model.RestoreModeOverwrite}, func(p model.RestoreProgress) {
		if p.DocumentsRestored > writes {
			writes = p.DocumentsRestored
			if writes == 3 {
				cancel()
			}
		}
	})

	assert.False(t, result.Success)
	assert.Equal(t, model.RestorePhaseCancelled, result.Phase)
	assert.Less(t, result.DocumentsRestored, seededDocuments)
	assert.Equal(t, result.DocumentsRestored, target.Writes(), "written documents are kept")
	assert.Len(t, audit.ofKind(model.ActivityRestoreCancelled), 1)
	assert.Empty(t, audit.ofKind(model.ActivityBackupRestored))
}

func TestRestoreBackup_LoadsStoredSnapshot(t *testing.T) {
	s := newTestStack(t)
	seedTransitData(s.docs)
	ctx := context.Background()
	meta, err := s.service.CreateBackup(ctx, []string{"conductors", "routes"}, nil)
	require.NoError(t, err)

	require.NoError(t, s.docs.DeleteDocument(ctx, "conductors/c1/dailyTrips/2024-05-01/trip1/tickets/tickets/t2"))
	require.NoError(t, s.docs.DeleteDocument(ctx, "routes/r2"))

	result := s.engine.RestoreBackup(ctx, meta.ID, model.RestoreOptions{}, nil)
	require.True(t, result.Success, result.Errors)
	assert.Equal(t, 2, result.DocumentsRestored)
	assert.Equal(t, seededDocuments-2, result.DocumentsSkipped)

	restored, err := s.docs.GetDocument(ctx, "conductors/c1/dailyTrips/2024-05-01/trip1/tickets/tickets/t2")
	require.NoError(t, err)
	assert.IsType(t, time.Time{}, restored["submittedAt"])

	events := s.audit.ofKind(model.ActivityBackupRestored)
	require.Len(t, events, 1)
	assert.Equal(t, meta.FileName, events[0].Metadata["backupFile"])
}

func TestRestoreBackup_PreservesIntegerFields(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	s.docs.Put("routes/r1", model.DocumentData{
		"stops": int64(12),
		"big":   int64(9007199254740993),
		"fare":  2.5,
		"legs":  []interface{}{int64(1), int64(2)},
	})

	meta, err := s.service.CreateBackup(ctx, []string{"routes"}, nil)
	require.NoError(t, err)
	s.docs.Put("routes/r1", model.DocumentData{"stops": int64(0)})

	result := s.engine.RestoreBackup(ctx, meta.ID, model.RestoreOptions{Mode: model.RestoreModeOverwrite}, nil)
	require.True(t, result.Success, result.Errors)

	restored, err := s.docs.GetDocument(ctx, "routes/r1")
	require.NoError(t, err)
	assert.Equal(t, int64(12), restored["stops"])
	assert.Equal(t, int64(9007199254740993), restored["big"])
	assert.Equal(t, 2.5, restored["fare"])
	assert.Equal(t, []interface{}{int64(1), int64(2)}, restored["legs"])
}

func TestRestoreBackup_FatalFailures(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	result := s.engine.RestoreBackup(ctx, "backup_404", model.RestoreOptions{}, nil)
	assert.False(t, result.Success)
	assert.Equal(t, model.RestorePhaseFailed, result.Phase)
	assert.Contains(t, result.Error, errors.ErrBackupNotFound.Error())
	assert.Len(t, s.audit.ofKind(model.ActivityRestoreFailed), 1)

	seedTransitData(s.docs)
	meta, err := s.service.CreateBackup(ctx, []string{"routes"}, nil)
	require.NoError(t, err)
	require.NoError(t, s.blobs.Delete(ctx, meta.StoragePath))

	result = s.engine.RestoreBackup(ctx, meta.ID, model.RestoreOptions{}, nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, errors.ErrBlobNotFound.Error())
	assert.Zero(t, s.docs.Writes(), "no writes before the failure")
}

func TestRestoreBackup_RecollectFallback(t *testing.T) {
	s := newTestStack(t)
	s.engine.cfg.RecollectFallback = true
	seedTransitData(s.docs)
	ctx := context.Background()

	meta, err := s.service.CreateBackup(ctx, []string{"routes"}, nil)
	require.NoError(t, err)
	require.NoError(t, s.blobs.Delete(ctx, meta.StoragePath))

	result := s.engine.RestoreBackup(ctx, meta.ID, model.RestoreOptions{}, nil)
	require.True(t, result.Success)
	assert.Zero(t, result.DocumentsRestored)
	assert.Equal(t, 2, result.DocumentsSkipped)
}
