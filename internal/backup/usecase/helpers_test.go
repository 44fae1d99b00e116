package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"transit-console/internal/backup/adapter/persistence/memory"
	"transit-console/internal/backup/domain/model"
	"transit-console/internal/backup/domain/repository"

	"github.com/stretchr/testify/require"
)

var submittedAt = time.Unix(1700000000, 0).UTC()

type recordingAudit struct {
	mu         sync.Mutex
	activities []model.Activity
}

func (r *recordingAudit) LogActivity(_ context.Context, a model.Activity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activities = append(r.activities, a)
}

func (r *recordingAudit) ofKind(kind model.ActivityKind) []model.Activity {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Activity
	for _, a := range r.activities {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// seedTransitData writes two conductors and two routes: ten documents in all.
func seedTransitData(store *memory.DocumentStore) {
	store.Put("conductors/c1", model.DocumentData{"name": "Ana", "hiredAt": submittedAt})
	store.Put("conductors/c1/dailyTrips/2024-05-01", model.DocumentData{
		"trip1":     map[string]interface{}{"route": "R1"},
		"trip2":     map[string]interface{}{"route": "R2"},
		"tripNotes": "hello",
		"total":     2,
	})
	store.Put("conductors/c1/dailyTrips/2024-05-01/trip1/tickets/tickets/t1", model.DocumentData{"fare": 15.0, "submittedAt": submittedAt})
	store.Put("conductors/c1/dailyTrips/2024-05-01/trip1/tickets/tickets/t2", model.DocumentData{"fare": 20.0, "submittedAt": submittedAt})
	store.Put("conductors/c1/preTickets/p1", model.DocumentData{"seat": "4A"})
	store.Put("conductors/c1/remittance/2024-05-01", model.DocumentData{"amount": 35.0})
	store.Put("conductors/c1/remittance/2024-05-01/tickets/r1", model.DocumentData{"fare": 15.0})
	store.Put("conductors/c2", model.DocumentData{"name": "Ben"})
	store.Put("routes/r1", model.DocumentData{"name": "North"})
	store.Put("routes/r2", model.DocumentData{"name": "South"})
}

const seededDocuments = 10

func newTestBuilder(store repository.DocumentStore) *SnapshotBuilder {
	return NewSnapshotBuilder(
		model.DefaultCollections(),
		NewTreeWalker(store, nil),
		NewConductorTreeWalker(store, 2, nil),
		nil,
	)
}

func buildSnapshot(t *testing.T, store repository.DocumentStore, keys ...string) *model.SnapshotDocument {
	t.Helper()
	snap, err := newTestBuilder(store).Build(context.Background(), keys, nil)
	require.NoError(t, err)
	return snap
}

func jsonRoundTrip(t *testing.T, snap *model.SnapshotDocument) *model.SnapshotDocument {
	t.Helper()
	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	var out model.SnapshotDocument
	require.NoError(t, json.Unmarshal(raw, &out))
	return &out
}

func newTestEngine(store repository.DocumentStore, audit repository.AuditSink) *RestoreEngine {
	return NewRestoreEngine(store, model.DefaultCollections(), nil, nil, audit, RestoreEngineConfig{ConductorConcurrency: 2}, nil)
}

type testStack struct {
	docs     *memory.DocumentStore
	blobs    *memory.BlobStore
	metadata *memory.MetadataRepository
	progress *memory.ProgressStore
	audit    *recordingAudit
	store    *SnapshotStore
	service  *BackupService
	engine   *RestoreEngine
	runner   *RestoreRunner
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	s := &testStack{
		docs:     memory.NewDocumentStore(),
		blobs:    memory.NewBlobStore(),
		metadata: memory.NewMetadataRepository(),
		progress: memory.NewProgressStore(),
		audit:    &recordingAudit{},
	}
	registry := model.DefaultCollections()
	builder := newTestBuilder(s.docs)
	s.store = NewSnapshotStore(s.blobs, s.metadata, s.audit, SnapshotStoreConfig{
		BackupFolder:     "backups",
		UploadAttempts:   3,
		UploadRetryDelay: time.Millisecond,
	}, nil)
	s.service = NewBackupService(registry, builder, s.store, s.audit, nil)
	s.engine = NewRestoreEngine(s.docs, registry, s.store, builder, s.audit, RestoreEngineConfig{ConductorConcurrency: 2}, nil)
	s.runner = NewRestoreRunner(s.engine, s.progress, nil)
	return s
}

func repositoryOptions() repository.PutOptions {
	return repository.PutOptions{ContentType: "application/json"}
}
