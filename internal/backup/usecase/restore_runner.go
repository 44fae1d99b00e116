package usecase

import (
	"context"
	"sync"
	"time"

	"transit-console/internal/backup/domain/model"
	"transit-console/internal/backup/domain/repository"
	"transit-console/internal/shared/contextkeys"
	"transit-console/internal/shared/errors"
	"transit-console/internal/shared/logger"

	"github.com/google/uuid"
)

// finishedRunRetention is how long a finished run's result stays available
// to Wait and Cancel. Progress outlives it in the publisher.
const finishedRunRetention = 15 * time.Minute

// RestoreRunner executes restores in the background and publishes their
// progress so HTTP and websocket clients can observe them.
type RestoreRunner struct {
	engine    *RestoreEngine
	publisher repository.ProgressPublisher
	log       logger.Logger
	newID     func() string
	retainFor time.Duration

	mu   sync.Mutex
	runs map[string]*restoreRun
	wg   sync.WaitGroup
}

type restoreRun struct {
	cancel context.CancelFunc
	done   chan struct{}
	result *model.RestoreResult
}

// NewRestoreRunner creates a runner that publishes through publisher.
func NewRestoreRunner(engine *RestoreEngine, publisher repository.ProgressPublisher, log logger.Logger) *RestoreRunner {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &RestoreRunner{
		engine:    engine,
		publisher: publisher,
		log:       log.WithComponent("restore_runner"),
		newID:     uuid.NewString,
		retainFor: finishedRunRetention,
		runs:      make(map[string]*restoreRun),
	}
}

// Start validates backupID and launches the restore, returning its run id.
// The run outlives ctx; use Cancel to stop it.
func (r *RestoreRunner) Start(ctx context.Context, backupID string, opts model.RestoreOptions) (string, error) {
	mode, err := model.ParseRestoreMode(string(opts.Mode))
	if err != nil {
		return "", err
	}
	opts.Mode = mode
	if _, err := r.engine.LookupBackup(ctx, backupID); err != nil {
		return "", err
	}

	id := r.newID()
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	runCtx = context.WithValue(runCtx, contextkeys.RestoreIDKey, id)
	runCtx = context.WithValue(runCtx, contextkeys.OperationKey, "backup.restore")
	run := &restoreRun{cancel: cancel, done: make(chan struct{})}

	r.mu.Lock()
	r.runs[id] = run
	r.mu.Unlock()

	publishCtx := context.WithoutCancel(runCtx)
	r.publish(publishCtx, model.RestoreProgress{
		RestoreID: id,
		BackupID:  backupID,
		Mode:      mode,
		Phase:     model.RestorePhaseInitializing,
		Errors:    []string{},
	})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		result := r.engine.RestoreBackup(runCtx, backupID, opts, func(p model.RestoreProgress) {
			r.publish(publishCtx, p)
		})

		r.mu.Lock()
		run.result = result
		r.mu.Unlock()
		close(run.done)
		time.AfterFunc(r.retainFor, func() { r.forget(id) })
	}()

	r.log.WithContext(runCtx).Infof("Restore %s of backup %s started (%s)", id, backupID, mode)
	return id, nil
}

func (r *RestoreRunner) forget(id string) {
	r.mu.Lock()
	delete(r.runs, id)
	r.mu.Unlock()
}

func (r *RestoreRunner) publish(ctx context.Context, p model.RestoreProgress) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, p); err != nil {
		r.log.WithContext(ctx).WithError(err).Warn("Failed to publish restore progress")
	}
}

// Cancel stops a running restore. Cancelling a finished run is a no-op.
func (r *RestoreRunner) Cancel(restoreID string) error {
	r.mu.Lock()
	run, ok := r.runs[restoreID]
	r.mu.Unlock()
	if !ok {
		return errors.ErrRestoreNotFound
	}
	run.cancel()
	return nil
}

// Progress returns the latest published progress of a run.
func (r *RestoreRunner) Progress(ctx context.Context, restoreID string) (*model.RestoreProgress, error) {
	if r.publisher == nil {
		return nil, errors.ErrRestoreNotFound
	}
	return r.publisher.Latest(ctx, restoreID)
}

// Follow streams the latest progress of a run and every later update until
// it reaches a terminal phase.
func (r *RestoreRunner) Follow(ctx context.Context, restoreID string, fn func(model.RestoreProgress) bool) error {
	if r.publisher == nil {
		return errors.ErrRestoreNotFound
	}
	return r.publisher.Follow(ctx, restoreID, fn)
}

// Wait blocks until the run finishes or ctx ends and returns its result.
func (r *RestoreRunner) Wait(ctx context.Context, restoreID string) (*model.RestoreResult, error) {
	r.mu.Lock()
	run, ok := r.runs[restoreID]
	r.mu.Unlock()
	if !ok {
		return nil, errors.ErrRestoreNotFound
	}
	select {
	case <-run.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return run.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown cancels every run and waits for them to stop.
func (r *RestoreRunner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	for _, run := range r.runs {
		run.cancel()
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
