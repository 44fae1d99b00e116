package usecase

import (
	"context"
	"fmt"
	"time"

	"transit-console/internal/backup/domain/model"
	"transit-console/internal/shared/logger"

	"github.com/dustin/go-humanize"
)

// Progress milestones reported while a backup is produced.
const (
	progressCollectEnd = 80
	progressUpload     = 80
	progressMetadata   = 95
	progressDone       = 100
)

// SnapshotBuilder assembles a SnapshotDocument from the selected logical collections.
type SnapshotBuilder struct {
	registry   *model.CollectionRegistry
	flat       Walker
	conductors Walker
	log        logger.Logger
	now        func() time.Time
}

// NewSnapshotBuilder wires the flat and conductor walkers to a registry.
func NewSnapshotBuilder(registry *model.CollectionRegistry, flat, conductors Walker, log logger.Logger) *SnapshotBuilder {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &SnapshotBuilder{
		registry:   registry,
		flat:       flat,
		conductors: conductors,
		log:        log.WithComponent("snapshot_builder"),
		now:        time.Now,
	}
}

// Build captures keys in order. A collection whose walk fails is stored as an
// error marker and the build continues with the next one.
func (b *SnapshotBuilder) Build(ctx context.Context, keys []string, onProgress model.BackupProgressFunc) (*model.SnapshotDocument, error) {
	collections, err := b.registry.Resolve(keys)
	if err != nil {
		return nil, err
	}
	log := b.log.WithContext(ctx)

	createdAt := b.now().UTC()
	snapshot := &model.SnapshotDocument{
		Metadata: model.SnapshotMetadata{
			CreatedAt: createdAt,
			ExpiresAt: createdAt.Add(model.RetentionPeriod),
			Version:   model.SnapshotVersion,
		},
		Data: make(map[string]*model.CollectionSnapshot, len(collections)),
	}

	for i, c := range collections {
		snapshot.Metadata.Collections = append(snapshot.Metadata.Collections, c.Key)
		report(onProgress, i*progressCollectEnd/len(collections), fmt.Sprintf("Backing up %s...", c.DisplayName))

		walker := b.flat
		if c.Kind == model.CollectionKindConductorForest {
			walker = b.conductors
		}

		captured, err := walker.Collect(ctx, c.Path)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			log.WithError(err).WithFields(map[string]interface{}{"collection": c.Key}).Warn("Collection capture failed, recording error marker")
			snapshot.Data[c.Key] = model.NewErrorSnapshot(err)
			continue
		}
		snapshot.Data[c.Key] = captured
	}

	snapshot.Metadata.TotalDocuments = snapshot.CountDocuments()
	report(onProgress, progressCollectEnd, fmt.Sprintf("Collected %s documents", humanize.Comma(int64(snapshot.Metadata.TotalDocuments))))
	log.Infof("Snapshot built: %d collections, %d documents", len(collections), snapshot.Metadata.TotalDocuments)
	return snapshot, nil
}

func report(onProgress model.BackupProgressFunc, percentage int, message string) {
	if onProgress != nil {
		onProgress(model.BackupProgress{Percentage: percentage, Message: message})
	}
}
