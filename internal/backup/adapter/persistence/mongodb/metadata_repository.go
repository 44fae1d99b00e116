package mongodb

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"transit-console/internal/backup/domain/model"
	"transit-console/internal/shared/errors"
	"transit-console/internal/shared/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MetadataCollection stores one record per backup.
const MetadataCollection = "backup_metadata"

// MetadataRepository implements repository.MetadataRepository on MongoDB.
type MetadataRepository struct {
	collection *mongo.Collection
	logger     logger.Logger
}

// NewMetadataRepository creates a repository over db's backup_metadata collection.
func NewMetadataRepository(db *mongo.Database, log logger.Logger) *MetadataRepository {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &MetadataRepository{
		collection: db.Collection(MetadataCollection),
		logger:     log.WithComponent("mongo_metadata_repository"),
	}
}

// EnsureIndexes creates the indexes used by List and ListExpired.
func (r *MetadataRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create metadata indexes: %w", err)
	}
	return nil
}

func (r *MetadataRepository) Put(ctx context.Context, meta *model.BackupMetadata) error {
	if meta == nil || meta.ID == "" {
		return errors.NewValidationError("backup metadata requires an id")
	}
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": meta.ID}, meta, options.Replace().SetUpsert(true))
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("Failed to store metadata for %s", meta.ID)
		return fmt.Errorf("put metadata %s: %w", meta.ID, err)
	}
	return nil
}

func (r *MetadataRepository) Get(ctx context.Context, id string) (*model.BackupMetadata, error) {
	var meta model.BackupMetadata
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&meta)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s: %w", id, errors.ErrBackupNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get metadata %s: %w", id, err)
	}
	return utc(&meta), nil
}

func (r *MetadataRepository) List(ctx context.Context) ([]*model.BackupMetadata, error) {
	return r.find(ctx, bson.M{})
}

func (r *MetadataRepository) ListExpired(ctx context.Context, now time.Time) ([]*model.BackupMetadata, error) {
	return r.find(ctx, bson.M{"expiresAt": bson.M{"$lte": now.UTC()}})
}

func (r *MetadataRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete metadata %s: %w", id, err)
	}
	return nil
}

func (r *MetadataRepository) find(ctx context.Context, filter bson.M) ([]*model.BackupMetadata, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query metadata: %w", err)
	}
	defer cursor.Close(ctx)

	records := []*model.BackupMetadata{}
	for cursor.Next(ctx) {
		var meta model.BackupMetadata
		if err := cursor.Decode(&meta); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		records = append(records, utc(&meta))
	}
	return records, cursor.Err()
}

// utc undoes the driver's local-time decoding of BSON dates.
func utc(meta *model.BackupMetadata) *model.BackupMetadata {
	meta.CreatedAt = meta.CreatedAt.UTC()
	meta.ExpiresAt = meta.ExpiresAt.UTC()
	return meta
}
