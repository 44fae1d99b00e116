package mongodb

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"transit-console/internal/backup/domain/model"
	"transit-console/internal/shared/docpath"
	"transit-console/internal/shared/errors"
	"transit-console/internal/shared/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DocumentsCollection holds every document of the live tree, one BSON
// document per path.
const DocumentsCollection = "documents"

// MongoDocument is the stored shape of a tree document. Children are found
// through parentPath, so a sub-collection exists as soon as one of its
// documents does.
type MongoDocument struct {
	Path       string    `bson:"_id"`
	ParentPath string    `bson:"parentPath"`
	DocumentID string    `bson:"documentID"`
	Fields     bson.M    `bson:"fields"`
	CreateTime time.Time `bson:"createTime"`
	UpdateTime time.Time `bson:"updateTime"`
}

// DocumentStore implements repository.DocumentStore on MongoDB.
type DocumentStore struct {
	collection *mongo.Collection
	logger     logger.Logger
	now        func() time.Time
}

// NewDocumentStore creates a store over db's documents collection.
func NewDocumentStore(db *mongo.Database, log logger.Logger) *DocumentStore {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &DocumentStore{
		collection: db.Collection(DocumentsCollection),
		logger:     log.WithComponent("mongo_document_store"),
		now:        time.Now,
	}
}

// EnsureIndexes creates the listing index used by ListCollection.
func (s *DocumentStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "parentPath", Value: 1}, {Key: "documentID", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create parentPath index: %w", err)
	}
	return nil
}

// ListCollection returns the documents directly under path ordered by id.
func (s *DocumentStore) ListCollection(ctx context.Context, path string) ([]model.DocumentEntry, error) {
	if err := docpath.ValidateCollectionPath(path); err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "documentID", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{"parentPath": docpath.Join(path)}, opts)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	defer cursor.Close(ctx)

	entries := []model.DocumentEntry{}
	for cursor.Next(ctx) {
		var doc MongoDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode document under %s: %w", path, err)
		}
		entries = append(entries, model.DocumentEntry{ID: doc.DocumentID, Data: normalizeDocument(doc.Fields)})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	return entries, nil
}

// GetDocument returns errors.ErrDocumentNotFound when path holds no document.
func (s *DocumentStore) GetDocument(ctx context.Context, path string) (model.DocumentData, error) {
	if err := docpath.ValidateDocumentPath(path); err != nil {
		return nil, err
	}

	var doc MongoDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": docpath.Join(path)}).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s: %w", path, errors.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return normalizeDocument(doc.Fields), nil
}

// SetDocument replaces the document at path, creating it when absent.
func (s *DocumentStore) SetDocument(ctx context.Context, path string, data model.DocumentData) error {
	if err := docpath.ValidateDocumentPath(path); err != nil {
		return err
	}
	path = docpath.Join(path)
	parent, err := docpath.Parent(path)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	fields := bson.M{}
	for k, v := range data {
		fields[k] = v
	}
	update := bson.M{
		"$set": bson.M{
			"parentPath": parent,
			"documentID": docpath.ID(path),
			"fields":     fields,
			"updateTime": now,
		},
		"$setOnInsert": bson.M{"createTime": now},
	}
	_, err = s.collection.UpdateOne(ctx, bson.M{"_id": path}, update, options.Update().SetUpsert(true))
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Errorf("Failed to write document %s", path)
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

// DeleteDocument removes the document at path. Missing documents are
// ignored and sub-collections stay.
func (s *DocumentStore) DeleteDocument(ctx context.Context, path string) error {
	if err := docpath.ValidateDocumentPath(path); err != nil {
		return err
	}
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": docpath.Join(path)}); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}
