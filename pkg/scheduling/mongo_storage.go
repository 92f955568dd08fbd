package scheduling

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	mdb "github.com/dmitrymomot/schedkit/pkg/mongo"
)

// CollectionName is the MongoDB collection used by MongoStorage.
const CollectionName = "suggestions"

const mongoUpdateAttempts = 5

// suggestionDocument adds an optimistic lock counter to the stored record.
type suggestionDocument struct {
	Suggestion `bson:",inline"`
	Version    int64 `bson:"_version"`
}

// MongoStorage implements Storage on a MongoDB collection. Updates replace the
// whole document guarded by a version compare and are retried on conflict.
type MongoStorage struct {
	coll *mongo.Collection
}

// NewMongoStorage uses the suggestions collection of db.
func NewMongoStorage(db *mongo.Database) *MongoStorage {
	return &MongoStorage{coll: db.Collection(CollectionName)}
}

// EnsureIndexes creates the listing index. It is safe to call on every start.
func (m *MongoStorage) EnsureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "organizationId", Value: 1}, {Key: "createdAt", Value: -1}},
		Options: options.Index().SetName("org_created"),
	})
	if err != nil {
		return fmt.Errorf("failed to create suggestion indexes: %w", err)
	}
	return nil
}

func (m *MongoStorage) CreateSuggestion(ctx context.Context, s *Suggestion) error {
	if s == nil {
		return errors.New("suggestion cannot be nil")
	}
	_, err := m.coll.InsertOne(ctx, suggestionDocument{Suggestion: *s.Clone(), Version: 1})
	if mdb.IsDuplicateKey(err) {
		return fmt.Errorf("suggestion with ID %s already exists: %w", s.ID, err)
	}
	return err
}

func (m *MongoStorage) GetSuggestion(ctx context.Context, id string) (*Suggestion, error) {
	doc, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &doc.Suggestion, nil
}

func (m *MongoStorage) UpdateSuggestion(ctx context.Context, id string, fn func(*Suggestion) error) (*Suggestion, error) {
	for range mongoUpdateAttempts {
		doc, err := m.load(ctx, id)
		if err != nil {
			return nil, err
		}

		next := doc.Suggestion.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}

		res, err := m.coll.ReplaceOne(ctx,
			bson.D{{Key: "_id", Value: id}, {Key: "_version", Value: doc.Version}},
			suggestionDocument{Suggestion: *next, Version: doc.Version + 1},
		)
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 1 {
			return next, nil
		}
	}
	return nil, ErrConcurrentUpdate
}

func (m *MongoStorage) ListSuggestions(ctx context.Context, organizationID string, opts ListOptions) ([]*Suggestion, error) {
	filter := bson.D{{Key: "organizationId", Value: organizationID}}
	if len(opts.Statuses) > 0 {
		filter = append(filter, bson.E{Key: "status", Value: bson.D{{Key: "$in", Value: opts.Statuses}}})
	}

	find := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if opts.Limit > 0 {
		find.SetLimit(int64(opts.Limit))
	}

	cur, err := m.coll.Find(ctx, filter, find)
	if err != nil {
		return nil, err
	}

	var docs []suggestionDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]*Suggestion, 0, len(docs))
	for i := range docs {
		out = append(out, &docs[i].Suggestion)
	}
	return out, nil
}

func (m *MongoStorage) load(ctx context.Context, id string) (*suggestionDocument, error) {
	var doc suggestionDocument
	err := m.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if mdb.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
