// Package mongo implements store.RecordStore on MongoDB. Each record store
// collection maps to a MongoDB collection of the same name, and the document
// key is stored as _id.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/sakif/ngo-hub/internal/apperror"
	"github.com/sakif/ngo-hub/internal/store"
)

// compile-time check that *Store implements store.RecordStore
var _ store.RecordStore = (*Store)(nil)

// Store is a RecordStore backed by one MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri, verifies the connection and selects database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, apperror.Network("record store unreachable", err)
	}

	return &Store{client: client, db: client.Database(database)}, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping reports whether the primary is reachable, for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Get(ctx context.Context, collection, key string) (*store.Document, error) {
	if err := store.CheckKey(collection, key); err != nil {
		return nil, err
	}

	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": key}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound(collection, key)
		}
		return nil, classify(fmt.Sprintf("getting %s/%s", collection, key), err)
	}
	return toDocument(collection, key, raw)
}

func (s *Store) Set(ctx context.Context, collection, key string, fields store.Fields) error {
	if err := store.CheckKey(collection, key); err != nil {
		return err
	}
	_, err := s.db.Collection(collection).ReplaceOne(ctx,
		bson.M{"_id": key},
		toBSON(key, fields),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return classify(fmt.Sprintf("setting %s/%s", collection, key), err)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, collection string, fields store.Fields) (string, error) {
	key := xid.New().String()
	if err := s.Create(ctx, collection, key, fields); err != nil {
		return "", err
	}
	return key, nil
}

// Create relies on the unique _id index: a second insert with the same key
// fails with a duplicate key error, which becomes ErrConflict.
func (s *Store) Create(ctx context.Context, collection, key string, fields store.Fields) error {
	if err := store.CheckKey(collection, key); err != nil {
		return err
	}
	_, err := s.db.Collection(collection).InsertOne(ctx, toBSON(key, fields))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict(collection, key)
		}
		return classify(fmt.Sprintf("creating %s/%s", collection, key), err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, collection, key string, fields store.Fields) error {
	if err := store.CheckKey(collection, key); err != nil {
		return err
	}
	set := bson.M{}
	for k, v := range fields {
		if k == "_id" {
			continue
		}
		set[k] = v
	}
	if len(set) == 0 {
		_, err := s.Get(ctx, collection, key)
		return err
	}

	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": key}, bson.M{"$set": set})
	if err != nil {
		return classify(fmt.Sprintf("updating %s/%s", collection, key), err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound(collection, key)
	}
	return nil
}

func (s *Store) Increment(ctx context.Context, collection, key, field string, delta float64) error {
	if err := store.CheckKey(collection, key); err != nil {
		return err
	}
	res, err := s.db.Collection(collection).UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$inc": bson.M{field: delta}},
	)
	if err != nil {
		return classify(fmt.Sprintf("incrementing %s/%s.%s", collection, key, field), err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound(collection, key)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, key string) error {
	if err := store.CheckKey(collection, key); err != nil {
		return err
	}
	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return classify(fmt.Sprintf("deleting %s/%s", collection, key), err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, collection string) ([]store.Document, error) {
	cur, err := s.db.Collection(collection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, classify("listing "+collection, err)
	}

	var raws []bson.M
	if err := cur.All(ctx, &raws); err != nil {
		return nil, classify("listing "+collection, err)
	}

	docs := make([]store.Document, 0, len(raws))
	for _, raw := range raws {
		key, _ := raw["_id"].(string)
		doc, err := toDocument(collection, key, raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

func toBSON(key string, fields store.Fields) bson.M {
	doc := bson.M{"_id": key}
	for k, v := range fields {
		if k == "_id" {
			continue
		}
		doc[k] = v
	}
	return doc
}

// toDocument normalises a decoded BSON document through JSON so numbers come
// back as float64 like every other backend, whatever BSON type stored them.
func toDocument(collection, key string, raw bson.M) (*store.Document, error) {
	delete(raw, "_id")
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("mongo: decoding %s/%s: %w", collection, key, err)
	}
	var fields store.Fields
	if err := json.Unmarshal(encoded, &fields); err != nil {
		return nil, fmt.Errorf("mongo: decoding %s/%s: %w", collection, key, err)
	}
	return &store.Document{Collection: collection, Key: key, Fields: fields}, nil
}

// classify marks connectivity failures as network errors so callers can show
// a retry-later notice instead of a generic failure.
func classify(op string, err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return apperror.Network("record store unreachable", fmt.Errorf("mongo: %s: %w", op, err))
	}
	return fmt.Errorf("mongo: %s: %w", op, err)
}
