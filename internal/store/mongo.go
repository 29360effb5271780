package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultConnectTimeout = 10 * time.Second

// MongoStore is a DocumentStore backed by a MongoDB database.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects to uri and verifies the connection with a ping.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" || database == "" {
		return nil, errors.New("mongo store requires a uri and a database name")
	}

	ctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	slog.Info("Connected to MongoDB", "database", database)

	return &MongoStore{client: client, db: client.Database(database)}, nil
}

func (s *MongoStore) InsertOne(ctx context.Context, collection string, doc any) (string, error) {
	res, err := s.db.Collection(collection).InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("inserting into %s: %w", collection, err)
	}

	switch id := res.InsertedID.(type) {
	case primitive.ObjectID:
		return id.Hex(), nil
	case string:
		return id, nil
	default:
		return fmt.Sprint(id), nil
	}
}

func (s *MongoStore) FindOne(ctx context.Context, collection string, filter Filter, out any) error {
	f, err := normalizeFilter(filter)
	if err != nil {
		return err
	}

	err = s.db.Collection(collection).FindOne(ctx, f).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return notFound(collection, filter)
	}
	if err != nil {
		return fmt.Errorf("finding in %s: %w", collection, err)
	}
	return nil
}

func (s *MongoStore) FindMany(ctx context.Context, collection string, filter Filter, out any) error {
	f, err := normalizeFilter(filter)
	if err != nil {
		return err
	}

	// ObjectIDs start with their creation time, so _id order is insertion order.
	opts := options.Find().SetSort(bson.D{{Key: IDField, Value: 1}})

	cur, err := s.db.Collection(collection).Find(ctx, f, opts)
	if err != nil {
		return fmt.Errorf("finding in %s: %w", collection, err)
	}

	if err := cur.All(ctx, out); err != nil {
		return fmt.Errorf("reading %s: %w", collection, err)
	}
	return nil
}

func (s *MongoStore) UpdateOne(ctx context.Context, collection string, filter Filter, update Update) error {
	f, err := normalizeFilter(filter)
	if err != nil {
		return err
	}

	ops := bson.M{}
	if len(update.Set) > 0 {
		ops["$set"] = update.Set
	}
	if len(update.Unset) > 0 {
		unset := bson.M{}
		for _, path := range update.Unset {
			unset[path] = ""
		}
		ops["$unset"] = unset
	}
	if len(ops) == 0 {
		return errors.New("empty update")
	}

	res, err := s.db.Collection(collection).UpdateOne(ctx, f, ops)
	if err != nil {
		return fmt.Errorf("updating %s: %w", collection, err)
	}
	if res.MatchedCount == 0 {
		return notFound(collection, filter)
	}
	return nil
}

func (s *MongoStore) DeleteOne(ctx context.Context, collection string, filter Filter) error {
	f, err := normalizeFilter(filter)
	if err != nil {
		return err
	}

	res, err := s.db.Collection(collection).DeleteOne(ctx, f)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", collection, err)
	}
	if res.DeletedCount == 0 {
		return notFound(collection, filter)
	}
	return nil
}

func (s *MongoStore) CountDocuments(ctx context.Context, collection string, filter Filter) (int64, error) {
	f, err := normalizeFilter(filter)
	if err != nil {
		return 0, err
	}

	n, err := s.db.Collection(collection).CountDocuments(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", collection, err)
	}
	return n, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
