package archive

import (
	"context"
	stderrors "errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AdenKoperczak/grib2pf/pkg/errors"
)

const (
	// DefaultDatabase and DefaultCollection name where MongoStore keeps
	// records unless told otherwise.
	DefaultDatabase   = "grib2pf"
	DefaultCollection = "runs"

	connectTimeout = 10 * time.Second
)

// MongoStore keeps records in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to uri and uses database.collection. Empty names
// select DefaultDatabase and DefaultCollection.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	if database == "" {
		database = DefaultDatabase
	}
	if collection == "" {
		collection = DefaultCollection
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "ping mongodb")
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "title", Value: 1}, {Key: "startedAt", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "create run index")
	}
	return &MongoStore{client: client, coll: coll}, nil
}

// Save inserts rec.
func (s *MongoStore) Save(ctx context.Context, rec Record) error {
	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "save run %s", rec.ID)
	}
	return nil
}

// Latest returns the newest record for title.
func (s *MongoStore) Latest(ctx context.Context, title string) (*Record, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "startedAt", Value: -1}})

	var rec Record
	err := s.coll.FindOne(ctx, bson.M{"title": title}, opts).Decode(&rec)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.New(errors.ErrCodeNotFound, "no run recorded for %q", title)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "load latest run for %q", title)
	}
	return &rec, nil
}

// Close disconnects from the server.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
