// Package mongostore implements the storage contracts on top of the official MongoDB driver
package mongostore

import (
	"context"
	"time"

	"github.com/autom8ter/docmap/errors"
	"github.com/autom8ter/docmap/storage"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Store is a MongoDB database
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect connects to the MongoDB deployment at the uri and selects the database
func Connect(ctx context.Context, uri string, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, errors.Internal, "failed to connect to %s", uri)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, errors.Internal, "failed to ping %s", uri)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

// Collection returns the named collection
func (s *Store) Collection(name string) *Collection {
	return &Collection{db: s.db, name: name}
}

// Close disconnects from the deployment
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Collection is a MongoDB collection
type Collection struct {
	db   *mongo.Database
	name string
}

var _ storage.Collection = (*Collection)(nil)

// Name returns the collection name
func (c *Collection) Name() string {
	return c.name
}

// Find returns a view over the documents matching the filter
func (c *Collection) Find(filter bson.M) storage.View {
	return &view{collection: c, spec: storage.NewSpec(filter)}
}

// InsertOne inserts the document and returns its _id
func (c *Collection) InsertOne(ctx context.Context, doc bson.M) (any, error) {
	result, err := c.db.Collection(c.name).InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	return result.InsertedID, nil
}

func (c *Collection) handle(pref *storage.ReadPreference) *mongo.Collection {
	if pref == nil {
		return c.db.Collection(c.name)
	}
	return c.db.Collection(c.name, options.Collection().SetReadPreference(readPreference(*pref)))
}

func readPreference(pref storage.ReadPreference) *readpref.ReadPref {
	var opts []readpref.Option
	if pref.MaxStaleness > 0 {
		opts = append(opts, readpref.WithMaxStaleness(pref.MaxStaleness))
	}
	switch pref.Mode {
	case storage.ReadPrimaryPreferred:
		return readpref.PrimaryPreferred(opts...)
	case storage.ReadSecondary:
		return readpref.Secondary(opts...)
	case storage.ReadSecondaryPreferred:
		return readpref.SecondaryPreferred(opts...)
	case storage.ReadNearest:
		return readpref.Nearest(opts...)
	default:
		return readpref.Primary()
	}
}

func cursorType(t storage.CursorType) options.CursorType {
	switch t {
	case storage.Tailable:
		return options.Tailable
	case storage.TailableAwait:
		return options.TailableAwait
	default:
		return options.NonTailable
	}
}

func collation(c *storage.Collation) *options.Collation {
	return &options.Collation{
		Locale:          c.Locale,
		Strength:        c.Strength,
		CaseLevel:       c.CaseLevel,
		NumericOrdering: c.NumericOrdering,
	}
}

// withMaxTime bounds the context by the max time of the query
func withMaxTime(ctx context.Context, maxTime time.Duration) (context.Context, context.CancelFunc) {
	if maxTime <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, maxTime)
}
