// Package kvstore is an embedded document store implementing the storage contracts on top of a
// key value database. Documents are BSON encoded under `<collection>\x00<id>` keys and queries
// are evaluated by scanning the collection's key range.
package kvstore

import (
	"context"

	"github.com/autom8ter/docmap/errors"
	"github.com/autom8ter/docmap/kv"
	"github.com/autom8ter/docmap/kv/registry"
	"github.com/autom8ter/docmap/storage"
	"github.com/autom8ter/docmap/util"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Store is a set of collections stored in a key value database
type Store struct {
	db kv.DB
}

// New creates a store on top of the key value database
func New(db kv.DB) *Store {
	return &Store{db: db}
}

// Open opens a store on a registered key value provider
func Open(provider string, params map[string]any) (*Store, error) {
	db, err := registry.Open(provider, params)
	if err != nil {
		return nil, errors.Wrap(err, 0, "failed to open %s database", provider)
	}
	return New(db), nil
}

// Collection returns the named collection
func (s *Store) Collection(name string) *Collection {
	return &Collection{store: s, name: name}
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Collection is a collection of documents in a Store
type Collection struct {
	store *Store
	name  string
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

// InsertOne inserts a document, generating an ObjectID when it has no _id
func (c *Collection) InsertOne(ctx context.Context, doc bson.M) (any, error) {
	doc = withID(doc)
	err := c.store.db.Tx(true, func(tx kv.Tx) error {
		return c.insert(ctx, tx, doc)
	})
	if err != nil {
		return nil, err
	}
	return doc["_id"], nil
}

// InsertMany inserts the documents in a single transaction
func (c *Collection) InsertMany(ctx context.Context, docs []bson.M) ([]any, error) {
	var ids []any
	err := c.store.db.Tx(true, func(tx kv.Tx) error {
		for _, doc := range docs {
			doc = withID(doc)
			if err := c.insert(ctx, tx, doc); err != nil {
				return err
			}
			ids = append(ids, doc["_id"])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Load writes documents in bulk outside of a transaction. Documents replace any stored document
// with the same _id.
func (c *Collection) Load(ctx context.Context, docs []bson.M) (int, error) {
	encoded := make(map[string][]byte, len(docs))
	keys := make([][]byte, 0, len(docs))
	for _, doc := range docs {
		doc = withID(doc)
		bits, err := bson.Marshal(doc)
		if err != nil {
			return 0, errors.Wrap(err, errors.Internal, "failed to encode document")
		}
		key := c.key(doc["_id"])
		if _, ok := encoded[string(key)]; !ok {
			keys = append(keys, key)
		}
		encoded[string(key)] = bits
	}
	batch := c.store.db.NewBatch()
	for _, key := range keys {
		if err := batch.Set(key, encoded[string(key)]); err != nil {
			return 0, err
		}
	}
	if err := batch.Flush(); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Drop deletes every document in the collection
func (c *Collection) Drop(ctx context.Context) error {
	return c.store.db.DropPrefix(c.prefix())
}

func withID(doc bson.M) bson.M {
	doc = storage.NormalizeDocument(doc)
	if doc == nil {
		doc = bson.M{}
	}
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = bson.NewObjectID()
	}
	return doc
}

func (c *Collection) prefix() []byte {
	return []byte(c.name + "\x00")
}

func (c *Collection) key(id any) []byte {
	return append(c.prefix(), util.EncodeValue(id)...)
}

func (c *Collection) insert(ctx context.Context, tx kv.Tx, doc bson.M) error {
	key := c.key(doc["_id"])
	existing, err := tx.Get(ctx, key)
	if err != nil {
		return err
	}
	if existing != nil {
		return errors.New(errors.Validation, "duplicate key: %s._id %v", c.name, doc["_id"])
	}
	return c.put(ctx, tx, doc)
}

func (c *Collection) put(ctx context.Context, tx kv.Tx, doc bson.M) error {
	bits, err := bson.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, errors.Internal, "failed to encode document")
	}
	return tx.Set(ctx, c.key(doc["_id"]), bits)
}

func (c *Collection) remove(ctx context.Context, tx kv.Tx, doc bson.M) error {
	return tx.Delete(ctx, c.key(doc["_id"]))
}

// scan returns the documents matching the filter in key order
func (c *Collection) scan(ctx context.Context, tx kv.Tx, filter bson.M) ([]bson.M, error) {
	iter, err := tx.NewIterator(kv.IterOpts{Prefix: c.prefix()})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	filter = storage.NormalizeDocument(filter)
	var docs []bson.M
	for iter.Valid() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bits, err := iter.Item().Value()
		if err != nil {
			return nil, err
		}
		var doc bson.M
		if err := bson.Unmarshal(bits, &doc); err != nil {
			return nil, errors.Wrap(err, errors.Internal, "failed to decode document")
		}
		doc = storage.NormalizeDocument(doc)
		matched, err := match(doc, filter)
		if err != nil {
			return nil, err
		}
		if matched {
			docs = append(docs, doc)
		}
		iter.Next()
	}
	return docs, nil
}

func (c *Collection) read(ctx context.Context, fn func(tx kv.Tx) error) error {
	return c.store.db.Tx(false, fn)
}

func (c *Collection) write(ctx context.Context, fn func(tx kv.Tx) error) error {
	return c.store.db.Tx(true, fn)
}
