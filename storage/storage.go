// Package storage defines the contracts a document store must satisfy to back a query context.
//
// A View is an immutable handle over a query: its shape is described by a Spec value and every
// change to the shape produces a new View through With. Round trips to the store happen only in
// the context-aware methods.
package storage

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Collection is a named set of documents that can be queried
type Collection interface {
	// Name returns the collection name
	Name() string
	// Find returns a lazy view over the documents matching the filter
	Find(filter bson.M) View
	// InsertOne inserts a raw document and returns its _id
	InsertOne(ctx context.Context, doc bson.M) (any, error)
}

// View is an immutable, re-enterable query against a collection
type View interface {
	// Spec returns the shape of the query
	Spec() Spec
	// With returns a new view with the given shape
	With(spec Spec) View
	// Cursor executes the query and returns a cursor over the raw documents
	Cursor(ctx context.Context) (Cursor, error)
	// CountDocuments counts the documents matching the filter
	CountDocuments(ctx context.Context, opts CountOptions) (int64, error)
	// EstimatedDocumentCount returns the collection-wide document count from metadata
	EstimatedDocumentCount(ctx context.Context, opts CountOptions) (int64, error)
	// Distinct returns the distinct values of the field across the matching documents
	Distinct(ctx context.Context, field string) ([]any, error)
	// DeleteOne deletes the first matching document
	DeleteOne(ctx context.Context) (DeleteResult, error)
	// DeleteMany deletes every matching document
	DeleteMany(ctx context.Context) (DeleteResult, error)
	// UpdateOne applies the update to the first matching document
	UpdateOne(ctx context.Context, update bson.M, opts UpdateOptions) (UpdateResult, error)
	// UpdateMany applies the update to every matching document
	UpdateMany(ctx context.Context, update bson.M, opts UpdateOptions) (UpdateResult, error)
	// FindOneAndUpdate atomically updates the first matching document and returns it (nil when nothing matched)
	FindOneAndUpdate(ctx context.Context, update bson.M, opts FindAndModifyOptions) (bson.M, error)
	// FindOneAndReplace atomically replaces the first matching document and returns it (nil when nothing matched)
	FindOneAndReplace(ctx context.Context, replacement bson.M, opts FindAndModifyOptions) (bson.M, error)
	// FindOneAndDelete atomically deletes the first matching document and returns it (nil when nothing matched)
	FindOneAndDelete(ctx context.Context) (bson.M, error)
	// Explain describes how the store would execute the query
	Explain(ctx context.Context) (bson.M, error)
	// Aggregate runs an aggregation pipeline against the collection
	Aggregate(ctx context.Context, pipeline []bson.M) (Cursor, error)
}

// Cursor iterates a stream of raw documents.
//
//	for cursor.Next(ctx) {
//		doc := cursor.Current()
//	}
//	err := cursor.Err()
type Cursor interface {
	// Next advances the cursor and reports whether a document is available
	Next(ctx context.Context) bool
	// Current returns the current document
	Current() bson.M
	// Err returns the first error encountered while iterating
	Err() error
	// Close releases the cursor
	Close(ctx context.Context) error
}

// CountOptions are options for count round trips
type CountOptions struct {
	Limit   int64         `json:"limit,omitempty"`
	Skip    int64         `json:"skip,omitempty"`
	Hint    any           `json:"hint,omitempty"`
	MaxTime time.Duration `json:"max_time,omitempty"`
}

// UpdateOptions are options for update round trips
type UpdateOptions struct {
	Upsert bool `json:"upsert,omitempty"`
}

// ReturnDocument selects which version of a document a find-and-modify returns
type ReturnDocument string

const (
	// ReturnBefore returns the document as it was before the modification
	ReturnBefore ReturnDocument = "before"
	// ReturnAfter returns the document as it is after the modification
	ReturnAfter ReturnDocument = "after"
)

// FindAndModifyOptions are options for find-and-modify round trips
type FindAndModifyOptions struct {
	ReturnDocument ReturnDocument `json:"return_document,omitempty"`
	Upsert         bool           `json:"upsert,omitempty"`
}

// UpdateResult is the result of an update
type UpdateResult struct {
	MatchedCount  int64 `json:"matched_count"`
	ModifiedCount int64 `json:"modified_count"`
	UpsertedCount int64 `json:"upserted_count"`
	UpsertedID    any   `json:"upserted_id,omitempty"`
	Acknowledged  bool  `json:"acknowledged"`
}

// DeleteResult is the result of a delete
type DeleteResult struct {
	DeletedCount int64 `json:"deleted_count"`
	Acknowledged bool  `json:"acknowledged"`
}

// ReadMode is a read preference mode
type ReadMode string

const (
	ReadPrimary            ReadMode = "primary"
	ReadPrimaryPreferred   ReadMode = "primary_preferred"
	ReadSecondary          ReadMode = "secondary"
	ReadSecondaryPreferred ReadMode = "secondary_preferred"
	ReadNearest            ReadMode = "nearest"
)

// ReadPreference routes reads to replica set members
type ReadPreference struct {
	Mode         ReadMode      `json:"mode" mapstructure:"mode"`
	MaxStaleness time.Duration `json:"max_staleness,omitempty" mapstructure:"max_staleness"`
}

// CursorType is the type of cursor a query opens
type CursorType string

const (
	NonTailable   CursorType = "non_tailable"
	Tailable      CursorType = "tailable"
	TailableAwait CursorType = "tailable_await"
)

// Collation is a set of language-specific string comparison rules
type Collation struct {
	Locale          string `json:"locale" mapstructure:"locale"`
	Strength        int    `json:"strength,omitempty" mapstructure:"strength"`
	CaseLevel       bool   `json:"case_level,omitempty" mapstructure:"case_level"`
	NumericOrdering bool   `json:"numeric_ordering,omitempty" mapstructure:"numeric_ordering"`
}
