// Package testutil provides the fixture schema, fake documents and in-memory stores shared by
// the package tests.
package testutil

import (
	"context"
	_ "embed"
	"time"

	"github.com/autom8ter/docmap/kv/badger"
	"github.com/autom8ter/docmap/schema"
	"github.com/autom8ter/docmap/storage/kvstore"
	"github.com/brianvoe/gofakeit/v6"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	//go:embed testdata/schema.yaml
	SchemaDefinitions []byte
)

// Registry loads the fixture schema
func Registry() *schema.Registry {
	registry, err := schema.Load(SchemaDefinitions)
	if err != nil {
		panic(err)
	}
	return registry
}

// Class returns the named class of the fixture schema
func Class(registry *schema.Registry, name string) *schema.Class {
	c, ok := registry.Class(name)
	if !ok {
		panic("unknown class: " + name)
	}
	return c
}

// NewPerson returns a fake Person document
func NewPerson() bson.M {
	return bson.M{
		"_id": bson.NewObjectID(),
		"n":   gofakeit.Name(),
		"age": int64(gofakeit.IntRange(18, 90)),
		"dob": gofakeit.DateRange(time.Now().AddDate(-90, 0, 0), time.Now().AddDate(-18, 0, 0)).UTC().Truncate(time.Millisecond),
		"tags": []any{
			gofakeit.HackerVerb(),
			gofakeit.HackerNoun(),
		},
		"title": bson.M{
			"en": gofakeit.JobTitle(),
			"fr": gofakeit.JobTitle(),
		},
		"addrs": []any{
			NewAddress(),
		},
		"pass": bson.M{
			"number":  gofakeit.UUID(),
			"country": bson.M{"en": gofakeit.Country()},
		},
	}
}

// NewAddress returns a fake embedded Address document
func NewAddress() bson.M {
	return bson.M{
		"street": gofakeit.Street(),
		"city":   gofakeit.City(),
		"name":   bson.M{"en": gofakeit.Word()},
		"locations": []any{
			bson.M{"name": gofakeit.Word(), "number": int64(gofakeit.IntRange(1, 100))},
		},
	}
}

// NewCompany returns a fake Company document
func NewCompany() bson.M {
	return bson.M{
		"_id":       bson.NewObjectID(),
		"name":      gofakeit.Company(),
		"emp_count": int64(gofakeit.IntRange(1, 10000)),
	}
}

// NewPost returns a fake Post document belonging to the person
func NewPost(personID any) bson.M {
	return bson.M{
		"_id":       bson.NewObjectID(),
		"title":     gofakeit.Sentence(4),
		"person_id": personID,
	}
}

// TestStore opens an in-memory store, calls fn with it and closes it
func TestStore(fn func(ctx context.Context, store *kvstore.Store)) error {
	db, err := badger.New("")
	if err != nil {
		return err
	}
	store := kvstore.New(db)
	defer store.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	fn(ctx, store)
	return nil
}
