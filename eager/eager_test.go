package eager_test

import (
	"context"
	"testing"

	"github.com/autom8ter/docmap"
	"github.com/autom8ter/docmap/eager"
	"github.com/autom8ter/docmap/kv/badger"
	"github.com/autom8ter/docmap/schema"
	"github.com/autom8ter/docmap/storage"
	"github.com/autom8ter/docmap/storage/kvstore"
	"github.com/autom8ter/docmap/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func setup(t *testing.T) (*schema.Registry, *kvstore.Store) {
	t.Helper()
	ctx := context.Background()
	db, err := badger.New("")
	require.NoError(t, err)
	store := kvstore.New(db)
	t.Cleanup(func() {
		store.Close()
	})
	_, err = store.Collection("people").InsertMany(ctx, []bson.M{
		{"_id": int64(1), "n": "alice", "company_id": int64(100)},
		{"_id": int64(2), "n": "bob", "company_id": int64(100)},
		{"_id": int64(3), "n": "carol", "company_id": int64(200)},
		{"_id": int64(4), "n": "dave"},
	})
	require.NoError(t, err)
	_, err = store.Collection("companies").InsertMany(ctx, []bson.M{
		{"_id": int64(100), "name": "acme"},
		{"_id": int64(200), "name": "globex"},
	})
	require.NoError(t, err)
	_, err = store.Collection("posts").InsertMany(ctx, []bson.M{
		{"_id": int64(10), "title": "first", "person_id": int64(1)},
		{"_id": int64(11), "title": "second", "person_id": int64(1)},
		{"_id": int64(12), "title": "third", "person_id": int64(2)},
	})
	require.NoError(t, err)
	return testutil.Registry(), store
}

func collections(store *kvstore.Store) eager.CollectionFunc {
	return func(name string) storage.Collection {
		return store.Collection(name)
	}
}

func related(t *testing.T, m docmap.Model, name string) []any {
	t.Helper()
	r, ok := m.(docmap.Relatable)
	require.True(t, ok)
	models, ok := r.Related(name)
	require.True(t, ok, "relation %s was not loaded", name)
	ids := []any{}
	for _, m := range models {
		ids = append(ids, m.ID())
	}
	return ids
}

func TestEagerLoad(t *testing.T) {
	ctx := context.Background()
	registry, store := setup(t)
	person := testutil.Class(registry, "Person")
	company := testutil.Class(registry, "Company")
	loader := eager.New(collections(store), eager.WithRegistry(registry))

	t.Run("belongs to", func(t *testing.T) {
		criteria := docmap.NewCriteria(person, store.Collection("people")).Include("company")
		q, err := docmap.NewQueryContext(criteria, docmap.WithEagerLoader(loader))
		require.NoError(t, err)
		people, err := q.All(ctx)
		require.NoError(t, err)
		require.Len(t, people, 4)
		assert.Equal(t, []any{int64(100)}, related(t, people[0], "company"))
		assert.Equal(t, []any{int64(100)}, related(t, people[1], "company"))
		assert.Equal(t, []any{int64(200)}, related(t, people[2], "company"))
		assert.Equal(t, []any{}, related(t, people[3], "company"))
	})
	t.Run("has many", func(t *testing.T) {
		criteria := docmap.NewCriteria(person, store.Collection("people")).Include("posts")
		q, err := docmap.NewQueryContext(criteria, docmap.WithEagerLoader(loader))
		require.NoError(t, err)
		people, err := q.All(ctx)
		require.NoError(t, err)
		require.Len(t, people, 4)
		assert.ElementsMatch(t, []any{int64(10), int64(11)}, related(t, people[0], "posts"))
		assert.Equal(t, []any{int64(12)}, related(t, people[1], "posts"))
		assert.Equal(t, []any{}, related(t, people[2], "posts"))
	})
	t.Run("has many inverse of belongs to", func(t *testing.T) {
		criteria := docmap.NewCriteria(company, store.Collection("companies")).Include("people")
		q, err := docmap.NewQueryContext(criteria, docmap.WithEagerLoader(loader))
		require.NoError(t, err)
		companies, err := q.All(ctx)
		require.NoError(t, err)
		require.Len(t, companies, 2)
		assert.ElementsMatch(t, []any{int64(1), int64(2)}, related(t, companies[0], "people"))
		assert.Equal(t, []any{int64(3)}, related(t, companies[1], "people"))
	})
	t.Run("several includes", func(t *testing.T) {
		criteria := docmap.NewCriteria(person, store.Collection("people")).Include("company", "posts", "company")
		q, err := docmap.NewQueryContext(criteria, docmap.WithEagerLoader(loader))
		require.NoError(t, err)
		first, err := q.First(ctx)
		require.NoError(t, err)
		require.NotNil(t, first)
		assert.Equal(t, []any{int64(100)}, related(t, first, "company"))
		assert.Len(t, related(t, first, "posts"), 2)
	})
	t.Run("embedded associations are skipped", func(t *testing.T) {
		criteria := docmap.NewCriteria(person, store.Collection("people")).Include("addresses")
		models := []docmap.Model{
			docmap.NewDocument(person, bson.M{"_id": int64(1)}, store.Collection("people"), schema.NewLocale("")),
		}
		out, err := loader.EagerLoad(ctx, criteria, models)
		require.NoError(t, err)
		_, ok := out[0].(docmap.Relatable).Related("addresses")
		assert.False(t, ok)
	})
	t.Run("unknown association", func(t *testing.T) {
		criteria := docmap.NewCriteria(person, store.Collection("people")).Include("friends")
		models := []docmap.Model{
			docmap.NewDocument(person, bson.M{"_id": int64(1)}, store.Collection("people"), schema.NewLocale("")),
		}
		_, err := loader.EagerLoad(ctx, criteria, models)
		assert.Error(t, err)
	})
	t.Run("no models", func(t *testing.T) {
		criteria := docmap.NewCriteria(person, store.Collection("people")).Include("company")
		out, err := loader.EagerLoad(ctx, criteria, nil)
		require.NoError(t, err)
		assert.Empty(t, out)
	})
	t.Run("batch capacity", func(t *testing.T) {
		loader := eager.New(collections(store), eager.WithBatchCapacity(1))
		criteria := docmap.NewCriteria(person, store.Collection("people")).Include("company")
		q, err := docmap.NewQueryContext(criteria, docmap.WithEagerLoader(loader))
		require.NoError(t, err)
		people, err := q.All(ctx)
		require.NoError(t, err)
		assert.Equal(t, []any{int64(200)}, related(t, people[2], "company"))
	})
}

func TestEagerLoadFakes(t *testing.T) {
	registry := testutil.Registry()
	person := testutil.Class(registry, "Person")
	require.NoError(t, testutil.TestStore(func(ctx context.Context, store *kvstore.Store) {
		company := testutil.NewCompany()
		_, err := store.Collection("companies").InsertOne(ctx, company)
		require.NoError(t, err)
		var people []bson.M
		for i := 0; i < 3; i++ {
			p := testutil.NewPerson()
			p["company_id"] = company["_id"]
			people = append(people, p)
		}
		_, err = store.Collection("people").InsertMany(ctx, people)
		require.NoError(t, err)
		for _, p := range people {
			_, err = store.Collection("posts").InsertOne(ctx, testutil.NewPost(p["_id"]))
			require.NoError(t, err)
		}
		loader := eager.New(collections(store), eager.WithRegistry(registry), eager.WithLocale(schema.NewLocale("fr")))
		criteria := docmap.NewCriteria(person, store.Collection("people")).Include("company", "posts")
		q, err := docmap.NewQueryContext(criteria, docmap.WithEagerLoader(loader))
		require.NoError(t, err)
		require.NoError(t, q.Each(ctx, func(m docmap.Model) (bool, error) {
			assert.Equal(t, []any{company["_id"]}, related(t, m, "company"))
			assert.Len(t, related(t, m, "posts"), 1)
			return true, nil
		}))
	}))
}
