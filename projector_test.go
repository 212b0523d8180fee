package docmap_test

import (
	"context"
	"testing"
	"time"

	"github.com/autom8ter/docmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestPluck(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.criteria().Where(bson.M{"n": "alice"})
	t.Run("localized field", func(t *testing.T) {
		values, err := newQuery(t, alice).Pluck(ctx, "title")
		assert.Nil(t, err)
		assert.Equal(t, []any{"Hi"}, values)
	})
	t.Run("localized translations", func(t *testing.T) {
		values, err := newQuery(t, alice).Pluck(ctx, "title_translations")
		assert.Nil(t, err)
		assert.Equal(t, []any{bson.M{"en": "Hi", "fr": "Salut"}}, values)
	})
	t.Run("locale", func(t *testing.T) {
		values, err := newQuery(t, alice, docmap.WithLocale("fr")).Pluck(ctx, "title")
		assert.Nil(t, err)
		assert.Equal(t, []any{"Salut"}, values)
	})
	t.Run("locale fallbacks", func(t *testing.T) {
		config := docmap.DefaultConfig()
		config.Fallbacks = map[string][]string{"en": {"fr"}}
		values, err := newQuery(t, alice, docmap.WithConfig(config)).Pluck(ctx, "desc")
		assert.Nil(t, err)
		assert.Equal(t, []any{"Bonjour"}, values)
		values, err = newQuery(t, alice).Pluck(ctx, "desc")
		assert.Nil(t, err)
		assert.Equal(t, []any{nil}, values)
	})
	t.Run("rows are aligned", func(t *testing.T) {
		q := newQuery(t, f.criteria())
		rows, err := q.Pluck(ctx, "name", "age")
		assert.Nil(t, err)
		names, err := q.Pluck(ctx, "name")
		assert.Nil(t, err)
		ages, err := q.Pluck(ctx, "age")
		assert.Nil(t, err)
		require.Len(t, rows, 3)
		for i, row := range rows {
			assert.Equal(t, []any{names[i], ages[i]}, row)
		}
		assert.Equal(t, []any{"alice", "bob", "carol"}, names)
	})
	t.Run("aliases", func(t *testing.T) {
		values, err := newQuery(t, f.criteria()).Pluck(ctx, "id")
		assert.Nil(t, err)
		assert.Equal(t, []any{int64(1), int64(2), int64(3)}, values)
	})
	t.Run("demongoized", func(t *testing.T) {
		values, err := newQuery(t, f.criteria()).Pluck(ctx, "dob")
		assert.Nil(t, err)
		require.Len(t, values, 3)
		assert.True(t, time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC).Equal(values[0].(time.Time)))
		assert.True(t, time.Date(1980, 3, 4, 0, 0, 0, 0, time.UTC).Equal(values[2].(time.Time)))
	})
	t.Run("defaults", func(t *testing.T) {
		values, err := newQuery(t, f.criteria()).Pluck(ctx, "active")
		assert.Nil(t, err)
		assert.Equal(t, []any{true, true, false}, values)
	})
	t.Run("embedded many", func(t *testing.T) {
		values, err := newQuery(t, f.criteria()).Pluck(ctx, "addresses.city")
		assert.Nil(t, err)
		assert.Equal(t, []any{[]any{"paris"}, []any{"rome", "paris"}, nil}, values)
	})
	t.Run("nested arrays are flattened", func(t *testing.T) {
		values, err := newQuery(t, f.criteria()).Pluck(ctx, "addresses.locations.name")
		assert.Nil(t, err)
		assert.Equal(t, []any{[]any{"door", "gate"}, []any{"desk"}, nil}, values)
	})
	t.Run("embedded one", func(t *testing.T) {
		values, err := newQuery(t, f.criteria()).Pluck(ctx, "passport.country", "passport.number")
		assert.Nil(t, err)
		assert.Equal(t, []any{
			[]any{"France", "P1"},
			[]any{nil, nil},
			[]any{nil, nil},
		}, values)
	})
	t.Run("unknown fields", func(t *testing.T) {
		values, err := newQuery(t, f.criteria()).Pluck(ctx, "company_id", "missing")
		assert.Nil(t, err)
		assert.Equal(t, []any{
			[]any{companyID, nil},
			[]any{companyID, nil},
			[]any{nil, nil},
		}, values)
	})
	t.Run("no fields", func(t *testing.T) {
		values, err := newQuery(t, f.criteria()).Pluck(ctx)
		assert.Nil(t, err)
		assert.Empty(t, values)
	})
	t.Run("legacy", func(t *testing.T) {
		config := docmap.DefaultConfig()
		config.LegacyPluckDistinct = true
		q := newQuery(t, alice, docmap.WithConfig(config))
		values, err := q.Pluck(ctx, "title")
		assert.Nil(t, err)
		assert.Equal(t, []any{bson.M{"en": "Hi", "fr": "Salut"}}, values)
		values, err = q.Pluck(ctx, "dob")
		assert.Nil(t, err)
		assert.Equal(t, []any{"1990-01-02T00:00:00Z"}, values)
	})
	t.Run("pick", func(t *testing.T) {
		row, err := newQuery(t, f.criteria().OrderBy(bson.D{{Key: "age", Value: -1}})).Pick(ctx, "name", "age")
		assert.Nil(t, err)
		assert.Equal(t, []any{"carol", int64(35)}, row)
		row, err = newQuery(t, f.criteria().Where(bson.M{"n": "zed"})).Pick(ctx, "name")
		assert.Nil(t, err)
		assert.Nil(t, row)
	})
}

func TestDistinct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	t.Run("aliased field", func(t *testing.T) {
		values, err := newQuery(t, f.criteria()).Distinct(ctx, "name")
		assert.Nil(t, err)
		assert.ElementsMatch(t, []any{"alice", "bob", "carol"}, values)
	})
	t.Run("values are demongoized", func(t *testing.T) {
		values, err := newQuery(t, f.criteria()).Distinct(ctx, "dob")
		assert.Nil(t, err)
		require.Len(t, values, 3)
		for _, v := range values {
			assert.IsType(t, time.Time{}, v)
		}
	})
	t.Run("arrays are unwound", func(t *testing.T) {
		values, err := newQuery(t, f.criteria()).Distinct(ctx, "tags")
		assert.Nil(t, err)
		assert.ElementsMatch(t, []any{"a", "b"}, values)
	})
	t.Run("localized", func(t *testing.T) {
		values, err := newQuery(t, f.criteria()).Distinct(ctx, "title")
		assert.Nil(t, err)
		assert.ElementsMatch(t, []any{"Hi", "Hello"}, values)
		values, err = newQuery(t, f.criteria()).Distinct(ctx, "title_translations")
		assert.Nil(t, err)
		assert.ElementsMatch(t, []any{
			bson.M{"en": "Hi", "fr": "Salut"},
			bson.M{"en": "Hello", "fr": "Bonjour"},
		}, values)
	})
	t.Run("embedded", func(t *testing.T) {
		values, err := newQuery(t, f.criteria()).Distinct(ctx, "addresses.city")
		assert.Nil(t, err)
		assert.ElementsMatch(t, []any{"paris", "rome"}, values)
	})
	t.Run("legacy", func(t *testing.T) {
		config := docmap.DefaultConfig()
		config.LegacyPluckDistinct = true
		values, err := newQuery(t, f.criteria().Where(bson.M{"n": "alice"}), docmap.WithConfig(config)).Distinct(ctx, "dob")
		assert.Nil(t, err)
		assert.Equal(t, []any{"1990-01-02T00:00:00Z"}, values)
	})
}

func TestTally(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	t.Run("demongoized values", func(t *testing.T) {
		entries, err := newQuery(t, f.criteria()).Tally(ctx, "active")
		assert.Nil(t, err)
		assert.Equal(t, []docmap.TallyEntry{
			{Value: true, Count: 2},
			{Value: false, Count: 1},
		}, entries)
	})
	t.Run("selector", func(t *testing.T) {
		entries, err := newQuery(t, f.criteria().Where(bson.M{"age": bson.M{"$lt": 35}})).Tally(ctx, "company_id")
		assert.Nil(t, err)
		assert.Equal(t, []docmap.TallyEntry{
			{Value: companyID, Count: 2},
		}, entries)
	})
	t.Run("arrays", func(t *testing.T) {
		entries, err := newQuery(t, f.criteria()).Tally(ctx, "tags")
		assert.Nil(t, err)
		assert.Equal(t, []docmap.TallyEntry{
			{Value: []any{"a", "b"}, Count: 1},
			{Value: []any{"b"}, Count: 1},
			{Value: nil, Count: 1},
		}, entries)
	})
}

func TestAggregates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	t.Run("integers", func(t *testing.T) {
		aggregates, err := newQuery(t, f.criteria()).Aggregates(ctx, "age")
		assert.Nil(t, err)
		assert.Equal(t, docmap.Aggregates{
			Count: 3,
			Sum:   int64(90),
			Avg:   30.0,
			Min:   int64(25),
			Max:   int64(35),
		}, aggregates)
	})
	t.Run("missing values are skipped", func(t *testing.T) {
		q := newQuery(t, f.criteria())
		aggregates, err := q.Aggregates(ctx, "score")
		assert.Nil(t, err)
		assert.Equal(t, int64(2), aggregates.Count)
		sum, err := q.Sum(ctx, "score")
		assert.Nil(t, err)
		assert.Equal(t, 4.0, sum)
		avg, err := q.Avg(ctx, "score")
		assert.Nil(t, err)
		assert.Equal(t, 2.0, avg)
		min, err := q.Min(ctx, "score")
		assert.Nil(t, err)
		assert.Equal(t, 1.5, min)
		max, err := q.Max(ctx, "score")
		assert.Nil(t, err)
		assert.Equal(t, 2.5, max)
	})
	t.Run("empty", func(t *testing.T) {
		aggregates, err := newQuery(t, f.criteria().Where(bson.M{"age": bson.M{"$gt": 100}})).Aggregates(ctx, "age")
		assert.Nil(t, err)
		assert.Equal(t, docmap.Aggregates{Count: 0, Sum: int64(0)}, aggregates)
	})
	t.Run("window", func(t *testing.T) {
		aggregates, err := newQuery(t, f.criteria().OrderBy(bson.D{{Key: "age", Value: 1}}).Limit(2)).Aggregates(ctx, "age")
		assert.Nil(t, err)
		assert.Equal(t, int64(2), aggregates.Count)
		assert.Equal(t, int64(55), aggregates.Sum)
	})
}
