package kvstore_test

import (
	"context"
	"testing"

	"github.com/autom8ter/docmap/kv/badger"
	"github.com/autom8ter/docmap/storage"
	"github.com/autom8ter/docmap/storage/kvstore"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func newCollection(t *testing.T) *kvstore.Collection {
	db, err := badger.New("")
	require.NoError(t, err)
	store := kvstore.New(db)
	t.Cleanup(func() {
		store.Close()
	})
	collection := store.Collection("people")
	_, err = collection.InsertMany(context.Background(), []bson.M{
		{"_id": int64(1), "name": "alice", "age": 30, "tags": []string{"a", "b"}, "addrs": []bson.M{{"city": "paris"}}},
		{"_id": int64(2), "name": "bob", "age": 25, "tags": []string{"b"}, "addrs": []bson.M{{"city": "rome"}, {"city": "paris"}}},
		{"_id": int64(3), "name": "carol", "age": 35},
	})
	require.NoError(t, err)
	return collection
}

func ids(t *testing.T, ctx context.Context, view storage.View) []any {
	cursor, err := view.Cursor(ctx)
	require.NoError(t, err)
	docs, err := storage.All(ctx, cursor)
	require.NoError(t, err)
	var out []any
	for _, doc := range docs {
		out = append(out, doc["_id"])
	}
	return out
}

func TestCollection(t *testing.T) {
	ctx := context.Background()
	t.Run("natural order", func(t *testing.T) {
		c := newCollection(t)
		assert.Equal(t, []any{int64(1), int64(2), int64(3)}, ids(t, ctx, c.Find(nil)))
	})
	t.Run("sort skip limit", func(t *testing.T) {
		c := newCollection(t)
		view := c.Find(bson.M{})
		view = view.With(view.Spec().WithSort(bson.D{{Key: "age", Value: -1}}).WithSkip(1).WithLimit(1))
		assert.Equal(t, []any{int64(1)}, ids(t, ctx, view))
	})
	t.Run("filter", func(t *testing.T) {
		c := newCollection(t)
		assert.Equal(t, []any{int64(1), int64(2)}, ids(t, ctx, c.Find(bson.M{"tags": "b"})))
		assert.Equal(t, []any{int64(2)}, ids(t, ctx, c.Find(bson.M{"addrs.city": "rome"})))
	})
	t.Run("projection", func(t *testing.T) {
		c := newCollection(t)
		view := c.Find(bson.M{"_id": 1})
		view = view.With(view.Spec().WithProjection(bson.M{"name": 1, "addrs.city": 1}))
		cursor, err := view.Cursor(ctx)
		require.NoError(t, err)
		doc, err := storage.First(ctx, cursor)
		require.NoError(t, err)
		assert.Equal(t, bson.M{"_id": int64(1), "name": "alice", "addrs": []any{bson.M{"city": "paris"}}}, doc)

		view = view.With(view.Spec().WithProjection(bson.M{"_id": 0, "addrs": 0, "tags": 0}))
		cursor, err = view.Cursor(ctx)
		require.NoError(t, err)
		doc, err = storage.First(ctx, cursor)
		require.NoError(t, err)
		assert.Equal(t, bson.M{"name": "alice", "age": int64(30)}, doc)
	})
	t.Run("invalid projection", func(t *testing.T) {
		c := newCollection(t)
		view := c.Find(nil)
		_, err := view.With(view.Spec().WithProjection(bson.M{"name": 1, "age": 0})).Cursor(ctx)
		assert.Error(t, err)
	})
	t.Run("count", func(t *testing.T) {
		c := newCollection(t)
		count, err := c.Find(bson.M{"age": bson.M{"$gte": 30}}).CountDocuments(ctx, storage.CountOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
		count, err = c.Find(nil).CountDocuments(ctx, storage.CountOptions{Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
		count, err = c.Find(bson.M{"name": "nobody"}).EstimatedDocumentCount(ctx, storage.CountOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})
	t.Run("distinct unwinds arrays", func(t *testing.T) {
		c := newCollection(t)
		values, err := c.Find(nil).Distinct(ctx, "tags")
		require.NoError(t, err)
		assert.Equal(t, []any{"a", "b"}, values)
		values, err = c.Find(nil).Distinct(ctx, "addrs.city")
		require.NoError(t, err)
		assert.Equal(t, []any{"paris", "rome"}, values)
		values, err = c.Find(bson.M{"name": "nobody"}).Distinct(ctx, "name")
		require.NoError(t, err)
		assert.Empty(t, values)
	})
	t.Run("update many", func(t *testing.T) {
		c := newCollection(t)
		result, err := c.Find(bson.M{"age": bson.M{"$lt": 31}}).UpdateMany(ctx, bson.M{"$inc": bson.M{"age": 1}}, storage.UpdateOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), result.MatchedCount)
		assert.Equal(t, int64(2), result.ModifiedCount)
		assert.True(t, result.Acknowledged)
		values, err := c.Find(nil).Distinct(ctx, "age")
		require.NoError(t, err)
		assert.Equal(t, []any{int64(31), int64(26), int64(35)}, values)
	})
	t.Run("update one upsert", func(t *testing.T) {
		c := newCollection(t)
		result, err := c.Find(bson.M{"name": "dave"}).UpdateOne(ctx, bson.M{"$set": bson.M{"age": 40}}, storage.UpdateOptions{Upsert: true})
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.UpsertedCount)
		assert.NotNil(t, result.UpsertedID)
		count, err := c.Find(bson.M{"name": "dave", "age": 40}).CountDocuments(ctx, storage.CountOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
	t.Run("delete", func(t *testing.T) {
		c := newCollection(t)
		result, err := c.Find(bson.M{"tags": "b"}).DeleteOne(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.DeletedCount)
		result, err = c.Find(nil).DeleteMany(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), result.DeletedCount)
	})
	t.Run("find one and update", func(t *testing.T) {
		c := newCollection(t)
		view := c.Find(nil)
		view = view.With(view.Spec().WithSort(bson.D{{Key: "age", Value: 1}}))
		before, err := view.FindOneAndUpdate(ctx, bson.M{"$set": bson.M{"name": "robert"}}, storage.FindAndModifyOptions{})
		require.NoError(t, err)
		assert.Equal(t, "bob", before["name"])
		after, err := view.FindOneAndUpdate(ctx, bson.M{"$set": bson.M{"name": "bobby"}}, storage.FindAndModifyOptions{ReturnDocument: storage.ReturnAfter})
		require.NoError(t, err)
		assert.Equal(t, "bobby", after["name"])
		missing, err := c.Find(bson.M{"name": "nobody"}).FindOneAndUpdate(ctx, bson.M{"$set": bson.M{"x": 1}}, storage.FindAndModifyOptions{})
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
	t.Run("find one and replace", func(t *testing.T) {
		c := newCollection(t)
		after, err := c.Find(bson.M{"_id": 3}).FindOneAndReplace(ctx, bson.M{"name": "caroline"}, storage.FindAndModifyOptions{ReturnDocument: storage.ReturnAfter})
		require.NoError(t, err)
		assert.Equal(t, bson.M{"_id": int64(3), "name": "caroline"}, after)
		_, err = c.Find(bson.M{"_id": 3}).FindOneAndReplace(ctx, bson.M{"$set": bson.M{"name": "x"}}, storage.FindAndModifyOptions{})
		assert.Error(t, err)
	})
	t.Run("find one and delete", func(t *testing.T) {
		c := newCollection(t)
		deleted, err := c.Find(bson.M{"_id": 2}).FindOneAndDelete(ctx)
		require.NoError(t, err)
		assert.Equal(t, "bob", deleted["name"])
		count, err := c.Find(nil).CountDocuments(ctx, storage.CountOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})
	t.Run("aggregate", func(t *testing.T) {
		c := newCollection(t)
		cursor, err := c.Find(nil).Aggregate(ctx, []bson.M{
			{"$match": bson.M{"age": bson.M{"$gte": 25}}},
			{"$group": bson.M{
				"_id":   nil,
				"count": bson.M{"$sum": 1},
				"sum":   bson.M{"$sum": "$age"},
				"avg":   bson.M{"$avg": "$age"},
				"min":   bson.M{"$min": "$age"},
				"max":   bson.M{"$max": "$age"},
			}},
		})
		require.NoError(t, err)
		docs, err := storage.All(ctx, cursor)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, int64(3), docs[0]["count"])
		assert.Equal(t, int64(90), docs[0]["sum"])
		assert.Equal(t, 30.0, docs[0]["avg"])
		assert.Equal(t, int64(25), docs[0]["min"])
		assert.Equal(t, int64(35), docs[0]["max"])
	})
	t.Run("aggregate group by", func(t *testing.T) {
		c := newCollection(t)
		cursor, err := c.Find(nil).Aggregate(ctx, []bson.M{
			{"$unwind": "$tags"},
			{"$group": bson.M{"_id": "$tags", "count": bson.M{"$sum": 1}}},
			{"$sort": bson.D{{Key: "_id", Value: 1}}},
		})
		require.NoError(t, err)
		docs, err := storage.All(ctx, cursor)
		require.NoError(t, err)
		assert.Equal(t, []bson.M{{"_id": "a", "count": int64(1)}, {"_id": "b", "count": int64(2)}}, docs)
	})
	t.Run("explain", func(t *testing.T) {
		c := newCollection(t)
		view := c.Find(bson.M{"age": bson.M{"$gt": 26}})
		plan, err := view.With(view.Spec().WithComment("hello").WithHint("age_1")).Explain(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), plan["executionStats"].(bson.M)["nReturned"])
		assert.Equal(t, "hello", plan["options"].(bson.M)["comment"])
	})
	t.Run("duplicate id", func(t *testing.T) {
		c := newCollection(t)
		_, err := c.InsertOne(ctx, bson.M{"_id": int64(1)})
		assert.Error(t, err)
	})
	t.Run("generated id", func(t *testing.T) {
		c := newCollection(t)
		id, err := c.InsertOne(ctx, bson.M{"name": gofakeit.Name()})
		require.NoError(t, err)
		assert.IsType(t, bson.ObjectID{}, id)
	})
	t.Run("cancelled context", func(t *testing.T) {
		c := newCollection(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := c.Find(nil).Cursor(cctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
	t.Run("drop", func(t *testing.T) {
		c := newCollection(t)
		require.NoError(t, c.Drop(ctx))
		count, err := c.Find(nil).EstimatedDocumentCount(ctx, storage.CountOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})
	t.Run("load", func(t *testing.T) {
		c := newCollection(t)
		n, err := c.Load(ctx, []bson.M{
			{"_id": int64(3), "name": "carol", "age": 36},
			{"_id": int64(4), "name": gofakeit.Name()},
			{"_id": int64(4), "name": "dave"},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, []any{int64(1), int64(2), int64(3), int64(4)}, ids(t, ctx, c.Find(nil)))
		doc, err := c.Find(bson.M{"_id": int64(4)}).FindOneAndDelete(ctx)
		require.NoError(t, err)
		assert.Equal(t, "dave", doc["name"])
		values, err := c.Find(bson.M{"_id": int64(3)}).Distinct(ctx, "age")
		require.NoError(t, err)
		assert.Equal(t, []any{int64(36)}, values)
	})
}
