package docmap_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/autom8ter/docmap"
	"github.com/autom8ter/docmap/kv/badger"
	"github.com/autom8ter/docmap/schema"
	"github.com/autom8ter/docmap/storage"
	"github.com/autom8ter/docmap/storage/kvstore"
	"github.com/autom8ter/docmap/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var companyID = int64(100)

func peopleDocs() []bson.M {
	return []bson.M{
		{
			"_id":   int64(1),
			"n":     "alice",
			"age":   int64(30),
			"score": 1.5,
			"dob":   "1990-01-02T00:00:00Z",
			"tags":  []any{"a", "b"},
			"title": bson.M{"en": "Hi", "fr": "Salut"},
			"desc":  bson.M{"fr": "Bonjour"},
			"addrs": []any{
				bson.M{
					"street": "1 Main",
					"city":   "paris",
					"name":   bson.M{"en": "home", "fr": "maison"},
					"locations": []any{
						bson.M{"name": "door", "number": int64(1)},
						bson.M{"name": "gate", "number": int64(2)},
					},
				},
			},
			"pass":       bson.M{"number": "P1", "country": bson.M{"en": "France", "de": "Frankreich"}},
			"company_id": companyID,
		},
		{
			"_id":   int64(2),
			"n":     "bob",
			"age":   int64(25),
			"score": 2.5,
			"dob":   "1985-06-15T00:00:00Z",
			"tags":  []any{"b"},
			"title": bson.M{"en": "Hello", "fr": "Bonjour"},
			"addrs": []any{
				bson.M{
					"city": "rome",
					"locations": []any{
						bson.M{"name": "desk", "number": int64(3)},
					},
				},
				bson.M{"city": "paris"},
			},
			"company_id": companyID,
		},
		{
			"_id":    int64(3),
			"n":      "carol",
			"age":    int64(35),
			"dob":    time.Date(1980, 3, 4, 0, 0, 0, 0, time.UTC),
			"active": false,
		},
	}
}

type fixture struct {
	registry  *schema.Registry
	store     *kvstore.Store
	person    *schema.Class
	people    *kvstore.Collection
	companies *kvstore.Collection
	posts     *kvstore.Collection
	shapes    *kvstore.Collection
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := badger.New("")
	require.NoError(t, err)
	store := kvstore.New(db)
	t.Cleanup(func() {
		store.Close()
	})
	registry := testutil.Registry()
	f := &fixture{
		registry:  registry,
		store:     store,
		person:    testutil.Class(registry, "Person"),
		people:    store.Collection("people"),
		companies: store.Collection("companies"),
		posts:     store.Collection("posts"),
		shapes:    store.Collection("shapes"),
	}
	_, err = f.people.InsertMany(ctx, peopleDocs())
	require.NoError(t, err)
	_, err = f.companies.InsertMany(ctx, []bson.M{{"_id": companyID, "name": "acme", "emp_count": int64(2)}})
	require.NoError(t, err)
	_, err = f.posts.InsertMany(ctx, []bson.M{
		{"_id": int64(10), "title": "first", "person_id": int64(1)},
		{"_id": int64(11), "title": "second", "person_id": int64(1)},
		{"_id": int64(12), "title": "third", "person_id": int64(2)},
	})
	require.NoError(t, err)
	_, err = f.shapes.InsertMany(ctx, []bson.M{
		{"_id": int64(1), "_type": "Circle", "x": int64(1), "radius": 2.0},
		{"_id": int64(2), "_type": "Square", "x": int64(2), "width": int64(3)},
		{"_id": int64(3), "_type": "Shape", "x": int64(3)},
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) criteria() docmap.Criteria {
	return docmap.NewCriteria(f.person, f.people)
}

func newQuery(t *testing.T, criteria docmap.Criteria, opts ...docmap.Option) *docmap.QueryContext {
	t.Helper()
	q, err := docmap.NewQueryContext(criteria, opts...)
	require.NoError(t, err)
	return q
}

func modelIDs(models []docmap.Model) []any {
	out := []any{}
	for _, m := range models {
		out = append(out, m.ID())
	}
	return out
}

// recorder counts the storage round trips of the views it wraps
type recorder struct {
	mu    sync.Mutex
	calls map[string]int
}

func newRecorder() *recorder {
	return &recorder{calls: map[string]int{}}
}

func (r *recorder) add(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[op]++
}

func (r *recorder) count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int
	for _, n := range r.calls {
		total += n
	}
	return total
}

type recordingCollection struct {
	storage.Collection
	rec *recorder
}

func (c recordingCollection) Find(filter bson.M) storage.View {
	return &recordingView{View: c.Collection.Find(filter), rec: c.rec}
}

type recordingView struct {
	storage.View
	rec *recorder
}

func (v *recordingView) With(spec storage.Spec) storage.View {
	return &recordingView{View: v.View.With(spec), rec: v.rec}
}

func (v *recordingView) Cursor(ctx context.Context) (storage.Cursor, error) {
	v.rec.add("cursor")
	return v.View.Cursor(ctx)
}

func (v *recordingView) CountDocuments(ctx context.Context, opts storage.CountOptions) (int64, error) {
	v.rec.add("count_documents")
	return v.View.CountDocuments(ctx, opts)
}

func (v *recordingView) EstimatedDocumentCount(ctx context.Context, opts storage.CountOptions) (int64, error) {
	v.rec.add("estimated_document_count")
	return v.View.EstimatedDocumentCount(ctx, opts)
}

func (v *recordingView) Distinct(ctx context.Context, field string) ([]any, error) {
	v.rec.add("distinct")
	return v.View.Distinct(ctx, field)
}

func (v *recordingView) Aggregate(ctx context.Context, pipeline []bson.M) (storage.Cursor, error) {
	v.rec.add("aggregate")
	return v.View.Aggregate(ctx, pipeline)
}

// mockView is a view whose round trips are mocked. Its shape is tracked for real so that
// option handling can be asserted.
type mockView struct {
	mock.Mock
	spec storage.Spec
}

func (m *mockView) Spec() storage.Spec {
	return m.spec
}

func (m *mockView) With(spec storage.Spec) storage.View {
	m.spec = spec
	return m
}

func (m *mockView) Cursor(ctx context.Context) (storage.Cursor, error) {
	args := m.Called(ctx)
	cursor, _ := args.Get(0).(storage.Cursor)
	return cursor, args.Error(1)
}

func (m *mockView) CountDocuments(ctx context.Context, opts storage.CountOptions) (int64, error) {
	args := m.Called(ctx, opts)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockView) EstimatedDocumentCount(ctx context.Context, opts storage.CountOptions) (int64, error) {
	args := m.Called(ctx, opts)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockView) Distinct(ctx context.Context, field string) ([]any, error) {
	args := m.Called(ctx, field)
	values, _ := args.Get(0).([]any)
	return values, args.Error(1)
}

func (m *mockView) DeleteOne(ctx context.Context) (storage.DeleteResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(storage.DeleteResult), args.Error(1)
}

func (m *mockView) DeleteMany(ctx context.Context) (storage.DeleteResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(storage.DeleteResult), args.Error(1)
}

func (m *mockView) UpdateOne(ctx context.Context, update bson.M, opts storage.UpdateOptions) (storage.UpdateResult, error) {
	args := m.Called(ctx, update, opts)
	return args.Get(0).(storage.UpdateResult), args.Error(1)
}

func (m *mockView) UpdateMany(ctx context.Context, update bson.M, opts storage.UpdateOptions) (storage.UpdateResult, error) {
	args := m.Called(ctx, update, opts)
	return args.Get(0).(storage.UpdateResult), args.Error(1)
}

func (m *mockView) FindOneAndUpdate(ctx context.Context, update bson.M, opts storage.FindAndModifyOptions) (bson.M, error) {
	args := m.Called(ctx, update, opts)
	doc, _ := args.Get(0).(bson.M)
	return doc, args.Error(1)
}

func (m *mockView) FindOneAndReplace(ctx context.Context, replacement bson.M, opts storage.FindAndModifyOptions) (bson.M, error) {
	args := m.Called(ctx, replacement, opts)
	doc, _ := args.Get(0).(bson.M)
	return doc, args.Error(1)
}

func (m *mockView) FindOneAndDelete(ctx context.Context) (bson.M, error) {
	args := m.Called(ctx)
	doc, _ := args.Get(0).(bson.M)
	return doc, args.Error(1)
}

func (m *mockView) Explain(ctx context.Context) (bson.M, error) {
	args := m.Called(ctx)
	doc, _ := args.Get(0).(bson.M)
	return doc, args.Error(1)
}

func (m *mockView) Aggregate(ctx context.Context, pipeline []bson.M) (storage.Cursor, error) {
	args := m.Called(ctx, pipeline)
	cursor, _ := args.Get(0).(storage.Cursor)
	return cursor, args.Error(1)
}

type mockCollection struct {
	view *mockView
}

func (m *mockCollection) Name() string {
	return "mock"
}

func (m *mockCollection) Find(filter bson.M) storage.View {
	m.view.spec = storage.NewSpec(filter)
	return m.view
}

func (m *mockCollection) InsertOne(ctx context.Context, doc bson.M) (any, error) {
	return nil, nil
}
