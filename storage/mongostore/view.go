package mongostore

import (
	"context"

	"github.com/autom8ter/docmap/storage"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type view struct {
	collection *Collection
	spec       storage.Spec
}

var _ storage.View = (*view)(nil)

func (v *view) Spec() storage.Spec {
	return v.spec
}

func (v *view) With(spec storage.Spec) storage.View {
	return &view{collection: v.collection, spec: spec}
}

func (v *view) coll() *mongo.Collection {
	return v.collection.handle(v.spec.ReadPreference)
}

func (v *view) filter() bson.M {
	if v.spec.Filter == nil {
		return bson.M{}
	}
	return v.spec.Filter
}

// findOptions maps the query shape onto driver options. Max scan and snapshot are not supported
// by the driver and are ignored; max time bounds the context instead.
func (v *view) findOptions() *options.FindOptionsBuilder {
	opts := options.Find()
	s := v.spec
	if s.Limit != 0 {
		opts.SetLimit(s.Limit)
	}
	if s.Skip != 0 {
		opts.SetSkip(s.Skip)
	}
	if len(s.Sort) > 0 {
		opts.SetSort(s.Sort)
	}
	if len(s.Projection) > 0 {
		opts.SetProjection(s.Projection)
	}
	if s.Hint != nil {
		opts.SetHint(s.Hint)
	}
	if s.BatchSize != 0 {
		opts.SetBatchSize(s.BatchSize)
	}
	if s.Comment != "" {
		opts.SetComment(s.Comment)
	}
	if s.CursorType != "" {
		opts.SetCursorType(cursorType(s.CursorType))
	}
	if s.Collation != nil {
		opts.SetCollation(collation(s.Collation))
	}
	if s.NoCursorTimeout {
		opts.SetNoCursorTimeout(true)
	}
	return opts
}

func (v *view) Cursor(ctx context.Context) (storage.Cursor, error) {
	ctx, cancel := withMaxTime(ctx, v.spec.MaxTime)
	cursor, err := v.coll().Find(ctx, v.filter(), v.findOptions())
	if err != nil {
		cancel()
		return nil, err
	}
	return &mongoCursor{cursor: cursor, cancel: cancel}, nil
}

func (v *view) CountDocuments(ctx context.Context, opts storage.CountOptions) (int64, error) {
	maxTime := v.spec.MaxTime
	if opts.MaxTime > 0 {
		maxTime = opts.MaxTime
	}
	ctx, cancel := withMaxTime(ctx, maxTime)
	defer cancel()
	countOpts := options.Count()
	skip, limit := v.spec.Skip, v.spec.Limit
	if opts.Skip != 0 {
		skip = opts.Skip
	}
	if opts.Limit != 0 {
		limit = opts.Limit
	}
	if skip != 0 {
		countOpts.SetSkip(skip)
	}
	if limit != 0 {
		countOpts.SetLimit(limit)
	}
	hint := v.spec.Hint
	if opts.Hint != nil {
		hint = opts.Hint
	}
	if hint != nil {
		countOpts.SetHint(hint)
	}
	if v.spec.Collation != nil {
		countOpts.SetCollation(collation(v.spec.Collation))
	}
	return v.coll().CountDocuments(ctx, v.filter(), countOpts)
}

func (v *view) EstimatedDocumentCount(ctx context.Context, opts storage.CountOptions) (int64, error) {
	maxTime := v.spec.MaxTime
	if opts.MaxTime > 0 {
		maxTime = opts.MaxTime
	}
	ctx, cancel := withMaxTime(ctx, maxTime)
	defer cancel()
	return v.coll().EstimatedDocumentCount(ctx)
}

func (v *view) Distinct(ctx context.Context, field string) ([]any, error) {
	ctx, cancel := withMaxTime(ctx, v.spec.MaxTime)
	defer cancel()
	result := v.coll().Distinct(ctx, field, v.filter())
	if err := result.Err(); err != nil {
		return nil, err
	}
	var values []any
	if err := result.Decode(&values); err != nil {
		return nil, err
	}
	out := make([]any, len(values))
	for i, value := range values {
		out[i] = storage.Normalize(value)
	}
	return out, nil
}

func (v *view) DeleteOne(ctx context.Context) (storage.DeleteResult, error) {
	result, err := v.coll().DeleteOne(ctx, v.filter())
	if err != nil {
		return storage.DeleteResult{}, err
	}
	return storage.DeleteResult{DeletedCount: result.DeletedCount, Acknowledged: result.Acknowledged}, nil
}

func (v *view) DeleteMany(ctx context.Context) (storage.DeleteResult, error) {
	result, err := v.coll().DeleteMany(ctx, v.filter())
	if err != nil {
		return storage.DeleteResult{}, err
	}
	return storage.DeleteResult{DeletedCount: result.DeletedCount, Acknowledged: result.Acknowledged}, nil
}

func updateResult(result *mongo.UpdateResult) storage.UpdateResult {
	return storage.UpdateResult{
		MatchedCount:  result.MatchedCount,
		ModifiedCount: result.ModifiedCount,
		UpsertedCount: result.UpsertedCount,
		UpsertedID:    result.UpsertedID,
		Acknowledged:  result.Acknowledged,
	}
}

func (v *view) UpdateOne(ctx context.Context, update bson.M, opts storage.UpdateOptions) (storage.UpdateResult, error) {
	result, err := v.coll().UpdateOne(ctx, v.filter(), update, options.UpdateOne().SetUpsert(opts.Upsert))
	if err != nil {
		return storage.UpdateResult{}, err
	}
	return updateResult(result), nil
}

func (v *view) UpdateMany(ctx context.Context, update bson.M, opts storage.UpdateOptions) (storage.UpdateResult, error) {
	result, err := v.coll().UpdateMany(ctx, v.filter(), update, options.UpdateMany().SetUpsert(opts.Upsert))
	if err != nil {
		return storage.UpdateResult{}, err
	}
	return updateResult(result), nil
}

func returnDocument(r storage.ReturnDocument) options.ReturnDocument {
	if r == storage.ReturnAfter {
		return options.After
	}
	return options.Before
}

// decodeSingle decodes a find-and-modify result, mapping no match to nil
func decodeSingle(result *mongo.SingleResult) (bson.M, error) {
	var doc bson.M
	if err := result.Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return storage.NormalizeDocument(doc), nil
}

func (v *view) FindOneAndUpdate(ctx context.Context, update bson.M, opts storage.FindAndModifyOptions) (bson.M, error) {
	o := options.FindOneAndUpdate().
		SetReturnDocument(returnDocument(opts.ReturnDocument)).
		SetUpsert(opts.Upsert)
	if len(v.spec.Sort) > 0 {
		o.SetSort(v.spec.Sort)
	}
	if len(v.spec.Projection) > 0 {
		o.SetProjection(v.spec.Projection)
	}
	return decodeSingle(v.coll().FindOneAndUpdate(ctx, v.filter(), update, o))
}

func (v *view) FindOneAndReplace(ctx context.Context, replacement bson.M, opts storage.FindAndModifyOptions) (bson.M, error) {
	o := options.FindOneAndReplace().
		SetReturnDocument(returnDocument(opts.ReturnDocument)).
		SetUpsert(opts.Upsert)
	if len(v.spec.Sort) > 0 {
		o.SetSort(v.spec.Sort)
	}
	if len(v.spec.Projection) > 0 {
		o.SetProjection(v.spec.Projection)
	}
	return decodeSingle(v.coll().FindOneAndReplace(ctx, v.filter(), replacement, o))
}

func (v *view) FindOneAndDelete(ctx context.Context) (bson.M, error) {
	o := options.FindOneAndDelete()
	if len(v.spec.Sort) > 0 {
		o.SetSort(v.spec.Sort)
	}
	if len(v.spec.Projection) > 0 {
		o.SetProjection(v.spec.Projection)
	}
	return decodeSingle(v.coll().FindOneAndDelete(ctx, v.filter(), o))
}

func (v *view) Explain(ctx context.Context) (bson.M, error) {
	find := bson.D{
		{Key: "find", Value: v.collection.name},
		{Key: "filter", Value: v.filter()},
	}
	if len(v.spec.Sort) > 0 {
		find = append(find, bson.E{Key: "sort", Value: v.spec.Sort})
	}
	if len(v.spec.Projection) > 0 {
		find = append(find, bson.E{Key: "projection", Value: v.spec.Projection})
	}
	if v.spec.Limit != 0 {
		find = append(find, bson.E{Key: "limit", Value: v.spec.Limit})
	}
	if v.spec.Skip != 0 {
		find = append(find, bson.E{Key: "skip", Value: v.spec.Skip})
	}
	if v.spec.Hint != nil {
		find = append(find, bson.E{Key: "hint", Value: v.spec.Hint})
	}
	if v.spec.Comment != "" {
		find = append(find, bson.E{Key: "comment", Value: v.spec.Comment})
	}
	var plan bson.M
	err := v.collection.db.RunCommand(ctx, bson.D{
		{Key: "explain", Value: find},
		{Key: "verbosity", Value: "queryPlanner"},
	}).Decode(&plan)
	if err != nil {
		return nil, err
	}
	return storage.NormalizeDocument(plan), nil
}

func (v *view) Aggregate(ctx context.Context, pipeline []bson.M) (storage.Cursor, error) {
	ctx, cancel := withMaxTime(ctx, v.spec.MaxTime)
	cursor, err := v.coll().Aggregate(ctx, pipeline)
	if err != nil {
		cancel()
		return nil, err
	}
	return &mongoCursor{cursor: cursor, cancel: cancel}, nil
}

type mongoCursor struct {
	cursor  *mongo.Cursor
	cancel  context.CancelFunc
	current bson.M
	err     error
}

func (m *mongoCursor) Next(ctx context.Context) bool {
	m.current = nil
	if m.err != nil || !m.cursor.Next(ctx) {
		return false
	}
	var doc bson.M
	if err := m.cursor.Decode(&doc); err != nil {
		m.err = err
		return false
	}
	m.current = storage.NormalizeDocument(doc)
	return true
}

func (m *mongoCursor) Current() bson.M {
	return m.current
}

func (m *mongoCursor) Err() error {
	if m.err != nil {
		return m.err
	}
	return m.cursor.Err()
}

func (m *mongoCursor) Close(ctx context.Context) error {
	defer m.cancel()
	return m.cursor.Close(ctx)
}
