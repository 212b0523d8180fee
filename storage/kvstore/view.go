package kvstore

import (
	"context"
	"strings"

	"github.com/autom8ter/docmap/errors"
	"github.com/autom8ter/docmap/kv"
	"github.com/autom8ter/docmap/storage"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var errorReplacementOperators = errors.New(errors.Validation, "a replacement document must not contain update operators")

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

// window applies sort, skip and limit to the matched documents
func window(docs []bson.M, sort bson.D, skip, limit int64) []bson.M {
	sortDocs(docs, sort)
	if skip > 0 {
		if skip >= int64(len(docs)) {
			return nil
		}
		docs = docs[skip:]
	}
	if limit < 0 {
		limit = -limit
	}
	if limit > 0 && limit < int64(len(docs)) {
		docs = docs[:limit]
	}
	return docs
}

func (v *view) find(ctx context.Context) ([]bson.M, error) {
	var docs []bson.M
	err := v.collection.read(ctx, func(tx kv.Tx) error {
		var err error
		docs, err = v.collection.scan(ctx, tx, v.spec.Filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return window(docs, v.spec.Sort, v.spec.Skip, v.spec.Limit), nil
}

func (v *view) Cursor(ctx context.Context) (storage.Cursor, error) {
	p, err := newProjection(v.spec.Projection)
	if err != nil {
		return nil, err
	}
	docs, err := v.find(ctx)
	if err != nil {
		return nil, err
	}
	if p != nil {
		for i, doc := range docs {
			docs[i] = p.apply(doc)
		}
	}
	return storage.NewSliceCursor(docs), nil
}

func (v *view) CountDocuments(ctx context.Context, opts storage.CountOptions) (int64, error) {
	skip, limit := v.spec.Skip, v.spec.Limit
	if opts.Skip != 0 {
		skip = opts.Skip
	}
	if opts.Limit != 0 {
		limit = opts.Limit
	}
	var docs []bson.M
	err := v.collection.read(ctx, func(tx kv.Tx) error {
		var err error
		docs, err = v.collection.scan(ctx, tx, v.spec.Filter)
		return err
	})
	if err != nil {
		return 0, err
	}
	return int64(len(window(docs, nil, skip, limit))), nil
}

func (v *view) EstimatedDocumentCount(ctx context.Context, opts storage.CountOptions) (int64, error) {
	var count int64
	err := v.collection.read(ctx, func(tx kv.Tx) error {
		iter, err := tx.NewIterator(kv.IterOpts{Prefix: v.collection.prefix()})
		if err != nil {
			return err
		}
		defer iter.Close()
		for iter.Valid() {
			count++
			iter.Next()
		}
		return nil
	})
	return count, err
}

func (v *view) Distinct(ctx context.Context, field string) ([]any, error) {
	var docs []bson.M
	err := v.collection.read(ctx, func(tx kv.Tx) error {
		var err error
		docs, err = v.collection.scan(ctx, tx, v.spec.Filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	values := []any{}
	for _, doc := range docs {
		found, _ := lookupAll(doc, strings.Split(field, "."))
		for _, value := range expand(found) {
			if !containsValue(values, value) {
				values = append(values, value)
			}
		}
	}
	return values, nil
}

func (v *view) deleteMatching(ctx context.Context, one bool) (storage.DeleteResult, error) {
	var deleted int64
	err := v.collection.write(ctx, func(tx kv.Tx) error {
		docs, err := v.collection.scan(ctx, tx, v.spec.Filter)
		if err != nil {
			return err
		}
		if one && len(docs) > 1 {
			docs = docs[:1]
		}
		for _, doc := range docs {
			if err := v.collection.remove(ctx, tx, doc); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return storage.DeleteResult{}, err
	}
	return storage.DeleteResult{DeletedCount: deleted, Acknowledged: true}, nil
}

func (v *view) DeleteOne(ctx context.Context) (storage.DeleteResult, error) {
	return v.deleteMatching(ctx, true)
}

func (v *view) DeleteMany(ctx context.Context) (storage.DeleteResult, error) {
	return v.deleteMatching(ctx, false)
}

func (v *view) updateMatching(ctx context.Context, update bson.M, opts storage.UpdateOptions, one bool) (storage.UpdateResult, error) {
	var result = storage.UpdateResult{Acknowledged: true}
	err := v.collection.write(ctx, func(tx kv.Tx) error {
		docs, err := v.collection.scan(ctx, tx, v.spec.Filter)
		if err != nil {
			return err
		}
		if one && len(docs) > 1 {
			docs = docs[:1]
		}
		for _, doc := range docs {
			updated, changed, err := applyUpdate(doc, update, false)
			if err != nil {
				return err
			}
			result.MatchedCount++
			if !changed {
				continue
			}
			if err := v.collection.put(ctx, tx, updated); err != nil {
				return err
			}
			result.ModifiedCount++
		}
		if len(docs) == 0 && opts.Upsert {
			doc, err := v.upsert(ctx, tx, update)
			if err != nil {
				return err
			}
			result.UpsertedCount = 1
			result.UpsertedID = doc["_id"]
		}
		return nil
	})
	if err != nil {
		return storage.UpdateResult{}, err
	}
	return result, nil
}

func (v *view) upsert(ctx context.Context, tx kv.Tx, update bson.M) (bson.M, error) {
	seed := upsertDocument(storage.NormalizeDocument(v.spec.Filter))
	doc, _, err := applyUpdate(seed, update, true)
	if err != nil {
		return nil, err
	}
	doc = withID(doc)
	if err := v.collection.insert(ctx, tx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (v *view) UpdateOne(ctx context.Context, update bson.M, opts storage.UpdateOptions) (storage.UpdateResult, error) {
	return v.updateMatching(ctx, update, opts, true)
}

func (v *view) UpdateMany(ctx context.Context, update bson.M, opts storage.UpdateOptions) (storage.UpdateResult, error) {
	return v.updateMatching(ctx, update, opts, false)
}

// findAndModify finds the first document in sort order and applies fn to it inside a single
// write transaction
func (v *view) findAndModify(ctx context.Context, fn func(tx kv.Tx, doc bson.M) (bson.M, error)) (bson.M, error) {
	p, err := newProjection(v.spec.Projection)
	if err != nil {
		return nil, err
	}
	var result bson.M
	err = v.collection.write(ctx, func(tx kv.Tx) error {
		docs, err := v.collection.scan(ctx, tx, v.spec.Filter)
		if err != nil {
			return err
		}
		docs = window(docs, v.spec.Sort, v.spec.Skip, 1)
		var doc bson.M
		if len(docs) > 0 {
			doc = docs[0]
		}
		result, err = fn(tx, doc)
		return err
	})
	if err != nil || result == nil {
		return nil, err
	}
	return p.apply(result), nil
}

func (v *view) modify(ctx context.Context, update bson.M, opts storage.FindAndModifyOptions) (bson.M, error) {
	return v.findAndModify(ctx, func(tx kv.Tx, doc bson.M) (bson.M, error) {
		if doc == nil {
			if !opts.Upsert {
				return nil, nil
			}
			inserted, err := v.upsert(ctx, tx, update)
			if err != nil || opts.ReturnDocument != storage.ReturnAfter {
				return nil, err
			}
			return inserted, nil
		}
		updated, changed, err := applyUpdate(doc, update, false)
		if err != nil {
			return nil, err
		}
		if changed {
			if err := v.collection.put(ctx, tx, updated); err != nil {
				return nil, err
			}
		}
		if opts.ReturnDocument == storage.ReturnAfter {
			return updated, nil
		}
		return doc, nil
	})
}

func (v *view) FindOneAndUpdate(ctx context.Context, update bson.M, opts storage.FindAndModifyOptions) (bson.M, error) {
	return v.modify(ctx, update, opts)
}

func (v *view) FindOneAndReplace(ctx context.Context, replacement bson.M, opts storage.FindAndModifyOptions) (bson.M, error) {
	if isOperatorUpdate(replacement) {
		return nil, errorReplacementOperators
	}
	return v.modify(ctx, replacement, opts)
}

func (v *view) FindOneAndDelete(ctx context.Context) (bson.M, error) {
	return v.findAndModify(ctx, func(tx kv.Tx, doc bson.M) (bson.M, error) {
		if doc == nil {
			return nil, nil
		}
		return doc, v.collection.remove(ctx, tx, doc)
	})
}

func (v *view) Explain(ctx context.Context) (bson.M, error) {
	examined, err := v.EstimatedDocumentCount(ctx, storage.CountOptions{})
	if err != nil {
		return nil, err
	}
	var returned int64
	err = v.collection.read(ctx, func(tx kv.Tx) error {
		docs, err := v.collection.scan(ctx, tx, v.spec.Filter)
		if err != nil {
			return err
		}
		returned = int64(len(window(docs, v.spec.Sort, v.spec.Skip, v.spec.Limit)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	options := bson.M{
		"sort":              v.spec.Sort,
		"limit":             v.spec.Limit,
		"skip":              v.spec.Skip,
		"projection":        v.spec.Projection,
		"hint":              v.spec.Hint,
		"batch_size":        v.spec.BatchSize,
		"max_scan":          v.spec.MaxScan,
		"max_time_ms":       v.spec.MaxTime.Milliseconds(),
		"snapshot":          v.spec.Snapshot,
		"comment":           v.spec.Comment,
		"cursor_type":       string(v.spec.CursorType),
		"no_cursor_timeout": v.spec.NoCursorTimeout,
	}
	if v.spec.ReadPreference != nil {
		options["read"] = bson.M{"mode": string(v.spec.ReadPreference.Mode)}
	}
	if v.spec.Collation != nil {
		options["collation"] = bson.M{"locale": v.spec.Collation.Locale}
	}
	return bson.M{
		"queryPlanner": bson.M{
			"namespace":   v.collection.name,
			"parsedQuery": v.spec.Filter,
			"winningPlan": bson.M{"stage": "COLLSCAN"},
		},
		"executionStats": bson.M{
			"nReturned":         returned,
			"totalDocsExamined": examined,
		},
		"options": options,
	}, nil
}

func (v *view) Aggregate(ctx context.Context, pipeline []bson.M) (storage.Cursor, error) {
	var docs []bson.M
	err := v.collection.read(ctx, func(tx kv.Tx) error {
		var err error
		docs, err = v.collection.scan(ctx, tx, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	results, err := runPipeline(docs, pipeline)
	if err != nil {
		return nil, err
	}
	return storage.NewSliceCursor(results), nil
}
