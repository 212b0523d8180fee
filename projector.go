package docmap

import (
	"context"
	"reflect"

	"github.com/autom8ter/docmap/storage"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Pluck returns the values of the fields for every matching document without building
// models. A single field yields one value per document; several fields yield a []any row per
// document.
func (q *QueryContext) Pluck(ctx context.Context, fields ...string) ([]any, error) {
	return q.pluck(ctx, q.view, fields)
}

// Pick returns the plucked values of the first matching document, or nil
func (q *QueryContext) Pick(ctx context.Context, fields ...string) (any, error) {
	rows, err := q.pluck(ctx, q.view.With(q.view.Spec().WithLimit(1)), fields)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Map returns the value of the field for every matching document
func (q *QueryContext) Map(ctx context.Context, field string) ([]any, error) {
	return q.Pluck(ctx, field)
}

func (q *QueryContext) pluck(ctx context.Context, view storage.View, fields []string) ([]any, error) {
	if len(fields) == 0 {
		return []any{}, nil
	}
	var (
		projection = bson.M{}
		names      = make([]string, 0, len(fields))
		r          = q.resolver()
	)
	for _, f := range fields {
		names = append(names, q.class.DatabaseFieldName(f))
		projection[q.class.CleanseLocalizedFieldNames(f)] = true
	}
	q.trace(ctx, "pluck")
	cursor, err := view.With(view.Spec().WithProjection(projection)).Cursor(ctx)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var plucked = []any{}
	for cursor.Next(ctx) {
		doc := cursor.Current()
		row := make([]any, 0, len(names))
		for _, name := range names {
			row = append(row, r.Resolve(doc, name))
		}
		if len(row) == 1 {
			plucked = append(plucked, row[0])
		} else {
			plucked = append(plucked, row)
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return plucked, nil
}

// Distinct returns the distinct values of the field across the matching documents
func (q *QueryContext) Distinct(ctx context.Context, field string) ([]any, error) {
	if q.config.LegacyPluckDistinct {
		q.trace(ctx, "distinct")
		return q.view.Distinct(ctx, q.class.DatabaseFieldName(field))
	}
	name := q.class.CleanseLocalizedFieldNames(field)
	q.trace(ctx, "distinct")
	values, err := q.view.Distinct(ctx, name)
	if err != nil {
		return nil, err
	}
	var (
		fld         = q.class.TraverseAssociationTree(name, nil)
		translation = name+"_translations" == field
		r           = q.resolver()
		out         = make([]any, 0, len(values))
	)
	for _, v := range values {
		out = append(out, r.demongoizeWithField(fld, v, translation))
	}
	return out, nil
}

// TallyEntry is a distinct value and the number of documents holding it
type TallyEntry struct {
	Value any   `json:"value"`
	Count int64 `json:"count"`
}

// Tally counts the matching documents per value of the field
func (q *QueryContext) Tally(ctx context.Context, field string) ([]TallyEntry, error) {
	name := q.class.DatabaseFieldName(field)
	var pipeline []bson.M
	if filter := q.view.Spec().Filter; len(filter) > 0 {
		pipeline = append(pipeline, bson.M{"$match": filter})
	}
	pipeline = append(pipeline, bson.M{"$group": bson.M{
		"_id":    "$" + name,
		"counts": bson.M{"$sum": 1},
	}})
	q.trace(ctx, "tally")
	cursor, err := q.view.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	groups, err := storage.All(ctx, cursor)
	if err != nil {
		return nil, err
	}
	var (
		fld     = q.class.TraverseAssociationTree(name, nil)
		r       = q.resolver()
		entries = []TallyEntry{}
	)
	for _, group := range groups {
		key := group["_id"]
		if values, ok := storage.AsArray(key); ok {
			demongoized := make([]any, 0, len(values))
			for _, v := range values {
				demongoized = append(demongoized, r.demongoizeWithField(fld, v, false))
			}
			key = demongoized
		} else {
			key = r.demongoizeWithField(fld, key, false)
		}
		entries = addTally(entries, key, toInt64(group["counts"]))
	}
	return entries, nil
}

func addTally(entries []TallyEntry, value any, count int64) []TallyEntry {
	for i := range entries {
		if reflect.DeepEqual(entries[i].Value, value) {
			entries[i].Count += count
			return entries
		}
	}
	return append(entries, TallyEntry{Value: value, Count: count})
}
