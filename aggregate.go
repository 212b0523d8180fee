package docmap

import (
	"context"

	"github.com/autom8ter/docmap/storage"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Aggregates holds the count, sum, average, minimum and maximum of a field
type Aggregates struct {
	Count int64 `json:"count"`
	Sum   any   `json:"sum"`
	Avg   any   `json:"avg"`
	Min   any   `json:"min"`
	Max   any   `json:"max"`
}

// Aggregates computes the aggregates of the field over the matching documents that have it.
// When no document has the field, Count is zero, Sum is zero and the other values are nil.
func (q *QueryContext) Aggregates(ctx context.Context, field string) (Aggregates, error) {
	name := q.class.DatabaseFieldName(field)
	spec := q.view.Spec()
	match := bson.M{name: bson.M{"$exists": true}}
	if len(spec.Filter) > 0 {
		match = bson.M{"$and": []any{spec.Filter, match}}
	}
	pipeline := []bson.M{{"$match": match}}
	if len(spec.Sort) > 0 && (spec.Skip > 0 || spec.Limit > 0) {
		pipeline = append(pipeline, bson.M{"$sort": spec.Sort})
	}
	if spec.Skip > 0 {
		pipeline = append(pipeline, bson.M{"$skip": spec.Skip})
	}
	if spec.Limit > 0 {
		pipeline = append(pipeline, bson.M{"$limit": spec.Limit})
	}
	ref := "$" + name
	pipeline = append(pipeline, bson.M{"$group": bson.M{
		"_id":   nil,
		"count": bson.M{"$sum": 1},
		"max":   bson.M{"$max": ref},
		"min":   bson.M{"$min": ref},
		"sum":   bson.M{"$sum": ref},
		"avg":   bson.M{"$avg": ref},
	}})
	q.trace(ctx, "aggregates")
	cursor, err := q.view.Aggregate(ctx, pipeline)
	if err != nil {
		return Aggregates{}, err
	}
	result, err := storage.First(ctx, cursor)
	if err != nil {
		return Aggregates{}, err
	}
	if result == nil {
		return Aggregates{Count: 0, Sum: int64(0)}, nil
	}
	aggregates := Aggregates{
		Count: toInt64(result["count"]),
		Sum:   result["sum"],
		Avg:   result["avg"],
		Min:   result["min"],
		Max:   result["max"],
	}
	if aggregates.Sum == nil {
		aggregates.Sum = int64(0)
	}
	return aggregates, nil
}

// Sum returns the sum of the field over the matching documents
func (q *QueryContext) Sum(ctx context.Context, field string) (any, error) {
	aggregates, err := q.Aggregates(ctx, field)
	if err != nil {
		return nil, err
	}
	return aggregates.Sum, nil
}

// Avg returns the average of the field over the matching documents, or nil
func (q *QueryContext) Avg(ctx context.Context, field string) (any, error) {
	aggregates, err := q.Aggregates(ctx, field)
	if err != nil {
		return nil, err
	}
	return aggregates.Avg, nil
}

// Min returns the smallest value of the field over the matching documents, or nil
func (q *QueryContext) Min(ctx context.Context, field string) (any, error) {
	aggregates, err := q.Aggregates(ctx, field)
	if err != nil {
		return nil, err
	}
	return aggregates.Min, nil
}

// Max returns the largest value of the field over the matching documents, or nil
func (q *QueryContext) Max(ctx context.Context, field string) (any, error) {
	aggregates, err := q.Aggregates(ctx, field)
	if err != nil {
		return nil, err
	}
	return aggregates.Max, nil
}

func toInt64(value any) int64 {
	return cast.ToInt64(value)
}
