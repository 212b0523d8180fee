package storage

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Normalize converts a decoded BSON value into the shapes the query layer works with: embedded
// documents become bson.M, arrays become []any and int32 widens to int64.
func Normalize(value any) any {
	switch value := value.(type) {
	case bson.M:
		out := make(bson.M, len(value))
		for k, v := range value {
			out[k] = Normalize(v)
		}
		return out
	case map[string]any:
		out := make(bson.M, len(value))
		for k, v := range value {
			out[k] = Normalize(v)
		}
		return out
	case bson.D:
		out := make(bson.M, len(value))
		for _, e := range value {
			out[e.Key] = Normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(value))
		for i, v := range value {
			out[i] = Normalize(v)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, v := range value {
			out[i] = Normalize(v)
		}
		return out
	case []bson.M:
		out := make([]any, len(value))
		for i, v := range value {
			out[i] = Normalize(v)
		}
		return out
	case int32:
		return int64(value)
	case int:
		return int64(value)
	default:
		return value
	}
}

// NormalizeDocument normalizes every value of a raw document
func NormalizeDocument(doc bson.M) bson.M {
	if doc == nil {
		return nil
	}
	return Normalize(doc).(bson.M)
}

// AsDocument returns the value as a document if it is one
func AsDocument(value any) (bson.M, bool) {
	switch value := value.(type) {
	case bson.M:
		return value, true
	case map[string]any:
		return value, true
	case bson.D:
		return Normalize(value).(bson.M), true
	default:
		return nil, false
	}
}

// AsArray returns the value as an array if it is one
func AsArray(value any) ([]any, bool) {
	switch value := value.(type) {
	case []any:
		return value, true
	case bson.A:
		return value, true
	default:
		return nil, false
	}
}

// Lookup fetches the value at a dotted path. Only embedded documents are traversed.
func Lookup(doc bson.M, path string) (any, bool) {
	var current any = doc
	for _, segment := range strings.Split(path, ".") {
		d, ok := AsDocument(current)
		if !ok {
			return nil, false
		}
		current, ok = d[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// InvertSort negates the direction of every sort key
func InvertSort(sort bson.D) bson.D {
	inverted := make(bson.D, 0, len(sort))
	for _, e := range sort {
		inverted = append(inverted, bson.E{Key: e.Key, Value: invertDirection(e.Value)})
	}
	return inverted
}

func invertDirection(direction any) any {
	switch d := direction.(type) {
	case int:
		return -d
	case int32:
		return -d
	case int64:
		return -d
	case float64:
		return -d
	case string:
		if strings.EqualFold(d, "desc") || strings.EqualFold(d, "descending") {
			return 1
		}
		return -1
	default:
		return -1
	}
}

// SortDirection returns 1 for ascending and -1 for descending sort values
func SortDirection(direction any) int {
	switch d := direction.(type) {
	case int:
		return sign(int64(d))
	case int32:
		return sign(int64(d))
	case int64:
		return sign(d)
	case float64:
		return sign(int64(d))
	case string:
		if strings.EqualFold(d, "desc") || strings.EqualFold(d, "descending") {
			return -1
		}
		return 1
	default:
		return 1
	}
}

func sign(i int64) int {
	if i < 0 {
		return -1
	}
	return 1
}

// CloneM returns a shallow copy of the document
func CloneM(m bson.M) bson.M {
	if m == nil {
		return nil
	}
	out := make(bson.M, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// CloneD returns a copy of the ordered document
func CloneD(d bson.D) bson.D {
	if d == nil {
		return nil
	}
	return append(bson.D{}, d...)
}

// ToTime converts BSON time representations into time.Time
func ToTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case bson.DateTime:
		return v.Time().UTC(), true
	case bson.Timestamp:
		return time.Unix(int64(v.T), 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

// All drains the cursor into a slice and closes it
func All(ctx context.Context, cursor Cursor) ([]bson.M, error) {
	defer cursor.Close(ctx)
	var docs []bson.M
	for cursor.Next(ctx) {
		docs = append(docs, cursor.Current())
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// First returns the first document of the cursor (nil when empty) and closes it
func First(ctx context.Context, cursor Cursor) (bson.M, error) {
	defer cursor.Close(ctx)
	if cursor.Next(ctx) {
		return cursor.Current(), nil
	}
	return nil, cursor.Err()
}

type sliceCursor struct {
	docs    []bson.M
	index   int
	current bson.M
	err     error
}

// NewSliceCursor returns a cursor over the documents
func NewSliceCursor(docs []bson.M) Cursor {
	return &sliceCursor{docs: docs}
}

func (s *sliceCursor) Next(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		s.err = err
		s.current = nil
		return false
	}
	if s.index >= len(s.docs) {
		s.current = nil
		return false
	}
	s.current = s.docs[s.index]
	s.index++
	return true
}

func (s *sliceCursor) Current() bson.M {
	return s.current
}

func (s *sliceCursor) Err() error {
	return s.err
}

func (s *sliceCursor) Close(ctx context.Context) error {
	s.index = len(s.docs)
	return nil
}
