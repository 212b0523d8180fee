package storage

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Spec is the shape of a query. It is a value: every With method returns a modified copy and
// never touches the receiver.
type Spec struct {
	Filter          bson.M          `json:"filter,omitempty"`
	Sort            bson.D          `json:"sort,omitempty"`
	Limit           int64           `json:"limit,omitempty"`
	Skip            int64           `json:"skip,omitempty"`
	Projection      bson.M          `json:"projection,omitempty"`
	Hint            any             `json:"hint,omitempty"`
	BatchSize       int32           `json:"batch_size,omitempty"`
	MaxScan         int64           `json:"max_scan,omitempty"`
	MaxTime         time.Duration   `json:"max_time,omitempty"`
	Snapshot        bool            `json:"snapshot,omitempty"`
	Comment         string          `json:"comment,omitempty"`
	ReadPreference  *ReadPreference `json:"read,omitempty"`
	CursorType      CursorType      `json:"cursor_type,omitempty"`
	Collation       *Collation      `json:"collation,omitempty"`
	NoCursorTimeout bool            `json:"no_cursor_timeout,omitempty"`
}

// NewSpec returns the spec of an unbounded query over the filter
func NewSpec(filter bson.M) Spec {
	return Spec{Filter: CloneM(filter)}
}

func (s Spec) WithFilter(filter bson.M) Spec {
	s.Filter = CloneM(filter)
	return s
}

func (s Spec) WithSort(sort bson.D) Spec {
	s.Sort = CloneD(sort)
	return s
}

// WithLimit bounds the number of returned documents. Zero means no limit.
func (s Spec) WithLimit(limit int64) Spec {
	s.Limit = limit
	return s
}

func (s Spec) WithSkip(skip int64) Spec {
	s.Skip = skip
	return s
}

func (s Spec) WithProjection(projection bson.M) Spec {
	s.Projection = CloneM(projection)
	return s
}

func (s Spec) WithHint(hint any) Spec {
	s.Hint = hint
	return s
}

func (s Spec) WithBatchSize(size int32) Spec {
	s.BatchSize = size
	return s
}

func (s Spec) WithMaxScan(maxScan int64) Spec {
	s.MaxScan = maxScan
	return s
}

func (s Spec) WithMaxTime(maxTime time.Duration) Spec {
	s.MaxTime = maxTime
	return s
}

func (s Spec) WithSnapshot(snapshot bool) Spec {
	s.Snapshot = snapshot
	return s
}

func (s Spec) WithComment(comment string) Spec {
	s.Comment = comment
	return s
}

func (s Spec) WithReadPreference(pref ReadPreference) Spec {
	s.ReadPreference = &pref
	return s
}

func (s Spec) WithCursorType(cursorType CursorType) Spec {
	s.CursorType = cursorType
	return s
}

func (s Spec) WithCollation(collation Collation) Spec {
	s.Collation = &collation
	return s
}

func (s Spec) WithNoCursorTimeout() Spec {
	s.NoCursorTimeout = true
	return s
}
