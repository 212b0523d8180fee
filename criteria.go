package docmap

import (
	"github.com/autom8ter/docmap/schema"
	"github.com/autom8ter/docmap/storage"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Criteria describes a query: a selector, a bag of options and the class the query targets.
// Criteria values are never modified in place; every builder method returns a copy.
type Criteria struct {
	// Selector is the filter of the query
	Selector bson.M `json:"selector,omitempty"`
	// Options holds the query options keyed by option name
	Options Options `json:"options,omitempty"`
	// Class is the class of the documents the query returns
	Class *schema.Class `json:"-"`
	// Collection is the collection the query runs against
	Collection storage.Collection `json:"-"`
	// Includes lists the associations to eager load
	Includes []string `json:"includes,omitempty"`
}

// NewCriteria returns a criteria matching every document of the class in the collection
func NewCriteria(class *schema.Class, collection storage.Collection) Criteria {
	return Criteria{
		Selector:   bson.M{},
		Options:    Options{},
		Class:      class,
		Collection: collection,
	}
}

func (c Criteria) clone() Criteria {
	c.Selector = storage.CloneM(c.Selector)
	c.Options = c.Options.clone()
	c.Includes = append([]string(nil), c.Includes...)
	return c
}

// Where returns a criteria matching documents that match both the current selector and the
// given one
func (c Criteria) Where(selector bson.M) Criteria {
	c = c.clone()
	switch {
	case len(selector) == 0:
	case len(c.Selector) == 0:
		c.Selector = storage.CloneM(selector)
	default:
		c.Selector = bson.M{"$and": []any{c.Selector, storage.CloneM(selector)}}
	}
	return c
}

// OrderBy returns a criteria with the sort merged into the current sort. Keys already present
// keep their position and take the new direction.
func (c Criteria) OrderBy(sort bson.D) Criteria {
	c = c.clone()
	merged := c.Sort()
	for _, e := range normalizeSort(sort) {
		replaced := false
		for i := range merged {
			if merged[i].Key == e.Key {
				merged[i].Value = e.Value
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, e)
		}
	}
	c.Options[OptSort] = merged
	return c
}

// With returns a criteria with the option set
func (c Criteria) With(name string, value any) Criteria {
	c = c.clone()
	c.Options[name] = value
	return c
}

// Include returns a criteria that eager loads the named associations
func (c Criteria) Include(associations ...string) Criteria {
	c = c.clone()
	c.Includes = append(c.Includes, associations...)
	return c
}

// Only returns a criteria projecting the given fields
func (c Criteria) Only(fields ...string) Criteria {
	projection := bson.M{}
	for _, f := range fields {
		if c.Class != nil {
			f = c.Class.DatabaseFieldName(f)
		}
		projection[f] = 1
	}
	return c.With(OptFields, projection)
}

// Limit returns a criteria returning at most n documents
func (c Criteria) Limit(n int64) Criteria {
	return c.With(OptLimit, n)
}

// Skip returns a criteria skipping the first n documents
func (c Criteria) Skip(n int64) Criteria {
	return c.With(OptSkip, n)
}

// Cache returns a criteria whose query contexts cache their results
func (c Criteria) Cache() Criteria {
	return c.With(OptCache, true)
}

// Sort returns the sort option of the criteria, or nil if none is set or it cannot be read
func (c Criteria) Sort() bson.D {
	value, ok := c.Options[OptSort]
	if !ok {
		return nil
	}
	sort, err := toSort(value)
	if err != nil {
		return nil
	}
	return sort
}

// Cached returns true if the cache option is enabled
func (c Criteria) Cached() bool {
	return c.Options.Bool(OptCache)
}
