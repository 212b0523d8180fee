package docmap

import (
	"sort"
	"time"

	"github.com/autom8ter/docmap/errors"
	"github.com/autom8ter/docmap/storage"
	"github.com/autom8ter/docmap/util"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	OptFields     = "fields"
	OptHint       = "hint"
	OptLimit      = "limit"
	OptSkip       = "skip"
	OptSort       = "sort"
	OptBatchSize  = "batch_size"
	OptMaxScan    = "max_scan"
	OptMaxTimeMS  = "max_time_ms"
	OptSnapshot   = "snapshot"
	OptComment    = "comment"
	OptRead       = "read"
	OptCursorType = "cursor_type"
	OptCollation  = "collation"
	OptTimeout    = "timeout"
	OptCache      = "cache"
	OptIDSort     = "id_sort"
)

// optionOrder is the order options are applied in after the projection
var optionOrder = []string{
	OptHint,
	OptLimit,
	OptSkip,
	OptSort,
	OptBatchSize,
	OptMaxScan,
	OptMaxTimeMS,
	OptSnapshot,
	OptComment,
	OptRead,
	OptCursorType,
	OptCollation,
}

// Options is a bag of query options keyed by option name
type Options map[string]any

func (o Options) clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Bool returns the option as a boolean. Missing and unreadable options are false.
func (o Options) Bool(name string) bool {
	value, ok := o[name]
	if !ok {
		return false
	}
	return cast.ToBool(value)
}

// IDSort controls the implicit _id sort of First and Last
type IDSort string

const (
	// IDSortAsc sorts by _id ascending when the query has no sort
	IDSortAsc IDSort = "asc"
	// IDSortNone disables the implicit sort
	IDSortNone IDSort = "none"
)

// FindOpts are options of First and Last
type FindOpts struct {
	IDSort IDSort
}

// FindOpt sets a find option
type FindOpt func(o *FindOpts)

// WithIDSort sets the implicit _id sort of First and Last
func WithIDSort(idSort IDSort) FindOpt {
	return func(o *FindOpts) {
		o.IDSort = idSort
	}
}

// applyOptions applies the options to the view: the projection first, then every other
// option in a fixed order and finally the cursor timeout
func applyOptions(view storage.View, opts Options) (storage.View, error) {
	var err error
	if value, ok := opts[OptFields]; ok {
		view, err = applyOption(view, OptFields, value)
		if err != nil {
			return nil, err
		}
	}
	for _, name := range optionOrder {
		value, ok := opts[name]
		if !ok {
			continue
		}
		view, err = applyOption(view, name, value)
		if err != nil {
			return nil, err
		}
	}
	if value, ok := opts[OptTimeout]; ok {
		enabled, err := cast.ToBoolE(value)
		if err != nil {
			return nil, errors.Wrap(err, errors.Validation, "invalid %s option", OptTimeout)
		}
		if !enabled {
			view = view.With(view.Spec().WithNoCursorTimeout())
		}
	}
	return view, nil
}

// applyOption returns a new view with a single option applied
func applyOption(view storage.View, name string, value any) (storage.View, error) {
	spec := view.Spec()
	invalid := func(err error) error {
		return errors.Wrap(err, errors.Validation, "invalid %s option", name)
	}
	switch name {
	case OptFields:
		projection, err := toProjection(value)
		if err != nil {
			return nil, invalid(err)
		}
		spec = spec.WithProjection(projection)
	case OptHint:
		spec = spec.WithHint(value)
	case OptLimit:
		limit, err := cast.ToInt64E(value)
		if err != nil {
			return nil, invalid(err)
		}
		spec = spec.WithLimit(limit)
	case OptSkip:
		skip, err := cast.ToInt64E(value)
		if err != nil {
			return nil, invalid(err)
		}
		if skip < 0 {
			return nil, errors.New(errors.Validation, "invalid %s option: negative value %d", name, skip)
		}
		spec = spec.WithSkip(skip)
	case OptSort:
		order, err := toSort(value)
		if err != nil {
			return nil, invalid(err)
		}
		spec = spec.WithSort(order)
	case OptBatchSize:
		size, err := cast.ToInt32E(value)
		if err != nil {
			return nil, invalid(err)
		}
		spec = spec.WithBatchSize(size)
	case OptMaxScan:
		maxScan, err := cast.ToInt64E(value)
		if err != nil {
			return nil, invalid(err)
		}
		spec = spec.WithMaxScan(maxScan)
	case OptMaxTimeMS:
		ms, err := cast.ToInt64E(value)
		if err != nil {
			return nil, invalid(err)
		}
		spec = spec.WithMaxTime(time.Duration(ms) * time.Millisecond)
	case OptSnapshot:
		snapshot, err := cast.ToBoolE(value)
		if err != nil {
			return nil, invalid(err)
		}
		spec = spec.WithSnapshot(snapshot)
	case OptComment:
		comment, err := cast.ToStringE(value)
		if err != nil {
			return nil, invalid(err)
		}
		spec = spec.WithComment(comment)
	case OptRead:
		pref, err := toReadPreference(value)
		if err != nil {
			return nil, invalid(err)
		}
		spec = spec.WithReadPreference(pref)
	case OptCursorType:
		cursorType, err := toCursorType(value)
		if err != nil {
			return nil, invalid(err)
		}
		spec = spec.WithCursorType(cursorType)
	case OptCollation:
		collation, err := toCollation(value)
		if err != nil {
			return nil, invalid(err)
		}
		spec = spec.WithCollation(collation)
	default:
		return nil, errors.New(errors.Validation, "unsupported option: %s", name)
	}
	return view.With(spec), nil
}

func toProjection(value any) (bson.M, error) {
	switch value := value.(type) {
	case nil:
		return nil, nil
	case []string:
		projection := bson.M{}
		for _, f := range value {
			projection[f] = 1
		}
		return projection, nil
	default:
		if doc, ok := storage.AsDocument(value); ok {
			return storage.CloneM(doc), nil
		}
		fields, err := cast.ToStringMapE(value)
		if err != nil {
			return nil, err
		}
		return bson.M(fields), nil
	}
}

// toSort converts a sort value into an ordered document with int directions. Unordered maps
// are sorted by key.
func toSort(value any) (bson.D, error) {
	switch value := value.(type) {
	case nil:
		return nil, nil
	case bson.D:
		return normalizeSort(value), nil
	case bson.E:
		return normalizeSort(bson.D{value}), nil
	default:
		if doc, ok := storage.AsDocument(value); ok {
			return sortedSort(doc), nil
		}
		directions, err := cast.ToStringMapE(value)
		if err != nil {
			return nil, err
		}
		return sortedSort(directions), nil
	}
}

func sortedSort(m map[string]any) bson.D {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(bson.D, 0, len(keys))
	for _, k := range keys {
		out = append(out, bson.E{Key: k, Value: storage.SortDirection(m[k])})
	}
	return out
}

func normalizeSort(sort bson.D) bson.D {
	if sort == nil {
		return nil
	}
	out := make(bson.D, 0, len(sort))
	for _, e := range sort {
		out = append(out, bson.E{Key: e.Key, Value: storage.SortDirection(e.Value)})
	}
	return out
}

var readModes = []storage.ReadMode{
	storage.ReadPrimary,
	storage.ReadPrimaryPreferred,
	storage.ReadSecondary,
	storage.ReadSecondaryPreferred,
	storage.ReadNearest,
}

func toReadPreference(value any) (storage.ReadPreference, error) {
	var pref storage.ReadPreference
	switch value := value.(type) {
	case storage.ReadPreference:
		pref = value
	case *storage.ReadPreference:
		if value != nil {
			pref = *value
		}
	case storage.ReadMode:
		pref.Mode = value
	case string:
		pref.Mode = storage.ReadMode(value)
	default:
		if err := util.Decode(value, &pref); err != nil {
			return pref, err
		}
	}
	if pref.Mode == "" {
		pref.Mode = storage.ReadPrimary
	}
	for _, mode := range readModes {
		if pref.Mode == mode {
			return pref, nil
		}
	}
	return pref, errors.New(errors.Validation, "unknown read mode: %s", pref.Mode)
}

func toCursorType(value any) (storage.CursorType, error) {
	var cursorType storage.CursorType
	switch value := value.(type) {
	case storage.CursorType:
		cursorType = value
	default:
		name, err := cast.ToStringE(value)
		if err != nil {
			return "", err
		}
		cursorType = storage.CursorType(name)
	}
	switch cursorType {
	case storage.NonTailable, storage.Tailable, storage.TailableAwait:
		return cursorType, nil
	default:
		return "", errors.New(errors.Validation, "unknown cursor type: %s", cursorType)
	}
}

func toCollation(value any) (storage.Collation, error) {
	var collation storage.Collation
	switch value := value.(type) {
	case storage.Collation:
		collation = value
	case *storage.Collation:
		if value != nil {
			collation = *value
		}
	default:
		if err := util.Decode(value, &collation); err != nil {
			return collation, err
		}
	}
	if collation.Locale == "" {
		return collation, errors.New(errors.Validation, "collation requires a locale")
	}
	return collation, nil
}
