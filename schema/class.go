package schema

import (
	"sort"
	"strings"

	"github.com/huandu/xstrings"
)

const (
	// IDField is the storage name of the identity field
	IDField = "_id"
	// TypeField is the storage name of the discriminator of hereditary classes
	TypeField = "_type"

	translationsSuffix = "_translations"
)

// Class is the schema of a document class: its fields and its associations to other classes
type Class struct {
	name       string
	collection string
	parentName string
	parent     *Class
	children   []*Class

	fields              map[string]*Field
	aliasedFields       map[string]string
	associations        map[string]*Association
	aliasedAssociations map[string]string
}

// ClassOpt configures a class
type ClassOpt func(c *Class)

// WithCollection sets the collection the class is stored in
func WithCollection(collection string) ClassOpt {
	return func(c *Class) {
		c.collection = collection
	}
}

// WithField declares a field on the class
func WithField(field Field) ClassOpt {
	return func(c *Class) {
		c.addField(field)
	}
}

// WithAssociation declares an association on the class
func WithAssociation(association Association) ClassOpt {
	return func(c *Class) {
		c.addAssociation(association)
	}
}

// WithParent makes the class a subclass of the named class
func WithParent(parent string) ClassOpt {
	return func(c *Class) {
		c.parentName = parent
	}
}

// NewClass creates a class. Every class declares an `_id` field aliased as `id`.
func NewClass(name string, opts ...ClassOpt) *Class {
	c := &Class{
		name:                name,
		fields:              map[string]*Field{},
		aliasedFields:       map[string]string{},
		associations:        map[string]*Association{},
		aliasedAssociations: map[string]string{},
	}
	c.addField(Field{Name: IDField, Alias: "id", Kind: ObjectID})
	for _, o := range opts {
		o(c)
	}
	if c.collection == "" {
		c.collection = xstrings.ToSnakeCase(name) + "s"
	}
	return c
}

func (c *Class) addField(field Field) {
	f := field
	if f.Kind == "" {
		f.Kind = Unknown
	}
	c.fields[f.Name] = &f
	if f.Alias != "" {
		c.aliasedFields[f.Alias] = f.Name
	}
}

func (c *Class) addAssociation(association Association) {
	a := association
	c.associations[a.Name] = &a
	if a.Embedded() && a.StoreAs != "" {
		c.aliasedFields[a.Name] = a.StoreAs
		c.aliasedAssociations[a.StoreAs] = a.Name
	}
	if a.Kind == BelongsTo {
		c.aliasedAssociations[a.Key()] = a.Name
	}
}

// Name returns the class name
func (c *Class) Name() string {
	return c.name
}

// Collection returns the name of the collection the class is stored in. Subclasses share the
// collection of their root class.
func (c *Class) Collection() string {
	if c.parent != nil {
		return c.parent.Collection()
	}
	return c.collection
}

// Parent returns the parent class, if any
func (c *Class) Parent() *Class {
	return c.parent
}

// Hereditary returns true if the class is a subclass. Queries against a subclass are scoped to
// the class and its descendants through the type field.
func (c *Class) Hereditary() bool {
	return c.parent != nil
}

// Descendants returns the class and all of its subclasses
func (c *Class) Descendants() []*Class {
	out := []*Class{c}
	for _, child := range c.children {
		out = append(out, child.Descendants()...)
	}
	return out
}

// Field returns the declared field stored under the name, searching parent classes
func (c *Class) Field(name string) (*Field, bool) {
	for class := c; class != nil; class = class.parent {
		if f, ok := class.fields[name]; ok {
			return f, true
		}
	}
	return nil, false
}

// Fields returns the declared fields sorted by name, including inherited ones
func (c *Class) Fields() []*Field {
	seen := map[string]*Field{}
	for class := c; class != nil; class = class.parent {
		for name, f := range class.fields {
			if _, ok := seen[name]; !ok {
				seen[name] = f
			}
		}
	}
	out := make([]*Field, 0, len(seen))
	for _, f := range seen {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Association returns the association with the name, searching parent classes
func (c *Class) Association(name string) (*Association, bool) {
	for class := c; class != nil; class = class.parent {
		if a, ok := class.associations[name]; ok {
			return a, true
		}
	}
	return nil, false
}

// Associations returns the declared associations sorted by name, including inherited ones
func (c *Class) Associations() []*Association {
	seen := map[string]*Association{}
	for class := c; class != nil; class = class.parent {
		for name, a := range class.associations {
			if _, ok := seen[name]; !ok {
				seen[name] = a
			}
		}
	}
	out := make([]*Association, 0, len(seen))
	for _, a := range seen {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c *Class) aliasedField(name string) (string, bool) {
	for class := c; class != nil; class = class.parent {
		if stored, ok := class.aliasedFields[name]; ok {
			return stored, true
		}
	}
	return "", false
}

func (c *Class) aliasedAssociation(key string) (string, bool) {
	for class := c; class != nil; class = class.parent {
		if name, ok := class.aliasedAssociations[key]; ok {
			return name, true
		}
	}
	return "", false
}

// associationByKey finds an association by its name or by its storage key
func (c *Class) associationByKey(key string) (*Association, bool) {
	if a, ok := c.Association(key); ok {
		return a, true
	}
	if name, ok := c.aliasedAssociation(key); ok {
		return c.Association(name)
	}
	return nil, false
}

// DatabaseFieldName converts an application-facing dotted field name into the names its
// segments are stored under. Aliases are resolved per class while walking associations; the
// alias of a belongs_to association is kept when more segments follow it.
func (c *Class) DatabaseFieldName(name string) string {
	if name == "" {
		return ""
	}
	segment, remaining, hasRemaining := strings.Cut(name, ".")
	association, isAssociation := c.Association(segment)
	if !hasRemaining || !isAssociation || association.Kind != BelongsTo {
		if stored, ok := c.aliasedField(segment); ok {
			segment = stored
		}
	}
	if !hasRemaining {
		return segment
	}
	if a, ok := c.associationByKey(segment); ok && a.Class() != nil {
		return segment + "." + a.Class().DatabaseFieldName(remaining)
	}
	return segment + "." + remaining
}

// CleanseLocalizedFieldNames converts a field name into its storage name with any trailing
// `_translations` suffix of an undeclared segment removed. Segments below a declared field are
// kept verbatim.
func (c *Class) CleanseLocalizedFieldNames(name string) string {
	parts := strings.Split(c.DatabaseFieldName(name), ".")
	var out []string
	class := c
	for i, part := range parts {
		if class == nil {
			out = append(out, parts[i:]...)
			break
		}
		_, isField := class.Field(part)
		association, isAssociation := class.associationByKey(part)
		key := part
		if !isField && !isAssociation {
			key = strings.TrimSuffix(part, translationsSuffix)
		}
		out = append(out, key)
		if isField {
			if i < len(parts)-1 {
				out = append(out, strings.Join(parts[i+1:], "."))
			}
			break
		}
		if isAssociation {
			class = association.Class()
		} else {
			class = nil
		}
	}
	return strings.Join(out, ".")
}

// TraverseFunc is called once per segment of a traversed path with the declared field or the
// association the segment resolved to. Both are nil for undeclared segments.
type TraverseFunc func(segment string, field *Field, association *Association)

// TraverseAssociationTree walks a dotted storage path through the class graph. A segment is
// resolved against the class reached by the previous segment: the root class for the first
// segment, the associated class after an association and nothing after a field or an undeclared
// segment. It returns the field of the last segment, or nil if the last segment is not a
// declared field.
func (c *Class) TraverseAssociationTree(path string, fn TraverseFunc) *Field {
	var (
		class = c
		field *Field
	)
	for _, segment := range strings.Split(path, ".") {
		field = nil
		var next *Class
		switch {
		case class == nil:
			if fn != nil {
				fn(segment, nil, nil)
			}
		default:
			if f, ok := class.Field(segment); ok {
				field = f
				if fn != nil {
					fn(segment, f, nil)
				}
			} else if a, ok := class.associationByKey(segment); ok {
				next = a.Class()
				if fn != nil {
					fn(segment, nil, a)
				}
			} else if fn != nil {
				fn(segment, nil, nil)
			}
		}
		class = next
	}
	return field
}

// TranslationsBase returns the base field name of a `<base>_translations` segment
func TranslationsBase(segment string) (string, bool) {
	if strings.HasSuffix(segment, translationsSuffix) && len(segment) > len(translationsSuffix) {
		return strings.TrimSuffix(segment, translationsSuffix), true
	}
	return "", false
}
