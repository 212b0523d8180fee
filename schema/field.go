package schema

// Field is a declared field of a class
type Field struct {
	// Name is the name the field is stored under
	Name string `json:"name" validate:"required"`
	// Alias is the application-facing name of the field (optional)
	Alias string `json:"as,omitempty"`
	// Kind is the declared type of the field
	Kind Kind `json:"type" validate:"required"`
	// Elem is the element kind of array fields and the value kind of localized fields
	Elem Kind `json:"elem,omitempty"`
	// Default is the value of the field when it is missing from a document
	Default any `json:"default,omitempty"`
}

// Localized returns true if the field stores a locale keyed map of values
func (f *Field) Localized() bool {
	return f != nil && f.Kind == Localized
}

// Demongoize converts a raw stored value into the field's declared type
func (f *Field) Demongoize(raw any, locale Locale) any {
	if raw == nil && f.Default != nil {
		raw = f.Default
	}
	return f.Kind.demongoize(raw, f.Elem, locale)
}

// AssociationKind is the kind of relationship between two classes
type AssociationKind string

const (
	EmbedsOne  AssociationKind = "embeds_one"
	EmbedsMany AssociationKind = "embeds_many"
	BelongsTo  AssociationKind = "belongs_to"
	HasOne     AssociationKind = "has_one"
	HasMany    AssociationKind = "has_many"
)

// Association is a relationship from one class to another
type Association struct {
	// Name is the name of the association
	Name string `json:"name" validate:"required"`
	// Kind is the kind of the association
	Kind AssociationKind `json:"kind" validate:"required,oneof=embeds_one embeds_many belongs_to has_one has_many"`
	// ClassName is the name of the associated class (empty for polymorphic associations)
	ClassName string `json:"class,omitempty"`
	// StoreAs is the key embedded documents are stored under (defaults to Name)
	StoreAs string `json:"store_as,omitempty"`
	// ForeignKey is the field holding the reference (defaults to <name>_id on the owner for
	// belongs_to and <owner>_id on the target otherwise)
	ForeignKey string `json:"foreign_key,omitempty"`
	// Polymorphic associations may target any class
	Polymorphic bool `json:"polymorphic,omitempty"`

	class *Class
}

// Class returns the associated class or nil if it is unknown
func (a *Association) Class() *Class {
	if a == nil {
		return nil
	}
	return a.class
}

// Embedded returns true if the associated documents are stored inside the owner
func (a *Association) Embedded() bool {
	return a.Kind == EmbedsOne || a.Kind == EmbedsMany
}

// Many returns true if the association holds a list of documents
func (a *Association) Many() bool {
	return a.Kind == EmbedsMany || a.Kind == HasMany
}

// Key returns the storage key of embedded associations and the foreign key of belongs_to
// associations
func (a *Association) Key() string {
	switch {
	case a.Embedded() && a.StoreAs != "":
		return a.StoreAs
	case a.Kind == BelongsTo:
		if a.ForeignKey != "" {
			return a.ForeignKey
		}
		return a.Name + "_id"
	default:
		return a.Name
	}
}
