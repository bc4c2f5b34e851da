package mapping

import "strings"

// TypeSpec declares a mapped type. It is consumed by Registry.Register,
// which validates it and freezes it into a Type.
type TypeSpec struct {
	// Name is the unique logical name of the mapped type
	Name string
	// Collection is the storage collection; defaults to the snake_case
	// plural of Name when empty
	Collection string
	// New constructs a zero instance of the mapped type
	New func() any
	// Fields lists the mapped properties in declaration order
	Fields []FieldSpec

	// SubtypeOf names the parent type when this type participates in a
	// hierarchy; documents are written with a discriminator so decode can
	// recover the concrete type.
	SubtypeOf string

	// Embedded marks the type as embeddable. EmbeddedName mirrors the
	// name parameter of a type-level embedding annotation; declaring one
	// is a mapping error (a type-level annotation may customize behavior,
	// never claim a storage field name) and is rejected at registration.
	Embedded     bool
	EmbeddedName string
}

// Type is the frozen descriptor for a mapped type: an ordered collection of
// field descriptors plus type-level metadata. Types are immutable after
// registration and safe for concurrent use.
type Type struct {
	name       string
	collection string
	newFn      func() any
	fields     []*Field
	byStored   map[string]*Field
	idField    *Field
	subtypeOf  string
	subtypes   []string
	embedded   bool
}

// Name returns the logical name of the mapped type
func (t *Type) Name() string { return t.name }

// Collection returns the storage collection for the type
func (t *Type) Collection() string { return t.collection }

// New constructs a zero instance of the mapped type
func (t *Type) New() any { return t.newFn() }

// Fields returns the field descriptors in declaration order. The returned
// slice must not be modified.
func (t *Type) Fields() []*Field { return t.fields }

// FieldByStoredName returns the field mapped to the given storage key
func (t *Type) FieldByStoredName(name string) (*Field, bool) {
	f, ok := t.byStored[name]
	return f, ok
}

// IDField returns the identity field, or nil for types without one
// (embeddable value types need no identity).
func (t *Type) IDField() *Field { return t.idField }

// ID reads the identity value from an instance of the type
func (t *Type) ID(entity any) any {
	if t.idField == nil {
		return nil
	}
	return t.idField.Value(entity)
}

// SubtypeOf returns the parent type name, or "" for root types
func (t *Type) SubtypeOf() string { return t.subtypeOf }

// Subtypes returns the names of registered subtypes
func (t *Type) Subtypes() []string { return t.subtypes }

// Discriminated reports whether documents of this type carry a
// discriminator key.
func (t *Type) Discriminated() bool {
	return t.subtypeOf != "" || len(t.subtypes) > 0
}

// IsEmbedded reports whether the type was declared embeddable
func (t *Type) IsEmbedded() bool { return t.embedded }

func (t *Type) String() string {
	return t.name + " -> " + t.collection
}

// defaultCollection derives a collection name from a type name
// (snake_case plural, e.g. "BlogPost" -> "blog_posts").
func defaultCollection(name string) string {
	return pluralize(toSnakeCase(name))
}

// toSnakeCase converts a string to snake_case
func toSnakeCase(s string) string {
	var result []rune
	runes := []rune(s)

	for i, r := range runes {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := runes[i-1]
			if prev >= 'a' && prev <= 'z' {
				result = append(result, '_')
			} else if i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z' {
				result = append(result, '_')
			}
		}
		if r >= 'A' && r <= 'Z' {
			result = append(result, r+('a'-'A'))
		} else {
			result = append(result, r)
		}
	}
	return string(result)
}

// pluralize adds simple pluralization
func pluralize(s string) string {
	if strings.HasSuffix(s, "s") ||
		strings.HasSuffix(s, "x") ||
		strings.HasSuffix(s, "z") {
		return s + "es"
	}
	if strings.HasSuffix(s, "y") {
		return s[:len(s)-1] + "ies"
	}
	return s + "s"
}
