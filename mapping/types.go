// Package mapping defines the descriptor model for mapped types: per-field
// metadata, per-type descriptors, and the registry that validates and freezes
// them before any document is read or written. Descriptors are declared
// explicitly by the application (typically generated alongside the domain
// structs); the package performs no runtime type introspection.
package mapping

const (
	// IDKey is the reserved storage key for the identity field. A field
	// carrying the id annotation always maps to this key, overriding any
	// custom name supplied for it.
	IDKey = "_id"

	// DiscriminatorKey is the storage key used to record the concrete type
	// of a document when the declared type participates in a hierarchy.
	DiscriminatorKey = "_t"

	// IgnoredName is the sentinel override value meaning "no override".
	// An annotation whose Name equals IgnoredName (or is empty) falls
	// through to the next annotation in the precedence order.
	IgnoredName = "."
)

// Kind classifies how a field holds its value(s).
type Kind int

const (
	// KindSingle is a plain single-valued field
	KindSingle Kind = iota
	// KindArray is a fixed-length sequence
	KindArray
	// KindSlice is an ordered variable-length sequence
	KindSlice
	// KindSet is an unordered collection of distinct values
	KindSet
	// KindMap is a keyed mapping with string keys
	KindMap
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindArray:
		return "array"
	case KindSlice:
		return "slice"
	case KindSet:
		return "set"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// IsContainer returns true for every kind except KindSingle
func (k Kind) IsContainer() bool {
	return k != KindSingle
}

// AnnotationKind identifies a mapping annotation attached to a field.
type AnnotationKind int

const (
	// AnnID marks the identity field
	AnnID AnnotationKind = iota
	// AnnProperty customizes the stored name of a plain field
	AnnProperty
	// AnnReference marks a field holding references to other documents
	AnnReference
	// AnnEmbedded marks a field whose value is stored as a nested document
	AnnEmbedded
	// AnnSerialized marks a field stored as an opaque serialized blob
	AnnSerialized
	// AnnVersion marks an optimistic-lock version counter
	AnnVersion
	// AnnTransient excludes a field from storage entirely
	AnnTransient
)

// String returns the string representation of the annotation kind
func (a AnnotationKind) String() string {
	switch a {
	case AnnID:
		return "id"
	case AnnProperty:
		return "property"
	case AnnReference:
		return "reference"
	case AnnEmbedded:
		return "embedded"
	case AnnSerialized:
		return "serialized"
	case AnnVersion:
		return "version"
	case AnnTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Annotation is one mapping annotation on a field. Name optionally overrides
// the stored name; IgnoredName (or "") leaves the override unset.
type Annotation struct {
	Kind AnnotationKind
	Name string
}

// overrideName returns the override carried by the annotation, or "" if unset
func (a Annotation) overrideName() string {
	if a.Name == "" || a.Name == IgnoredName {
		return ""
	}
	return a.Name
}

// Getter reads a field value from an entity. Container fields must be
// surfaced in canonical form: sequences and sets as []any, keyed mappings as
// map[string]any. Reference fields surface the refs wrapper itself.
type Getter func(entity any) any

// Setter writes a field value onto an entity, converting from the same
// canonical forms the Getter produces.
type Setter func(entity any, value any)
