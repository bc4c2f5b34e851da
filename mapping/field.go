package mapping

// FieldSpec declares one property of a mapped type. It is the raw input to
// Type construction; the validated, frozen form is Field.
type FieldSpec struct {
	// Name is the property name as declared on the struct
	Name string
	// Kind classifies the field; KindSingle if unset
	Kind Kind
	// Elem names the element (or value) type for container, reference and
	// embedded fields. For scalar containers this is informational; for
	// reference and embedded fields it must name a registered type.
	Elem string
	// Key names the key type for KindMap fields (keys are stored as strings)
	Key string
	// Concrete optionally names a substitute implementation type used when
	// materializing the field
	Concrete string
	// Annotations carried by the field, in no particular order
	Annotations []Annotation

	Get Getter
	Set Setter
}

// Field is the frozen descriptor for one property of a mapped type.
type Field struct {
	name        string
	kind        Kind
	elem        string
	key         string
	concrete    string
	storedName  string
	annotations map[AnnotationKind]Annotation

	get Getter
	set Setter
}

// newField resolves a FieldSpec into a frozen Field. The stored name is
// decided here, once, by annotation precedence.
func newField(spec FieldSpec) *Field {
	anns := make(map[AnnotationKind]Annotation, len(spec.Annotations))
	for _, a := range spec.Annotations {
		anns[a.Kind] = a
	}

	f := &Field{
		name:        spec.Name,
		kind:        spec.Kind,
		elem:        spec.Elem,
		key:         spec.Key,
		concrete:    spec.Concrete,
		annotations: anns,
		get:         spec.Get,
		set:         spec.Set,
	}
	f.storedName = f.resolveStoredName()
	return f
}

// resolveStoredName applies annotation precedence: the id annotation always
// wins and pins the reserved key; otherwise the first annotation present in
// precedence order decides — its override supplies the name, or, when the
// override is the unset sentinel, the raw property name is used. Later
// annotations are never consulted.
func (f *Field) resolveStoredName() string {
	if f.Has(AnnID) {
		return IDKey
	}
	for _, kind := range []AnnotationKind{AnnProperty, AnnReference, AnnEmbedded, AnnSerialized, AnnVersion} {
		if a, ok := f.annotations[kind]; ok {
			if name := a.overrideName(); name != "" {
				return name
			}
			break
		}
	}
	return f.name
}

// Name returns the property name as declared on the struct
func (f *Field) Name() string { return f.name }

// StoredName returns the effective storage key for the field
func (f *Field) StoredName() string { return f.storedName }

// Kind returns the field's container classification
func (f *Field) Kind() Kind { return f.kind }

// Elem returns the element type name for container/reference/embedded fields
func (f *Field) Elem() string { return f.elem }

// Key returns the key type name for keyed-mapping fields
func (f *Field) Key() string { return f.key }

// ConcreteType returns the substitute implementation type name, falling back
// to the element type when no override was declared.
func (f *Field) ConcreteType() string {
	if f.concrete != "" {
		return f.concrete
	}
	return f.elem
}

// Has reports whether the given annotation is present on the field
func (f *Field) Has(kind AnnotationKind) bool {
	_, ok := f.annotations[kind]
	return ok
}

// IsID reports whether the field is the identity field
func (f *Field) IsID() bool { return f.Has(AnnID) }

// IsReference reports whether the field holds deferred references to
// documents in another collection rather than embedded values.
func (f *Field) IsReference() bool { return f.Has(AnnReference) }

// IsTransient reports whether the field is excluded from storage
func (f *Field) IsTransient() bool { return f.Has(AnnTransient) }

// IsSerialized reports whether the field is stored as a serialized blob
func (f *Field) IsSerialized() bool { return f.Has(AnnSerialized) }

// IsVersion reports whether the field is a version counter
func (f *Field) IsVersion() bool { return f.Has(AnnVersion) }

// Value reads the field from an entity
func (f *Field) Value(entity any) any {
	return f.get(entity)
}

// SetValue writes the field onto an entity
func (f *Field) SetValue(entity, value any) {
	f.set(entity, value)
}

func (f *Field) String() string {
	return f.storedName
}
