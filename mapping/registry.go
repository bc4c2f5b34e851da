package mapping

import (
	"fmt"
	"sync"
)

// Registry manages the mapped-type descriptors of one datastore.
type Registry struct {
	types        map[string]*Type
	byCollection map[string]*Type
	mu           sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		types:        make(map[string]*Type),
		byCollection: make(map[string]*Type),
	}
}

// Register validates a TypeSpec, freezes it into a Type, and indexes it.
// Structural validation happens here so that malformed declarations fail at
// startup; cross-type checks (reference targets and the like) happen in
// ValidateAll to allow forward references between types.
func (r *Registry) Register(spec TypeSpec) (*Type, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if spec.Name == "" {
		return nil, declErr("", "", "mapped type must have a name")
	}
	if _, exists := r.types[spec.Name]; exists {
		return nil, declErr(spec.Name, "", "type is already registered")
	}

	t, err := buildType(spec)
	if err != nil {
		return nil, err
	}

	if other, taken := r.byCollection[t.collection]; taken && !sameHierarchy(t, other) {
		return nil, declErr(spec.Name, "",
			"collection %q is already mapped by type %s", t.collection, other.name)
	}

	r.types[t.name] = t
	// the root of a hierarchy owns the shared collection, whichever
	// registration order the caller chose
	if other, taken := r.byCollection[t.collection]; !taken || other.subtypeOf == t.name {
		r.byCollection[t.collection] = t
	}

	// resolve subtype links in both directions here, under the write lock.
	// Registration is the only phase that mutates a Type; once the registry
	// is populated, ValidateAll and the Type accessors are read-only.
	if t.subtypeOf != "" {
		if parent, ok := r.types[t.subtypeOf]; ok {
			parent.subtypes = append(parent.subtypes, t.name)
		}
	}
	for _, other := range r.types {
		if other != t && other.subtypeOf == t.name {
			t.subtypes = append(t.subtypes, other.name)
		}
	}
	return t, nil
}

// Get retrieves a mapped type by name
func (r *Registry) Get(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[name]
	return t, ok
}

// ByCollection retrieves the mapped type that owns a storage collection
func (r *Registry) ByCollection(collection string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byCollection[collection]
	return t, ok
}

// All returns a copy of all registered types
func (r *Registry) All() map[string]*Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*Type, len(r.types))
	for k, v := range r.types {
		result[k] = v
	}
	return result
}

// Count returns the number of registered types
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.types)
}

// ValidateAll performs cross-type validation: every reference or embedded
// field must point at a registered type, and subtype parents must resolve.
// It is read-only and safe to call concurrently; call it after all types
// are registered and before the first query.
func (r *Registry) ValidateAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.types {
		if t.subtypeOf != "" {
			if _, ok := r.types[t.subtypeOf]; !ok {
				return declErr(t.name, "", "parent type %s is not registered", t.subtypeOf)
			}
		}

		for _, f := range t.fields {
			if f.IsTransient() {
				continue
			}
			if f.IsReference() {
				target, ok := r.types[f.ConcreteType()]
				if !ok {
					return declErr(t.name, f.Name(),
						"reference target type %q is not registered", f.ConcreteType())
				}
				if target.idField == nil {
					return declErr(t.name, f.Name(),
						"reference target type %s has no identity field", target.name)
				}
			} else if f.Has(AnnEmbedded) {
				if _, ok := r.types[f.ConcreteType()]; !ok {
					return declErr(t.name, f.Name(),
						"embedded type %q is not registered", f.ConcreteType())
				}
			}
		}
	}
	return nil
}

// sameHierarchy reports whether two types may share a storage collection:
// parent and subtype in either registration order, or two subtypes of the
// same declared parent.
func sameHierarchy(a, b *Type) bool {
	if a.subtypeOf == b.name || b.subtypeOf == a.name {
		return true
	}
	return a.subtypeOf != "" && a.subtypeOf == b.subtypeOf
}

// buildType freezes a TypeSpec into a Type, failing fast on malformed
// declarations. All descriptors for the type are built atomically; nothing
// is published on error.
func buildType(spec TypeSpec) (*Type, error) {
	if spec.New == nil {
		return nil, declErr(spec.Name, "", "mapped type must declare a New constructor")
	}
	if spec.Embedded && spec.EmbeddedName != "" && spec.EmbeddedName != IgnoredName {
		return nil, &DeclarationError{
			Type:    spec.Name,
			Message: fmt.Sprintf("type-level embedded annotation must not declare a storage name (got %q)", spec.EmbeddedName),
			Hint:    "name overrides belong on fields; a type-level annotation only customizes behavior",
		}
	}

	collection := spec.Collection
	if collection == "" {
		collection = defaultCollection(spec.Name)
	}

	t := &Type{
		name:       spec.Name,
		collection: collection,
		newFn:      spec.New,
		fields:     make([]*Field, 0, len(spec.Fields)),
		byStored:   make(map[string]*Field, len(spec.Fields)),
		subtypeOf:  spec.SubtypeOf,
		embedded:   spec.Embedded,
	}

	for _, fs := range spec.Fields {
		if fs.Name == "" {
			return nil, declErr(spec.Name, "", "field must have a name")
		}
		if fs.Get == nil || fs.Set == nil {
			return nil, declErr(spec.Name, fs.Name, "field must declare Get and Set accessors")
		}
		f := newField(fs)

		if f.Kind() == KindMap && !f.IsSerialized() && fs.Key == "" {
			return nil, declErr(spec.Name, fs.Name, "keyed-mapping field must declare a key type")
		}
		if f.IsReference() && f.Elem() == "" && f.ConcreteType() == "" {
			return nil, declErr(spec.Name, fs.Name, "reference field must declare a target type")
		}
		if f.IsReference() && f.Kind() == KindArray {
			return nil, declErr(spec.Name, fs.Name, "reference fields use slices, sets or maps, not arrays")
		}

		if f.IsTransient() {
			t.fields = append(t.fields, f)
			continue
		}

		if f.IsID() {
			if t.idField != nil {
				return nil, declErr(spec.Name, fs.Name,
					"identity is already declared by field %s", t.idField.Name())
			}
			t.idField = f
		}
		if other, dup := t.byStored[f.StoredName()]; dup {
			return nil, &DeclarationError{
				Type:    spec.Name,
				Field:   fs.Name,
				Message: fmt.Sprintf("stored name %q collides with field %s", f.StoredName(), other.Name()),
			}
		}

		t.fields = append(t.fields, f)
		t.byStored[f.StoredName()] = f
	}

	return t, nil
}
