package mapping

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	typ, err := r.Register(userSpec())
	require.NoError(t, err)

	got, ok := r.Get("User")
	require.True(t, ok)
	assert.Same(t, typ, got)

	byColl, ok := r.ByCollection("users")
	require.True(t, ok)
	assert.Same(t, typ, byColl)

	assert.Equal(t, 1, r.Count())
	assert.Len(t, r.All(), 1)

	_, ok = r.Get("Ghost")
	assert.False(t, ok)
}

func TestDefaultCollectionName(t *testing.T) {
	r := NewRegistry()
	typ, err := r.Register(TypeSpec{
		Name: "BlogPost",
		New:  func() any { return &struct{}{} },
	})
	require.NoError(t, err)
	assert.Equal(t, "blog_posts", typ.Collection())
}

func TestRegisterDuplicateType(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(userSpec())
	require.NoError(t, err)

	_, err = r.Register(userSpec())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegisterFatalDeclarations(t *testing.T) {
	get := func(e any) any { return nil }
	set := func(e, v any) {}

	tests := []struct {
		name    string
		spec    TypeSpec
		message string
	}{
		{
			name: "duplicate stored names",
			spec: TypeSpec{
				Name: "Bad",
				New:  func() any { return &struct{}{} },
				Fields: []FieldSpec{
					{Name: "A", Annotations: []Annotation{{Kind: AnnProperty, Name: "x"}}, Get: get, Set: set},
					{Name: "B", Annotations: []Annotation{{Kind: AnnProperty, Name: "x"}}, Get: get, Set: set},
				},
			},
			message: "collides",
		},
		{
			name: "two identity fields",
			spec: TypeSpec{
				Name: "Bad",
				New:  func() any { return &struct{}{} },
				Fields: []FieldSpec{
					{Name: "A", Annotations: []Annotation{{Kind: AnnID}}, Get: get, Set: set},
					{Name: "B", Annotations: []Annotation{{Kind: AnnID}}, Get: get, Set: set},
				},
			},
			message: "identity is already declared",
		},
		{
			name: "type-level embedded annotation with a name",
			spec: TypeSpec{
				Name:         "Bad",
				New:          func() any { return &struct{}{} },
				Embedded:     true,
				EmbeddedName: "somewhere",
			},
			message: "must not declare a storage name",
		},
		{
			name: "missing accessors",
			spec: TypeSpec{
				Name:   "Bad",
				New:    func() any { return &struct{}{} },
				Fields: []FieldSpec{{Name: "A"}},
			},
			message: "accessors",
		},
		{
			name: "missing constructor",
			spec: TypeSpec{
				Name: "Bad",
			},
			message: "constructor",
		},
		{
			name: "keyed mapping without key type",
			spec: TypeSpec{
				Name: "Bad",
				New:  func() any { return &struct{}{} },
				Fields: []FieldSpec{
					{Name: "A", Kind: KindMap, Elem: "string", Get: get, Set: set},
				},
			},
			message: "key type",
		},
		{
			name: "reference array",
			spec: TypeSpec{
				Name: "Bad",
				New:  func() any { return &struct{}{} },
				Fields: []FieldSpec{
					{Name: "A", Kind: KindArray, Elem: "User", Annotations: []Annotation{{Kind: AnnReference}}, Get: get, Set: set},
				},
			},
			message: "not arrays",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			_, err := r.Register(tt.spec)
			require.Error(t, err)

			var declErr *DeclarationError
			require.ErrorAs(t, err, &declErr)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestTypeLevelEmbeddedSentinelAllowed(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(TypeSpec{
		Name:         "Address",
		New:          func() any { return &struct{}{} },
		Embedded:     true,
		EmbeddedName: IgnoredName,
	})
	assert.NoError(t, err)
}

func TestValidateAllReferenceTargets(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(userSpec())
	require.NoError(t, err)

	// Friends references User, which is registered
	require.NoError(t, r.ValidateAll())

	get := func(e any) any { return nil }
	set := func(e, v any) {}
	_, err = r.Register(TypeSpec{
		Name: "Orphan",
		New:  func() any { return &struct{}{} },
		Fields: []FieldSpec{
			{Name: "Target", Elem: "Nowhere", Annotations: []Annotation{{Kind: AnnReference}}, Get: get, Set: set},
		},
	})
	require.NoError(t, err)

	err = r.ValidateAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestValidateAllReferenceTargetNeedsIdentity(t *testing.T) {
	r := NewRegistry()
	get := func(e any) any { return nil }
	set := func(e, v any) {}

	_, err := r.Register(TypeSpec{
		Name: "Address",
		New:  func() any { return &struct{}{} },
	})
	require.NoError(t, err)

	_, err = r.Register(TypeSpec{
		Name: "Person",
		New:  func() any { return &struct{}{} },
		Fields: []FieldSpec{
			{Name: "Home", Elem: "Address", Annotations: []Annotation{{Kind: AnnReference}}, Get: get, Set: set},
		},
	})
	require.NoError(t, err)

	err = r.ValidateAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no identity field")
}

func TestSubtypeLinks(t *testing.T) {
	r := NewRegistry()
	get := func(e any) any { return nil }
	set := func(e, v any) {}

	idField := FieldSpec{Name: "ID", Annotations: []Annotation{{Kind: AnnID}}, Get: get, Set: set}

	parent, err := r.Register(TypeSpec{
		Name:   "Shape",
		New:    func() any { return &struct{}{} },
		Fields: []FieldSpec{idField},
	})
	require.NoError(t, err)

	child, err := r.Register(TypeSpec{
		Name:       "Circle",
		Collection: "shapes",
		SubtypeOf:  "Shape",
		New:        func() any { return &struct{}{} },
		Fields:     []FieldSpec{idField},
	})
	require.NoError(t, err)
	require.NoError(t, r.ValidateAll())

	assert.True(t, parent.Discriminated())
	assert.True(t, child.Discriminated())
	assert.Contains(t, parent.Subtypes(), "Circle")
	assert.Equal(t, "Shape", child.SubtypeOf())

	// both names resolve, the collection stays owned by the parent
	byColl, ok := r.ByCollection("shapes")
	require.True(t, ok)
	assert.Same(t, parent, byColl)
}

func TestSubtypeLinkedWhenParentRegisteredLater(t *testing.T) {
	r := NewRegistry()
	get := func(e any) any { return nil }
	set := func(e, v any) {}

	idField := FieldSpec{Name: "ID", Annotations: []Annotation{{Kind: AnnID}}, Get: get, Set: set}

	child, err := r.Register(TypeSpec{
		Name:       "Circle",
		Collection: "shapes",
		SubtypeOf:  "Shape",
		New:        func() any { return &struct{}{} },
		Fields:     []FieldSpec{idField},
	})
	require.NoError(t, err)

	parent, err := r.Register(TypeSpec{
		Name:       "Shape",
		Collection: "shapes",
		New:        func() any { return &struct{}{} },
		Fields:     []FieldSpec{idField},
	})
	require.NoError(t, err)

	// the back-link resolves at registration, before any validation runs
	assert.Contains(t, parent.Subtypes(), "Circle")
	assert.True(t, parent.Discriminated())
	assert.True(t, child.Discriminated())
	require.NoError(t, r.ValidateAll())
	assert.Equal(t, []string{"Circle"}, parent.Subtypes())

	// the collection is re-pointed at the hierarchy root
	byColl, ok := r.ByCollection("shapes")
	require.True(t, ok)
	assert.Same(t, parent, byColl)
}

func TestValidateAllConcurrent(t *testing.T) {
	r := NewRegistry()
	get := func(e any) any { return nil }
	set := func(e, v any) {}

	idField := FieldSpec{Name: "ID", Annotations: []Annotation{{Kind: AnnID}}, Get: get, Set: set}

	_, err := r.Register(TypeSpec{
		Name:       "Circle",
		Collection: "shapes",
		SubtypeOf:  "Shape",
		New:        func() any { return &struct{}{} },
		Fields:     []FieldSpec{idField},
	})
	require.NoError(t, err)

	parent, err := r.Register(TypeSpec{
		Name:       "Shape",
		Collection: "shapes",
		New:        func() any { return &struct{}{} },
		Fields:     []FieldSpec{idField},
	})
	require.NoError(t, err)

	// validation is read-only: concurrent callers may race freely with each
	// other and with Type readers
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.ValidateAll())
			assert.True(t, parent.Discriminated())
			assert.Contains(t, parent.Subtypes(), "Circle")
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"Circle"}, parent.Subtypes())
}
