package main

import (
	"strings"

	"github.com/docmap-io/docmap/mapping"
	"github.com/docmap-io/docmap/refs"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// Author is a stored author document
type Author struct {
	ID   any
	Name string
}

// Post is a stored post document holding a lazy reference to its author
type Post struct {
	ID     any
	Title  string
	Tags   []string
	Author *refs.Single
}

// registerBlogSchema declares the demo mapping descriptors. In an
// application these tables are typically generated next to the structs.
func registerBlogSchema(registry *mapping.Registry) error {
	_, err := registry.Register(mapping.TypeSpec{
		Name: "Author",
		New:  func() any { return &Author{} },
		Fields: []mapping.FieldSpec{
			{
				Name:        "ID",
				Annotations: []mapping.Annotation{{Kind: mapping.AnnID}},
				Get:         func(e any) any { return e.(*Author).ID },
				Set:         func(e, v any) { e.(*Author).ID = v },
			},
			{
				Name: "Name",
				Get:  func(e any) any { return e.(*Author).Name },
				Set:  func(e, v any) { e.(*Author).Name = v.(string) },
			},
		},
	})
	if err != nil {
		return err
	}

	_, err = registry.Register(mapping.TypeSpec{
		Name: "Post",
		New:  func() any { return &Post{} },
		Fields: []mapping.FieldSpec{
			{
				Name:        "ID",
				Annotations: []mapping.Annotation{{Kind: mapping.AnnID}},
				Get:         func(e any) any { return e.(*Post).ID },
				Set:         func(e, v any) { e.(*Post).ID = v },
			},
			{
				Name: "Title",
				Annotations: []mapping.Annotation{
					{Kind: mapping.AnnProperty, Name: "title"},
				},
				Get: func(e any) any { return e.(*Post).Title },
				Set: func(e, v any) { e.(*Post).Title = v.(string) },
			},
			{
				Name: "Tags",
				Kind: mapping.KindSlice,
				Elem: "string",
				Get: func(e any) any {
					p := e.(*Post)
					out := make([]any, len(p.Tags))
					for i, tag := range p.Tags {
						out[i] = tag
					}
					return out
				},
				Set: func(e, v any) {
					p := e.(*Post)
					items := v.([]any)
					p.Tags = make([]string, len(items))
					for i, item := range items {
						p.Tags[i] = item.(string)
					}
				},
			},
			{
				Name:        "Author",
				Elem:        "Author",
				Annotations: []mapping.Annotation{{Kind: mapping.AnnReference, Name: "author"}},
				Get: func(e any) any {
					p := e.(*Post)
					if p.Author == nil {
						return nil
					}
					return p.Author
				},
				Set: func(e, v any) { e.(*Post).Author = v.(*refs.Single) },
			},
		},
	})
	return err
}
