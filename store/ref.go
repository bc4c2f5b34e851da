package store

// Ref is a driver-level typed reference: an identity value together with the
// collection it points into. Containers of references may mix targets, in
// which case each entry carries its own Ref.
type Ref struct {
	Collection string `json:"$ref"`
	ID         any    `json:"$id"`
}

// AsRef recognizes a raw value as a typed reference. It accepts both the
// native Ref form and the keyed-mapping form it becomes after a JSON
// round-trip through a backend.
func AsRef(v any) (Ref, bool) {
	switch r := v.(type) {
	case Ref:
		return r, true
	case *Ref:
		if r == nil {
			return Ref{}, false
		}
		return *r, true
	case map[string]any:
		coll, ok := r["$ref"].(string)
		if !ok {
			return Ref{}, false
		}
		id, ok := r["$id"]
		if !ok {
			return Ref{}, false
		}
		return Ref{Collection: coll, ID: id}, true
	default:
		return Ref{}, false
	}
}

// UnwrapID returns the bare identity behind a raw reference value: the Ref's
// id when the value is a typed reference, the value itself otherwise.
func UnwrapID(v any) any {
	if r, ok := AsRef(v); ok {
		return r.ID
	}
	return v
}
