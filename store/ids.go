package store

import (
	"fmt"
	"math"
)

// idText normalizes an identity value to its canonical text form. JSON
// round-trips turn integral ids into float64; both forms must key the same
// document.
func idText(id any) (string, error) {
	if id == nil {
		return "", fmt.Errorf("identity cannot be nil")
	}

	switch v := id.(type) {
	case string:
		return v, nil
	case int:
		return fmt.Sprintf("%d", v), nil
	case int32:
		return fmt.Sprintf("%d", v), nil
	case int64:
		return fmt.Sprintf("%d", v), nil
	case uint:
		return fmt.Sprintf("%d", v), nil
	case uint64:
		return fmt.Sprintf("%d", v), nil
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return fmt.Sprintf("%d", int64(v)), nil
		}
		return fmt.Sprintf("%v", v), nil
	case []byte:
		return string(v), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}
