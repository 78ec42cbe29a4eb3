package store

import "github.com/idrisr/pepys/ir/raw"

// Caps on the simplified dictionary rendering served with object detail.
// Huge dictionaries and arrays are cut with explicit markers instead of
// flooding the response.
const (
	simplifyDepth = 4
	maxDictItems  = 50
	maxListItems  = 50
)

// simplify projects a value tree into plain JSON-ready data. References
// render as their id string; nesting past the depth limit renders as
// "...".
func simplify(value raw.Object, depth int) any {
	if depth < 0 {
		return "..."
	}
	switch v := value.(type) {
	case nil, raw.Null:
		return nil
	case raw.Boolean:
		return v.V
	case raw.Number:
		if v.IsInt {
			return v.I
		}
		return v.F
	case raw.String:
		return string(v.Bytes)
	case raw.Name:
		return "/" + v.Val
	case raw.Ref:
		return v.R.String()
	case *raw.Stream:
		return map[string]any{
			"__stream__": true,
			"dict":       simplify(v.Dict, depth-1),
		}
	case *raw.Dict:
		out := make(map[string]any, v.Len())
		for i, key := range v.Keys() {
			if i == maxDictItems {
				out["__truncated__"] = true
				break
			}
			item, _ := v.Get(key)
			out[key] = simplify(item, depth-1)
		}
		return out
	case *raw.Array:
		out := make([]any, 0, v.Len())
		for i, item := range v.Items {
			if i == maxListItems {
				out = append(out, "...")
				break
			}
			out = append(out, simplify(item, depth-1))
		}
		return out
	}
	return nil
}
