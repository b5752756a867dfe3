package llm

import (
	"encoding/json"
	"fmt"
)

// FlattenNonScalars rewrites object and array values of the given keys as
// compact JSON strings so the document fits in a flat table row. It returns
// the rewritten document and the keys it touched, in document order.
func FlattenNonScalars(f *Fields, keys []string) (*Fields, []string, error) {
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}
	out := NewFields()
	var changed []string
	for _, k := range f.Keys() {
		v, _ := f.Get(k)
		if _, ok := want[k]; ok {
			switch v.(type) {
			case map[string]any, []any:
				b, err := json.Marshal(v)
				if err != nil {
					return nil, nil, fmt.Errorf("flatten %q: %w", k, err)
				}
				v = string(b)
				changed = append(changed, k)
			}
		}
		out.Set(k, v)
	}
	return out, changed, nil
}
