package resolver

// Merge deep-merges override onto base and returns a new map. Nested maps
// are merged recursively, two lists are concatenated base first, and any
// other value in override replaces the base value. Neither input is modified.
func Merge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}

	for k, ov := range override {
		bv, exists := out[k]
		if !exists {
			out[k] = ov
			continue
		}

		switch b := bv.(type) {
		case map[string]any:
			if o, ok := ov.(map[string]any); ok {
				out[k] = Merge(b, o)
				continue
			}
		case []any:
			if o, ok := ov.([]any); ok {
				joined := make([]any, 0, len(b)+len(o))
				joined = append(joined, b...)
				out[k] = append(joined, o...)
				continue
			}
		}
		out[k] = ov
	}
	return out
}
