package internal

import "strconv"

// Flatten takes a nested map and returns a new map with the keys flattened into a single level.
// Nested map keys are joined with a ".", array elements use their index as a key segment
// and every array also exposes its length under "<path>.#".
// For example, `{"a": {"b": [true]}}` becomes `{"a.b": [true], "a.b.#": 1, "a.b.0": true}`.
func Flatten(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for key, value := range data {
		flattenInto(out, key, value)
	}
	return out
}

func flattenInto(out map[string]interface{}, path string, value interface{}) {
	switch typed := value.(type) {
	case map[string]interface{}:
		for key, child := range typed {
			flattenInto(out, path+"."+key, child)
		}
	case []interface{}:
		out[path] = typed
		out[path+".#"] = float64(len(typed))
		for i, child := range typed {
			flattenInto(out, path+"."+strconv.Itoa(i), child)
		}
	default:
		out[path] = value
	}
}
