package parser

// Extract pulls the named fields out of a parsed value. An object yields one
// map; an array fans out into one map per element. Missing fields resolve to
// nil, never an error; an array element that is not an object yields all-nil
// fields. ok is false only for Unparsed values.
func Extract(v Value, fields []string) (results []map[string]any, ok bool) {
	switch v.Kind {
	case Object:
		return []map[string]any{pick(v.Object, fields)}, true
	case Array:
		results = make([]map[string]any, 0, len(v.Array))
		for _, elem := range v.Array {
			if obj, isObj := elem.(map[string]any); isObj {
				results = append(results, pick(obj, fields))
			} else {
				results = append(results, NullFields(fields))
			}
		}
		return results, true
	default:
		return nil, false
	}
}

// NullFields returns a map with every field set to nil, used for failure
// records so the output table keeps a stable column set.
func NullFields(fields []string) map[string]any {
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f] = nil
	}
	return m
}

func pick(obj map[string]any, fields []string) map[string]any {
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f] = obj[f]
	}
	return m
}
