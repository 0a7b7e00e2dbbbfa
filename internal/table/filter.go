package table

import "fmt"

// Filter conditions. "in"/"not_in" test membership against all values;
// "equals"/"not_equals" compare against the first value only.
const (
	CondIn        = "in"
	CondNotIn     = "not_in"
	CondEquals    = "equals"
	CondNotEquals = "not_equals"
)

// FilterSpec selects which rows require remote processing. Rows it excludes
// stay in the final output with empty result fields.
type FilterSpec struct {
	Column    string
	Values    []string
	Condition string
}

// ValidCondition reports whether cond is one of the supported conditions.
func ValidCondition(cond string) bool {
	switch cond {
	case CondIn, CondNotIn, CondEquals, CondNotEquals:
		return true
	}
	return false
}

// Filter returns the positions of rows matching spec. A nil spec or one
// without a column selects every row. A named column that does not exist is a
// structural error.
func (t *Table) Filter(spec *FilterSpec) ([]int, error) {
	if spec == nil || spec.Column == "" {
		all := make([]int, len(t.Rows))
		for i := range t.Rows {
			all[i] = i
		}
		return all, nil
	}
	ci, ok := t.ColumnIndex(spec.Column)
	if !ok {
		return nil, fmt.Errorf("filter column %q not found in input", spec.Column)
	}
	if !ValidCondition(spec.Condition) {
		return nil, fmt.Errorf("unsupported filter condition: %q", spec.Condition)
	}

	values := make(map[string]struct{}, len(spec.Values))
	for _, v := range spec.Values {
		values[v] = struct{}{}
	}

	var selected []int
	for i, row := range t.Rows {
		cell := row[ci]
		var match bool
		switch spec.Condition {
		case CondIn:
			_, match = values[cell]
		case CondNotIn:
			_, inSet := values[cell]
			match = !inSet
		case CondEquals:
			match = len(spec.Values) > 0 && cell == spec.Values[0]
		case CondNotEquals:
			match = len(spec.Values) == 0 || cell != spec.Values[0]
		}
		if match {
			selected = append(selected, i)
		}
	}
	return selected, nil
}
