package feed

import (
	"encoding/json"
	"fmt"
)

// Filter is an equality predicate on one column of the event row
type Filter struct {
	Column string
	Value  string
}

// Eq builds a column = value filter
func Eq(column string, value fmt.Stringer) *Filter {
	return &Filter{Column: column, Value: value.String()}
}

// Matches reports whether the event's identifying row satisfies the filter.
// A nil filter matches everything.
func (f *Filter) Matches(event Event) bool {
	if f == nil {
		return true
	}

	row := event.Row()
	if len(row) == 0 {
		return false
	}

	var columns map[string]interface{}
	if err := json.Unmarshal(row, &columns); err != nil {
		return false
	}

	value, ok := columns[f.Column]
	if !ok || value == nil {
		return false
	}

	return fmt.Sprint(value) == f.Value
}

func (f *Filter) String() string {
	if f == nil {
		return "*"
	}
	return f.Column + "=eq." + f.Value
}
