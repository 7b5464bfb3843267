package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/samber/lo"
)

// ErrUnknownColumn is returned when a column list names a column the record
// kind does not produce.
var ErrUnknownColumn = errors.New("metrics: unknown column")

// Record maps column names to raw values. A column absent from the map
// renders as an empty cell.
type Record map[string]any

// Row renders the record in the order of columns.
func (r Record) Row(columns []string) []string {
	return lo.Map(columns, func(c string, _ int) string { return FormatValue(r[c]) })
}

// ValidateColumns checks that every entry of columns is one of known.
func ValidateColumns(columns, known []string) error {
	set := lo.SliceToMap(known, func(c string) (string, struct{}) { return c, struct{}{} })
	for _, c := range columns {
		if _, ok := set[c]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownColumn, c)
		}
	}
	return nil
}

// FormatValue renders one cell: nil and nil pointers as "", booleans as
// YES/NO, instants as yyyy-MM-dd and everything else with %v.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "YES"
		}
		return "NO"
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format(time.DateOnly)
	case *time.Time:
		if x == nil {
			return ""
		}
		return FormatValue(*x)
	case *float64:
		if x == nil {
			return ""
		}
		return FormatValue(*x)
	case *int64:
		if x == nil {
			return ""
		}
		return strconv.FormatInt(*x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
