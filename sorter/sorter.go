// Package sorter parses "field:direction" sort strings such as
// "name:asc,size:desc" and orders in-memory records by them.
package sorter

import (
	"cmp"
	"slices"
	"strings"

	"github.com/spf13/cast"
)

type (
	SortOpts []Opt

	SortDirection string
)

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"

	// expectedPartsCount is the expected number of parts in a sort option (field:direction).
	expectedPartsCount = 2
)

// MakeFromStr parses a sorting string (e.g., "name:asc,size:desc") into SortOpts.
// Pairs naming a field outside allowedFields, or a direction other than asc
// or desc, are dropped.
func MakeFromStr(sortString string, allowedFields ...string) SortOpts {
	if sortString == "" {
		return nil
	}

	var options []Opt
	for pair := range strings.SplitSeq(sortString, ",") {
		parts := strings.Split(pair, ":")
		if len(parts) != expectedPartsCount {
			continue
		}

		key := strings.TrimSpace(parts[0])
		if !slices.Contains(allowedFields, key) {
			continue
		}

		direction := strings.ToLower(strings.TrimSpace(parts[1]))
		if direction != string(Asc) && direction != string(Desc) {
			continue
		}

		options = append(options, Opt{F: key, D: SortDirection(direction)})
	}

	return options
}

// Make creates SortOpts from a variadic list of Opt.
func Make(sortOptions ...Opt) SortOpts {
	return sortOptions
}

// Opt represents a single sorting option, consisting of a field and a direction.
type Opt struct {
	F string        // F is the field to sort by.
	D SortDirection // D is the sorting direction (asc or desc).
}

// Sort stably orders items by opts. field returns the value of a named field
// of an item. Numbers compare numerically, everything else as strings.
func Sort[T any](items []T, opts SortOpts, field func(item T, name string) any) {
	if len(opts) == 0 {
		return
	}
	slices.SortStableFunc(items, func(a, b T) int {
		for _, o := range opts {
			c := compareValues(field(a, o.F), field(b, o.F))
			if o.D == Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

func compareValues(a, b any) int {
	if isNumber(a) && isNumber(b) {
		return cmp.Compare(cast.ToFloat64(a), cast.ToFloat64(b))
	}
	return strings.Compare(cast.ToString(a), cast.ToString(b))
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	default:
		return false
	}
}
