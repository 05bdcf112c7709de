package entitystore

import (
	"fmt"
	"sort"
)

// matches reports whether data satisfies every equality in q. Numeric values
// compare numerically regardless of the concrete Go type, everything else by
// string form, mirroring how JSON documents lose type precision in transit.
func matches(data map[string]any, q Query) bool {
	for field, want := range q {
		got, ok := data[field]
		if !ok {
			return false
		}
		if !valueEqual(got, want) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	}
	return 0, false
}

func sortRecords(records []Record, opts FilterOptions) {
	if opts.SortField == "" {
		sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
		return
	}
	field, desc := opts.SortField, opts.SortDesc
	sort.Slice(records, func(i, j int) bool {
		less := valueLess(records[i].Data[field], records[j].Data[field])
		if desc {
			return !less && !valueEqual(records[i].Data[field], records[j].Data[field])
		}
		return less
	})
}

func valueLess(a, b any) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af < bf
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func applyLimit(records []Record, opts FilterOptions) []Record {
	if opts.Limit > 0 && len(records) > opts.Limit {
		return records[:opts.Limit]
	}
	return records
}
