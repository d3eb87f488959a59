package query

import (
	"time"
)

// Range bounds a comparable value. Any subset of the four bounds may be set;
// a nil bound is open. Values are numbers, strings (dates in their textual
// form), or time.Time.
type Range struct {
	Gt  any
	Gte any
	Lt  any
	Lte any
}

var rangeKeys = map[string]struct{}{"gt": {}, "gte": {}, "lt": {}, "lte": {}}

// asRange reports whether a normalized value is range-shaped, converting the
// map form handed over by upstream request decoding. Scalars are not ranges
// and compile to equality. A map with keys outside {lt,lte,gt,gte} is a
// malformed filter value.
func asRange(name string, value any) (Range, bool, error) {
	switch v := value.(type) {
	case Range:
		return v, true, nil

	case map[string]any:
		for key := range v {
			if _, ok := rangeKeys[key]; !ok {
				return Range{}, false, newValidationError(name, "invalid range filter")
			}
		}

		return Range{Gt: v["gt"], Gte: v["gte"], Lt: v["lt"], Lte: v["lte"]}, true, nil

	case map[string]string:
		r := map[string]any{}
		for key, val := range v {
			r[key] = val
		}

		return asRange(name, r)

	default:
		return Range{}, false, nil
	}
}

// lowerBound returns the effective lower bound of a range: the smaller of
// gt/gte when both are set, else whichever is set, else nothing.
func lowerBound(r Range) (any, bool) {
	switch {
	case r.Gt != nil && r.Gte != nil:
		if cmp, err := compareScalars(r.Gt, r.Gte); err == nil && cmp > 0 {
			return r.Gte, true
		}

		return r.Gt, true

	case r.Gt != nil:
		return r.Gt, true

	case r.Gte != nil:
		return r.Gte, true

	default:
		return nil, false
	}
}

// enforceMin applies a filter's minimum-bound policy. A supplied lower bound
// below min is rejected; a missing lower bound is replaced by an inclusive
// min bound on a copy of the range, leaving the caller's value untouched.
func enforceMin(name string, r Range, minValue any) (Range, error) {
	if minValue == nil {
		return r, nil
	}

	bound, ok := lowerBound(r)
	if !ok {
		r.Gte = minValue

		return r, nil
	}

	cmp, err := compareScalars(bound, minValue)
	if err != nil {
		return Range{}, newValidationError(name, "value cannot be compared with %v", minValue)
	}

	if cmp < 0 {
		return Range{}, newValidationError(name, "value cannot be lower than %v", minValue)
	}

	return r, nil
}

// compareScalars orders two bound values of compatible types. Numbers compare
// numerically, strings lexically (ISO dates order correctly), times
// chronologically.
func compareScalars(a, b any) (int, error) {
	if at, aok := asTime(a); aok {
		if bt, bok := asTime(b); bok {
			return at.Compare(bt), nil
		}
	}

	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			switch {
			case af < bf:
				return -1, nil
			case af > bf:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch {
		case as < bs:
			return -1, nil
		case as > bs:
			return 1, nil
		default:
			return 0, nil
		}
	}

	return 0, newConfigError("cannot compare %T with %T", a, b)
}

func asTime(v any) (time.Time, bool) {
	t, ok := v.(time.Time)

	return t, ok
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// truthy mirrors the bound-emission rule: zero numbers, empty strings, false
// and zero times count as unset, so such bounds never reach the query.
func truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case string:
		return b != ""
	case time.Time:
		return !b.IsZero()
	default:
		if f, ok := asFloat(v); ok {
			return f != 0
		}

		return true
	}
}
