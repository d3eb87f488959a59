package query

import (
	"encoding/json"
	"sort"
	"strings"
)

// Normalize computes the query-ready value of every filter: the transform is
// applied to the raw value, and the default fills in when the result is
// absent. Filters whose normalized value stays nil carry no constraint and
// are skipped by the predicate compiler. The input descriptors are never
// mutated.
func Normalize(filters Filters) (map[string]any, error) {
	values := make(map[string]any, len(filters))

	for _, name := range sortedKeys(filters) {
		spec := filters[name]

		value, err := normalizeValue(name, spec)
		if err != nil {
			return nil, err
		}

		if value == nil && spec.Default != nil {
			value = spec.Default
		}

		values[name] = value
	}

	return values, nil
}

func normalizeValue(name string, spec FieldFilter) (any, error) {
	switch transform := spec.Transform.(type) {
	case nil:
		return spec.Raw, nil

	case arrayParseTransform:
		if spec.Raw == nil {
			return nil, nil
		}

		return parseValueList(name, spec.Raw)

	case TransformFunc:
		return transform(spec.Raw), nil

	default:
		return nil, newConfigError("filter %q has an unknown transform", name)
	}
}

func parseValueList(name string, raw any) (any, error) {
	switch v := raw.(type) {
	case []any:
		return v, nil

	case []string:
		values := make([]any, len(v))
		for i, s := range v {
			values[i] = s
		}

		return values, nil

	case string:
		return parseStringList(name, v)

	default:
		return nil, newConfigError("filter %q: cannot parse %T as a value list", name, raw)
	}
}

func parseStringList(name, raw string) ([]any, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") {
		var values []any
		if err := json.Unmarshal([]byte(trimmed), &values); err != nil {
			return nil, newConfigError("filter %q: cannot parse %q as a value list", name, raw)
		}

		return values, nil
	}

	parts := strings.Split(trimmed, ",")
	values := make([]any, 0, len(parts))

	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			values = append(values, p)
		}
	}

	return values, nil
}

func sortedKeys(filters Filters) []string {
	keys := make([]string, 0, len(filters))
	for name := range filters {
		keys = append(keys, name)
	}

	sort.Strings(keys)

	return keys
}
