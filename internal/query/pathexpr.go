package query

import "strings"

// SQLExpression translates a dotted, bracket-indexed attribute path into a
// Postgres expression. A single segment is a bare column reference; deeper
// paths extract text from a jsonb column, with the first segment as the
// column and the rest as the path:
//
//	SQLExpression("status")              -> status
//	SQLExpression("payload.items[2].id") -> payload #>> '{items,2,id}'
func SQLExpression(path string) string {
	segments := splitPath(path)
	if len(segments) <= 1 {
		return path
	}

	return segments[0] + " #>> '{" + strings.Join(segments[1:], ",") + "}'"
}

func splitPath(path string) []string {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '.' || r == '[' || r == ']'
	})

	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}

	return segments
}
