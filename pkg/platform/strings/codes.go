// Package strings provides helpers for code lists.
package strings

import "strings"

// CodeSeparator joins code sets in provenance values.
const CodeSeparator = ","

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
//
// Example:
//
//	DedupeAndTrim([]string{"  foo ", "bar", "foo", "", "  "})
//	// Returns: []string{"foo", "bar"}
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}
	return result
}

// JoinCodes renders a code list as a comma-joined string in the given order, dropping
// duplicates and blanks. Empty input gives "".
func JoinCodes(codes []string) string {
	return strings.Join(DedupeAndTrim(codes), CodeSeparator)
}

// SplitCodes reverses JoinCodes.
func SplitCodes(joined string) []string {
	if strings.TrimSpace(joined) == "" {
		return nil
	}
	return DedupeAndTrim(strings.Split(joined, CodeSeparator))
}

// FieldChange renders an edited field for provenance: "field: value".
func FieldChange(field, value string) string {
	return field + ": " + value
}
