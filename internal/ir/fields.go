package ir

import "strings"

// Field names of the closed item-column set. The engine itself does not
// enforce this set; only the item table does.
const (
	FieldName    = "Name"
	FieldContent = "Content"
	FieldTags    = "Tags"
)

// KnownFields returns the item field names in canonical order.
func KnownFields() []string {
	return []string{FieldName, FieldContent, FieldTags}
}

// IsKnownField reports whether name is one of the item columns.
func IsKnownField(name string) bool {
	switch name {
	case FieldName, FieldContent, FieldTags:
		return true
	}
	return false
}

// JoinTags renders a tag list as stored text, one tag per line.
// Blank tags are dropped and surrounding whitespace is trimmed.
func JoinTags(tags []string) string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	return strings.Join(out, "\n")
}

// SplitTags parses stored tag text back into a list.
func SplitTags(s string) []string {
	out := []string{}
	for _, t := range strings.Split(s, "\n") {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
