package ingest

import (
	"strings"
)

// cleanText collapses runs of whitespace into one space and trims the string.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// mergeUniqueFold appends items to dst, skipping blanks and case-insensitive duplicates.
func mergeUniqueFold(dst []string, items []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, v := range dst {
		k := strings.ToLower(strings.TrimSpace(v))
		if k != "" {
			seen[k] = struct{}{}
		}
	}

	for _, v := range items {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		k := strings.ToLower(v)
		if _, ok := seen[k]; ok {
			continue
		}
		dst = append(dst, v)
		seen[k] = struct{}{}
	}

	return dst
}

// splitList breaks a multi-valued cell ("236220; 238210", "SDVOSB, WOSB") into clean items.
func splitList(block string) []string {
	parts := strings.FieldsFunc(block, func(r rune) bool {
		switch r {
		case ',', ';', '|', '\n', '\r':
			return true
		}
		return false
	})

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimLeft(strings.TrimSpace(p), "-*•")
		p = cleanText(stripSpreadsheetEscape(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return mergeUniqueFold(nil, out)
}

// stripSpreadsheetEscape removes the ="..." wrapper and leading apostrophe that
// spreadsheet exports add to keep codes like 00123 from turning into numbers.
func stripSpreadsheetEscape(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "=\"") {
		s = strings.TrimPrefix(s, "=\"")
		s = strings.TrimSuffix(s, "\"")
	} else if strings.HasPrefix(s, "=") && len(s) > 1 {
		s = strings.TrimPrefix(s, "=")
	}
	s = strings.TrimPrefix(s, "'")
	return strings.TrimSpace(s)
}
