package search

import (
	"encoding/json"
	"strings"
)

// WebCandidate is one opportunity the web fallback found. Empty optional fields mean
// the source did not publish them.
type WebCandidate struct {
	Title          string
	URL            string
	Snippet        string
	DueDate        string
	EstimatedValue string
	Agency         string
}

// rawCandidate accepts the key spellings models tend to use in free-form answers.
type rawCandidate struct {
	Title          string `json:"title"`
	Name           string `json:"name"`
	URL            string `json:"url"`
	Link           string `json:"link"`
	Snippet        string `json:"snippet"`
	Description    string `json:"description"`
	DueDate        string `json:"due_date"`
	DueDateCamel   string `json:"dueDate"`
	Deadline       string `json:"deadline"`
	EstimatedValue any    `json:"estimated_value"`
	EstimatedCamel any    `json:"estimatedValue"`
	Agency         string `json:"agency"`
}

// ExtractJSONCandidates looks for the first well-formed JSON array of objects embedded
// in text. ok is false when there is none; elements without a title are skipped.
func ExtractJSONCandidates(text string) ([]WebCandidate, bool) {
	for start := strings.IndexByte(text, '['); start >= 0; {
		if raw, ok := balancedArray(text[start:]); ok {
			var items []rawCandidate
			if err := json.Unmarshal([]byte(raw), &items); err == nil {
				return toCandidates(items), true
			}
		}
		next := strings.IndexByte(text[start+1:], '[')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, false
}

func toCandidates(items []rawCandidate) []WebCandidate {
	out := make([]WebCandidate, 0, len(items))
	for _, it := range items {
		title := strings.TrimSpace(firstOf(it.Title, it.Name))
		if title == "" {
			continue
		}
		out = append(out, WebCandidate{
			Title:          title,
			URL:            strings.TrimSpace(firstOf(it.URL, it.Link)),
			Snippet:        strings.TrimSpace(firstOf(it.Snippet, it.Description)),
			DueDate:        strings.TrimSpace(firstOf(it.DueDate, it.DueDateCamel, it.Deadline)),
			EstimatedValue: firstOf(valueString(it.EstimatedValue), valueString(it.EstimatedCamel)),
			Agency:         strings.TrimSpace(it.Agency),
		})
	}
	return out
}

// valueString keeps a published amount as text. Numbers are rendered as given.
func valueString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		b, _ := json.Marshal(x)
		return string(b)
	}
	return ""
}

// balancedArray returns the prefix of s that is one bracket-balanced array, ignoring
// brackets inside JSON strings.
func balancedArray(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

func firstOf(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
