package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	usDateRegex  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})(?:\s+(\d{1,2}):(\d{2})(?::(\d{2}))?\s*([AaPp]\.?[Mm]\.?)?)?`)
	isoDateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

	// Values that mean "no date" rather than "bad date".
	dateSentinels = map[string]bool{
		"":                  true,
		"-":                 true,
		"n/a":               true,
		"na":                true,
		"none":              true,
		"tbd":               true,
		"continuous":        true,
		"ongoing":           true,
		"open until filled": true,
	}

	continuousMarkers = []string{"continuous", "ongoing", "open until filled", "until filled", "rolling"}
)

// NormalizeDate turns a free-text date into a UTC instant, or nil when the text carries
// no usable date. Wall-clock values are read as UTC; a US date without a time lands at
// 12:00. It never panics and never guesses a date out of unrelated text.
func NormalizeDate(text string) *time.Time {
	text = strings.TrimSpace(text)
	if dateSentinels[strings.ToLower(text)] {
		return nil
	}

	if t, ok := parseUSDate(text); ok {
		return &t
	}
	if isoDateRegex.MatchString(text) {
		if t, ok := parseISODate(text); ok {
			return &t
		}
	}
	if t, err := parseDateRobust(text); err == nil {
		return &t
	}
	return nil
}

// IsContinuousMarker reports whether a close-date cell means "no deadline".
func IsContinuousMarker(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return false
	}
	for _, m := range continuousMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func parseUSDate(text string) (time.Time, bool) {
	m := usDateRegex.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	hour, minute, second := 12, 0, 0
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		minute, _ = strconv.Atoi(m[5])
		if m[6] != "" {
			second, _ = strconv.Atoi(m[6])
		}
		if m[7] != "" {
			if hour < 1 || hour > 12 {
				return time.Time{}, false
			}
			pm := strings.HasPrefix(strings.ToLower(m[7]), "p")
			switch {
			case hour == 12 && !pm:
				hour = 0
			case hour != 12 && pm:
				hour += 12
			}
		}
	}
	return validDate(year, month, day, hour, minute, second)
}

func parseISODate(text string) (time.Time, bool) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.UTC(), true
		}
	}
	upper := strings.ToUpper(text)
	for _, layout := range []string{"2006-01-02 3:04 PM", "2006-01-02 3:04PM", "2006-01-02 3:04:05 PM"} {
		if t, err := time.Parse(layout, upper); err == nil {
			return t.UTC(), true
		}
	}
	// Trailing annotations ("2025-06-30 (extended)") fall back to the date part.
	if t, err := time.Parse("2006-01-02", text[:10]); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// validDate rejects values time.Date would silently roll over (Feb 30, 13:75, ...).
func validDate(year, month, day, hour, minute, second int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

// parseDateRobust is the best-effort pass for prose dates ("March 15, 2026 3:00 PM",
// "15 March 2026", "Closing date: Jan 2, 2026"). Date-only results land at 12:00 UTC.
func parseDateRobust(text string) (time.Time, error) {
	text = cleanDateString(text)
	text = strings.ReplaceAll(text, "a.m.", "AM")
	text = strings.ReplaceAll(text, "p.m.", "PM")
	text = strings.ReplaceAll(text, " am", " AM")
	text = strings.ReplaceAll(text, " pm", " PM")

	englishFormats := []string{
		"2 January 2006",
		"02 January 2006",
		"2 January 2006 3:04 PM",
		"January 2, 2006",
		"January 2 2006",
		"January 2, 2006 3 PM",
		"January 2, 2006 3:04 PM",
		"January 2, 2006 at 3:04 PM",
		"Jan 2, 2006",
		"Jan 2 2006",
		"Jan 2, 2006 3:04 PM",
		"2 Jan 2006",
		"02 Jan 2006",
		"Monday, January 2, 2006",
		"Mon, Jan 2, 2006",
		"01-02-2006",
		"1/2/06",
		"20060102",
	}

	for _, format := range englishFormats {
		if t, err := time.Parse(format, text); err == nil {
			if strings.Contains(format, "3") {
				return t.UTC(), nil
			}
			return atNoon(t), nil
		}
	}

	if t := parseDateWithRegex(text); !t.IsZero() {
		return atNoon(t), nil
	}

	return time.Time{}, errUnparseableDate
}

func atNoon(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.UTC)
}

var monthNameRegex = regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\.?\s+(\d{1,2}),?\s+(20\d{2})\b`)

// parseDateWithRegex pulls a "Month D, YYYY" date out of surrounding prose.
func parseDateWithRegex(text string) time.Time {
	matches := monthNameRegex.FindStringSubmatch(text)
	if len(matches) != 4 {
		return time.Time{}
	}
	month := strings.ToUpper(matches[1][:1]) + strings.ToLower(matches[1][1:])
	if month == "Sept" {
		month = "Sep"
	}
	dateStr := month + " " + matches[2] + " " + matches[3]
	for _, layout := range []string{"January 2 2006", "Jan 2 2006"} {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return t
		}
	}
	return time.Time{}
}

// cleanDateString removes common label prefixes.
func cleanDateString(s string) string {
	prefixes := []string{
		"closing date:", "close date:", "deadline:", "due date:", "due:",
		"response date:", "expires:", "ends:", "open:",
	}
	lower := strings.ToLower(s)
	if len(lower) != len(s) {
		return strings.TrimSpace(s)
	}
	for _, p := range prefixes {
		if idx := strings.Index(lower, p); idx != -1 {
			s = s[idx+len(p):]
			lower = lower[idx+len(p):]
		}
	}
	return strings.TrimSpace(s)
}
