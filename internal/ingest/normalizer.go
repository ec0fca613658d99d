package ingest

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/david/govmatch/internal/models"
)

const maxDescriptionLen = 8000

var strictPolicy = bluemonday.StrictPolicy()

// TruncateText cuts a string to max length, appending ellipsis if truncated.
func TruncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	cut := maxLen
	if maxLen > 3 {
		cut = maxLen - 3
	}
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if maxLen > 3 {
		return text[:cut] + "..."
	}
	return text[:cut]
}

// HTMLToText converts HTML to plain text, collapsing whitespace.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return cleanText(html)
	}
	return cleanText(doc.Text())
}

// NormalizeOpportunity cleans text fields of a mapped record in place before it is stored.
// Portal exports sometimes paste the notice HTML into the description cell.
func NormalizeOpportunity(opp *models.Opportunity) {
	opp.Title = sanitizeUTF8(cleanText(opp.Title))
	opp.Agency = sanitizeUTF8(opp.Agency)

	desc := sanitizeUTF8(opp.Description)
	if looksLikeHTML(desc) {
		desc = HTMLToText(strictPolicy.Sanitize(desc))
	} else {
		desc = strings.TrimSpace(desc)
	}
	opp.Description = TruncateText(desc, maxDescriptionLen)

	opp.CommodityDescription = sanitizeUTF8(opp.CommodityDescription)
	opp.ContactEmail = strings.ToLower(opp.ContactEmail)
	if len(opp.State) == 2 {
		opp.State = strings.ToUpper(opp.State)
	}
	opp.SourceURL = strings.TrimSpace(opp.SourceURL)

	if opp.IsContinuous {
		opp.CloseDate = nil
	}
}

func looksLikeHTML(s string) bool {
	i := strings.IndexByte(s, '<')
	return i >= 0 && strings.IndexByte(s[i:], '>') > 0
}

// sanitizeUTF8 removes invalid UTF-8 byte sequences that cause PostgreSQL errors.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
