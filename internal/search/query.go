package search

import (
	"strings"

	"github.com/david/govmatch/internal/models"
)

// solicitationTerms already make a query specific enough for web search.
var solicitationTerms = []string{
	"rfp", "rfq", "rfi", "grant", "solicitation", "bid", "contract", "proposal", "funding", "tender",
}

const solicitationHint = "RFP OR grant OR solicitation"

// ComposedQuery is the pair of queries one search request produces: a precise catalog
// filter and a recall-oriented text for the web fallback.
type ComposedQuery struct {
	Filter   models.CatalogQuery
	Expanded string
}

// KindsFor returns the source kinds a geographic preference restricts the catalog to.
// Unspecified (or unknown) preferences do not restrict.
func KindsFor(pref models.GeographicPreference) []models.SourceKind {
	switch pref {
	case models.PreferenceFederal:
		return []models.SourceKind{models.KindFederalContract, models.KindFederalGrant}
	case models.PreferenceState:
		return []models.SourceKind{models.KindState}
	case models.PreferenceCounty:
		return []models.SourceKind{models.KindCounty}
	case models.PreferenceLocal:
		return []models.SourceKind{models.KindCounty, models.KindCity}
	}
	return nil
}

// Compose builds the catalog filter and the expanded web query for a search.
func Compose(query string, pref models.GeographicPreference, loc *models.Location) ComposedQuery {
	query = strings.TrimSpace(query)

	parts := []string{query}
	var (
		county = countyName(loc)
		state  string
		city   string
	)
	if loc != nil {
		state = strings.TrimSpace(loc.State)
		city = strings.TrimSpace(loc.City)
	}

	switch pref {
	case models.PreferenceLocal:
		parts = appendNonEmpty(parts, city, county, state)
	case models.PreferenceCounty:
		parts = appendNonEmpty(parts, county, state)
	case models.PreferenceState:
		parts = appendNonEmpty(parts, state)
	case models.PreferenceFederal:
		parts = append(parts, "federal government")
	}
	if !mentionsSolicitation(query) {
		parts = append(parts, solicitationHint)
	}

	return ComposedQuery{
		Filter: models.CatalogQuery{
			Kinds: KindsFor(pref),
			Text:  query,
		},
		Expanded: strings.Join(parts, " "),
	}
}

func countyName(loc *models.Location) string {
	if loc == nil {
		return ""
	}
	county := strings.TrimSpace(loc.County)
	if county == "" || strings.HasSuffix(strings.ToLower(county), "county") {
		return county
	}
	return county + " County"
}

func appendNonEmpty(parts []string, values ...string) []string {
	for _, v := range values {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return parts
}

func mentionsSolicitation(query string) bool {
	lower := strings.ToLower(query)
	for _, term := range solicitationTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
