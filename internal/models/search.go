package models

import (
	"strings"
	"time"
)

// GeographicPreference narrows a search to a level of government.
type GeographicPreference string

const (
	PreferenceFederal     GeographicPreference = "federal"
	PreferenceState       GeographicPreference = "state"
	PreferenceCounty      GeographicPreference = "county"
	PreferenceLocal       GeographicPreference = "local"
	PreferenceUnspecified GeographicPreference = "unspecified"
)

// ParseGeographicPreference accepts the enum values case-insensitively.
// An empty string is treated as unspecified.
func ParseGeographicPreference(s string) (GeographicPreference, bool) {
	switch p := GeographicPreference(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PreferenceUnspecified, true
	case PreferenceFederal, PreferenceState, PreferenceCounty, PreferenceLocal, PreferenceUnspecified:
		return p, true
	}
	return "", false
}

type NAICSCode struct {
	Code  string `json:"code"`
	Label string `json:"label,omitempty"`
}

type Location struct {
	City   string `json:"city,omitempty"`
	County string `json:"county,omitempty"`
	State  string `json:"state,omitempty"`
}

// RequesterProfile is supplied per request by the profile layer and never mutated here.
type RequesterProfile struct {
	NAICSCodes           []NAICSCode          `json:"naicsCodes"`
	Certifications       []string             `json:"certifications"`
	GeographicPreference GeographicPreference `json:"geographicPreference"`
	Location             *Location            `json:"location,omitempty"`
}

type MatchLevel string

const (
	MatchLow    MatchLevel = "low"
	MatchMedium MatchLevel = "medium"
	MatchHigh   MatchLevel = "high"
)

// SearchResult is a per-request projection of a catalog record or a web candidate.
type SearchResult struct {
	ID                   string     `json:"id"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	Agency               string     `json:"agency"`
	Source               string     `json:"source"`
	SourceURL            string     `json:"sourceUrl"`
	BidType              string     `json:"bidType,omitempty"`
	DueDate              *time.Time `json:"dueDate"`
	IsContinuous         bool       `json:"isContinuous"`
	EstimatedValue       *string    `json:"estimatedValue"`
	CommodityCode        string     `json:"commodityCode,omitempty"`
	CommodityDescription string     `json:"commodityDescription,omitempty"`
	NAICSCodes           []string   `json:"naicsCodes,omitempty"`
	SetAsides            []string   `json:"setAsides,omitempty"`
	State                string     `json:"state,omitempty"`
	County               string     `json:"county,omitempty"`
	MatchScore           int        `json:"matchScore"`
	MatchLevel           MatchLevel `json:"matchLevel"`
	FromDatabase         bool       `json:"fromDatabase"`
}

// ResultFromOpportunity projects a catalog record into a search result.
func ResultFromOpportunity(o Opportunity) SearchResult {
	return SearchResult{
		ID:                   o.ID.String(),
		Title:                o.Title,
		Description:          o.Description,
		Agency:               o.Agency,
		Source:               o.Source,
		SourceURL:            o.SourceURL,
		BidType:              o.BidType,
		DueDate:              o.CloseDate,
		IsContinuous:         o.IsContinuous,
		EstimatedValue:       o.EstimatedValue,
		CommodityCode:        o.CommodityCode,
		CommodityDescription: o.CommodityDescription,
		NAICSCodes:           o.NAICSCodes,
		SetAsides:            o.SetAsides,
		State:                o.State,
		County:               o.County,
		FromDatabase:         true,
	}
}
