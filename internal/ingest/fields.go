package ingest

import (
	"github.com/david/govmatch/internal/models"
)

// columnAliases lists, per canonical field, the header names a portal has used over its
// releases. The first alias present with a non-empty value wins.
type columnAliases struct {
	Title                []string
	SourceID             []string
	Description          []string
	Agency               []string
	BidType              []string
	OpenDate             []string
	CloseDate            []string
	CommodityCode        []string
	CommodityDescription []string
	NAICS                []string
	SetAsides            []string
	EstimatedValue       []string
	ContactName          []string
	ContactPhone         []string
	ContactEmail         []string
	SourceURL            []string
	State                []string
	County               []string
}

// first returns the first non-empty value among the aliases.
func first(row RawRow, aliases []string) string {
	for _, a := range aliases {
		if v, ok := row.Get(a); ok && v != "" {
			return v
		}
	}
	return ""
}

// mapColumns does the field-by-field work shared by all mappers.
func mapColumns(row RawRow, mc MapContext, cols columnAliases) *models.Opportunity {
	title := cleanText(first(row, cols.Title))
	if title == "" {
		return nil
	}

	opp := &models.Opportunity{
		Source:               mc.Source,
		SourceKind:           mc.Kind,
		SourceID:             stripSpreadsheetEscape(first(row, cols.SourceID)),
		Title:                title,
		Description:          first(row, cols.Description),
		Agency:               cleanText(first(row, cols.Agency)),
		BidType:              cleanText(first(row, cols.BidType)),
		CommodityCode:        stripSpreadsheetEscape(first(row, cols.CommodityCode)),
		CommodityDescription: cleanText(first(row, cols.CommodityDescription)),
		NAICSCodes:           splitList(first(row, cols.NAICS)),
		SetAsides:            splitList(first(row, cols.SetAsides)),
		ContactName:          cleanText(first(row, cols.ContactName)),
		ContactPhone:         cleanText(first(row, cols.ContactPhone)),
		ContactEmail:         cleanText(first(row, cols.ContactEmail)),
		SourceURL:            first(row, cols.SourceURL),
		State:                firstNonEmpty(cleanText(first(row, cols.State)), mc.State),
		County:               firstNonEmpty(cleanText(first(row, cols.County)), mc.County),
		IsActive:             true,
	}

	if v := cleanText(first(row, cols.EstimatedValue)); v != "" && !dateSentinels[lowerASCII(v)] {
		opp.EstimatedValue = &v
	}

	opp.OpenDate = NormalizeDate(first(row, cols.OpenDate))

	closeRaw := first(row, cols.CloseDate)
	if IsContinuousMarker(closeRaw) {
		opp.IsContinuous = true
	} else {
		opp.CloseDate = NormalizeDate(closeRaw)
	}

	return opp
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
