package ingest

import (
	"fmt"
	"strings"

	"github.com/david/govmatch/internal/models"
)

// SourceFormat names the column layout of a portal export.
type SourceFormat string

const (
	FormatCountyBid        SourceFormat = "county_bid"
	FormatFederalContract  SourceFormat = "federal_contract"
	FormatFederalGrant     SourceFormat = "federal_grant"
	FormatStateProcurement SourceFormat = "state_procurement"
	FormatGeneric          SourceFormat = "generic"
)

// ParseSourceFormat validates a registry value. Empty means generic.
func ParseSourceFormat(s string) (SourceFormat, error) {
	switch f := SourceFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatGeneric, nil
	case FormatCountyBid, FormatFederalContract, FormatFederalGrant, FormatStateProcurement, FormatGeneric:
		return f, nil
	}
	return "", fmt.Errorf("unknown source format %q", s)
}

// MapContext carries what the caller knows about the source; mappers never read the
// source identity from row content.
type MapContext struct {
	Source string
	Kind   models.SourceKind
	State  string
	County string
}

// Mapper converts one export row into a canonical opportunity. It returns nil when the
// row has no title. Implementations are pure.
type Mapper interface {
	Map(row RawRow, mc MapContext) *models.Opportunity
}

// MapperFor returns the mapper for a format. Unknown values get the generic mapper.
func MapperFor(f SourceFormat) Mapper {
	switch f {
	case FormatCountyBid:
		return countyBidMapper{}
	case FormatFederalContract:
		return federalContractMapper{}
	case FormatFederalGrant:
		return federalGrantMapper{}
	case FormatStateProcurement:
		return stateProcurementMapper{}
	case FormatGeneric:
		return genericMapper{}
	}
	return genericMapper{}
}

// DefaultKind is the source kind implied by a format when the registry does not say.
func (f SourceFormat) DefaultKind() models.SourceKind {
	switch f {
	case FormatCountyBid:
		return models.KindCounty
	case FormatFederalContract:
		return models.KindFederalContract
	case FormatFederalGrant:
		return models.KindFederalGrant
	case FormatStateProcurement:
		return models.KindState
	}
	return models.KindOther
}
