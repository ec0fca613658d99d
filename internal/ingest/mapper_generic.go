package ingest

import "github.com/david/govmatch/internal/models"

// genericColumns is the union of the known layouts, most common names first.
var genericColumns = mergeAliases(
	columnAliases{
		Title:       []string{"Title", "Name"},
		SourceID:    []string{"ID", "Source ID", "Reference"},
		Description: []string{"Description"},
		CloseDate:   []string{"Deadline"},
		SourceURL:   []string{"URL", "Link"},
	},
	countyBidColumns,
	stateProcurementColumns,
	federalContractColumns,
	federalGrantColumns,
)

type genericMapper struct{}

func (genericMapper) Map(row RawRow, mc MapContext) *models.Opportunity {
	return mapColumns(row, mc, genericColumns)
}

func mergeAliases(sets ...columnAliases) columnAliases {
	var out columnAliases
	for _, s := range sets {
		out.Title = mergeUniqueFold(out.Title, s.Title)
		out.SourceID = mergeUniqueFold(out.SourceID, s.SourceID)
		out.Description = mergeUniqueFold(out.Description, s.Description)
		out.Agency = mergeUniqueFold(out.Agency, s.Agency)
		out.BidType = mergeUniqueFold(out.BidType, s.BidType)
		out.OpenDate = mergeUniqueFold(out.OpenDate, s.OpenDate)
		out.CloseDate = mergeUniqueFold(out.CloseDate, s.CloseDate)
		out.CommodityCode = mergeUniqueFold(out.CommodityCode, s.CommodityCode)
		out.CommodityDescription = mergeUniqueFold(out.CommodityDescription, s.CommodityDescription)
		out.NAICS = mergeUniqueFold(out.NAICS, s.NAICS)
		out.SetAsides = mergeUniqueFold(out.SetAsides, s.SetAsides)
		out.EstimatedValue = mergeUniqueFold(out.EstimatedValue, s.EstimatedValue)
		out.ContactName = mergeUniqueFold(out.ContactName, s.ContactName)
		out.ContactPhone = mergeUniqueFold(out.ContactPhone, s.ContactPhone)
		out.ContactEmail = mergeUniqueFold(out.ContactEmail, s.ContactEmail)
		out.SourceURL = mergeUniqueFold(out.SourceURL, s.SourceURL)
		out.State = mergeUniqueFold(out.State, s.State)
		out.County = mergeUniqueFold(out.County, s.County)
	}
	return out
}
