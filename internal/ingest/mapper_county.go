package ingest

import "github.com/david/govmatch/internal/models"

// County bid portals (Bonfire, BidNet and the older in-house exports) rename columns
// between releases, so every field carries a few aliases.
var countyBidColumns = columnAliases{
	Title:                []string{"Bid Title", "Title", "Solicitation Title", "Project Title", "Description Title"},
	SourceID:             []string{"Bid Number", "Solicitation Number", "Bid #", "Bid No", "Solicitation #", "Reference Number"},
	Description:          []string{"Bid Description", "Description", "Scope of Work", "Summary"},
	Agency:               []string{"Department", "Agency", "Issuing Department", "Organization"},
	BidType:              []string{"Bid Type", "Solicitation Type", "Type"},
	OpenDate:             []string{"Open Date", "Opening Date", "Issue Date", "Release Date", "Posted Date"},
	CloseDate:            []string{"Close Date", "Closing Date", "Due Date", "Bid Due Date", "Bid Close Date"},
	CommodityCode:        []string{"Commodity Code", "Commodity", "NIGP Code"},
	CommodityDescription: []string{"Commodity Description", "Commodity Name", "NIGP Description"},
	NAICS:                []string{"NAICS", "NAICS Code", "NAICS Codes"},
	SetAsides:            []string{"Set Aside", "Set-Aside", "Small Business Set Aside", "Certification"},
	EstimatedValue:       []string{"Estimated Value", "Estimated Amount", "Contract Value"},
	ContactName:          []string{"Contact Name", "Buyer", "Buyer Name", "Contact"},
	ContactPhone:         []string{"Contact Phone", "Buyer Phone", "Phone"},
	ContactEmail:         []string{"Contact Email", "Buyer Email", "Email"},
	SourceURL:            []string{"Bid URL", "URL", "Link", "Detail URL"},
	State:                []string{"State"},
	County:               []string{"County"},
}

type countyBidMapper struct{}

func (countyBidMapper) Map(row RawRow, mc MapContext) *models.Opportunity {
	return mapColumns(row, mc, countyBidColumns)
}
