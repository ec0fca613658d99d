package ingest

import "github.com/david/govmatch/internal/models"

// State eProcurement event exports (Cal eProcure style "events" listings).
var stateProcurementColumns = columnAliases{
	Title:                []string{"Event Name", "Event Title", "Title", "Solicitation Title"},
	SourceID:             []string{"Event ID", "Event Number", "Solicitation Number", "Bid Number"},
	Description:          []string{"Event Description", "Description"},
	Agency:               []string{"Department", "Department Name", "Agency"},
	BidType:              []string{"Event Type", "Format/Type", "Type"},
	OpenDate:             []string{"Start Date", "Published Date", "Release Date"},
	CloseDate:            []string{"End Date", "Event End Date", "Close Date", "Due Date"},
	CommodityCode:        []string{"UNSPSC", "UNSPSC Code", "Commodity Code"},
	CommodityDescription: []string{"UNSPSC Description", "Commodity Description"},
	NAICS:                []string{"NAICS", "NAICS Code"},
	SetAsides:            []string{"Certification Type", "Set Aside", "SB/DVBE"},
	EstimatedValue:       []string{"Estimated Value", "Estimated Amount"},
	ContactName:          []string{"Contact Name", "Buyer"},
	ContactPhone:         []string{"Contact Phone", "Phone"},
	ContactEmail:         []string{"Contact Email", "Email"},
	SourceURL:            []string{"Event URL", "URL", "Link"},
	State:                []string{"State"},
	County:               []string{"County", "Service Area"},
}

type stateProcurementMapper struct{}

func (stateProcurementMapper) Map(row RawRow, mc MapContext) *models.Opportunity {
	return mapColumns(row, mc, stateProcurementColumns)
}
