package ingest

import (
	"net/url"
	"path"
	"strings"

	"github.com/david/govmatch/internal/models"
)

// SAM.gov contract opportunities export (ContractOpportunitiesFullCSV and the saved-search
// download, which use different casing and spacing).
var federalContractColumns = columnAliases{
	Title:                []string{"Title", "Opportunity Title"},
	SourceID:             []string{"NoticeId", "Notice ID", "Solicitation Number", "Sol#"},
	Description:          []string{"Description", "Description Link"},
	Agency:               []string{"Department/Ind.Agency", "Department/Ind. Agency", "Department", "Sub-Tier", "Office"},
	BidType:              []string{"Type", "Notice Type", "BaseType"},
	OpenDate:             []string{"PostedDate", "Posted Date"},
	CloseDate:            []string{"ResponseDeadLine", "Response Deadline", "Response Date"},
	CommodityCode:        []string{"ClassificationCode", "Classification Code", "PSC"},
	NAICS:                []string{"NaicsCode", "NAICS Code", "NAICS"},
	SetAsides:            []string{"SetASide", "Set Aside", "SetASideCode", "Set-Aside"},
	EstimatedValue:       []string{"Award$", "Award Amount", "Estimated Value"},
	ContactName:          []string{"PrimaryContactFullname", "Primary Contact Fullname", "Primary Contact"},
	ContactPhone:         []string{"PrimaryContactPhone", "Primary Contact Phone"},
	ContactEmail:         []string{"PrimaryContactEmail", "Primary Contact Email"},
	SourceURL:            []string{"Link", "UiLink", "URL"},
	State:                []string{"PopState", "Place of Performance State", "State"},
	CommodityDescription: []string{"ClassificationDescription"},
}

// Grants.gov search export and the XML extract flattened to CSV.
var federalGrantColumns = columnAliases{
	Title:          []string{"OpportunityTitle", "Opportunity Title", "Title"},
	SourceID:       []string{"OpportunityID", "Opportunity ID", "OpportunityNumber", "Opportunity Number"},
	Description:    []string{"Description", "Synopsis"},
	Agency:         []string{"AgencyName", "Agency Name", "Agency"},
	BidType:        []string{"FundingInstrumentType", "Funding Instrument Type", "OpportunityCategory", "Opportunity Category"},
	OpenDate:       []string{"PostDate", "Post Date", "Posted Date"},
	CloseDate:      []string{"CloseDate", "Close Date", "Application Due Date"},
	CommodityCode:  []string{"CFDANumbers", "CFDA Numbers", "Assistance Listings", "ALN"},
	SetAsides:      []string{"EligibleApplicants", "Eligible Applicants", "Eligibility"},
	EstimatedValue: []string{"EstimatedTotalProgramFunding", "Estimated Total Program Funding", "AwardCeiling", "Award Ceiling"},
	ContactName:    []string{"GrantorContactName", "Grantor Contact Name"},
	ContactEmail:   []string{"GrantorContactEmail", "Grantor Contact Email"},
	ContactPhone:   []string{"GrantorContactPhone", "Grantor Contact Phone"},
	SourceURL:      []string{"AdditionalInformationURL", "Additional Information URL", "Link", "URL"},
}

type federalContractMapper struct{}

func (federalContractMapper) Map(row RawRow, mc MapContext) *models.Opportunity {
	return mapColumns(row, mc, federalContractColumns)
}

type federalGrantMapper struct{}

func (federalGrantMapper) Map(row RawRow, mc MapContext) *models.Opportunity {
	opp := mapColumns(row, mc, federalGrantColumns)
	if opp == nil {
		return nil
	}
	// Grants.gov leaves the id column off some extracts; the notice page URL carries it.
	if opp.SourceID == "" {
		opp.SourceID = grantIDFromURL(opp.SourceURL)
	}
	return opp
}

// grantIDFromURL reads the opportunity id out of a Grants.gov link, either the legacy
// view-opportunity.html?oppId=N form or /search-results-detail/N.
func grantIDFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || !strings.HasSuffix(strings.ToLower(u.Host), "grants.gov") {
		return ""
	}
	if id := u.Query().Get("oppId"); id != "" {
		return id
	}
	if strings.Contains(u.Path, "search-results-detail") {
		return path.Base(strings.TrimSuffix(u.Path, "/"))
	}
	return ""
}
