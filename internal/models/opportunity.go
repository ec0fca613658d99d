package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SourceKind groups sources by the level of government that publishes them.
type SourceKind string

const (
	KindFederalContract SourceKind = "federal_contract"
	KindFederalGrant    SourceKind = "federal_grant"
	KindState           SourceKind = "state"
	KindCounty          SourceKind = "county"
	KindCity            SourceKind = "city"
	KindOther           SourceKind = "other"
)

// ParseSourceKind maps a registry value onto a SourceKind.
func ParseSourceKind(s string) (SourceKind, bool) {
	switch k := SourceKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindFederalContract, KindFederalGrant, KindState, KindCounty, KindCity, KindOther:
		return k, true
	}
	return "", false
}

// Opportunity is the canonical catalog record for one contract or grant listing.
type Opportunity struct {
	ID                   uuid.UUID  `json:"id"`
	Source               string     `json:"source"`
	SourceKind           SourceKind `json:"source_kind"`
	SourceID             string     `json:"source_id"`
	SourceIDDerived      bool       `json:"source_id_derived"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	Agency               string     `json:"agency"`
	BidType              string     `json:"bid_type"`
	OpenDate             *time.Time `json:"open_date"`
	CloseDate            *time.Time `json:"close_date"`
	IsContinuous         bool       `json:"is_continuous"`
	CommodityCode        string     `json:"commodity_code"`
	CommodityDescription string     `json:"commodity_description"`
	NAICSCodes           []string   `json:"naics_codes"`
	SetAsides            []string   `json:"set_asides"`
	EstimatedValue       *string    `json:"estimated_value"` // free text, never fabricated
	ContactName          string     `json:"contact_name"`
	ContactPhone         string     `json:"contact_phone"`
	ContactEmail         string     `json:"contact_email"`
	SourceURL            string     `json:"source_url"`
	State                string     `json:"state"`
	County               string     `json:"county"`
	IsActive             bool       `json:"is_active"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// HasUnknownDeadline reports a missing close date on a listing that is not continuous.
func (o Opportunity) HasUnknownDeadline() bool {
	return o.CloseDate == nil && !o.IsContinuous
}
