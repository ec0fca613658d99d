package search

import (
	"slices"
	"testing"

	"github.com/david/govmatch/internal/models"
)

func TestCompose(t *testing.T) {
	la := &models.Location{City: "Pasadena", County: "Los Angeles", State: "CA"}

	tests := []struct {
		name         string
		query        string
		pref         models.GeographicPreference
		loc          *models.Location
		wantKinds    []models.SourceKind
		wantExpanded string
	}{
		{
			name:         "local adds city county and state",
			query:        "janitorial services",
			pref:         models.PreferenceLocal,
			loc:          la,
			wantKinds:    []models.SourceKind{models.KindCounty, models.KindCity},
			wantExpanded: "janitorial services Pasadena Los Angeles County CA RFP OR grant OR solicitation",
		},
		{
			name:         "county skips city",
			query:        "paving",
			pref:         models.PreferenceCounty,
			loc:          la,
			wantKinds:    []models.SourceKind{models.KindCounty},
			wantExpanded: "paving Los Angeles County CA RFP OR grant OR solicitation",
		},
		{
			name:         "state",
			query:        "mental health",
			pref:         models.PreferenceState,
			loc:          la,
			wantKinds:    []models.SourceKind{models.KindState},
			wantExpanded: "mental health CA RFP OR grant OR solicitation",
		},
		{
			name:         "federal",
			query:        "cybersecurity",
			pref:         models.PreferenceFederal,
			wantKinds:    []models.SourceKind{models.KindFederalContract, models.KindFederalGrant},
			wantExpanded: "cybersecurity federal government RFP OR grant OR solicitation",
		},
		{
			name:         "unspecified does not restrict",
			query:        "catering",
			pref:         models.PreferenceUnspecified,
			loc:          la,
			wantExpanded: "catering RFP OR grant OR solicitation",
		},
		{
			name:         "solicitation term suppresses hint",
			query:        "Youth Program Funding",
			pref:         models.PreferenceUnspecified,
			wantExpanded: "Youth Program Funding",
		},
		{
			name:         "county suffix not doubled",
			query:        "bid for fencing",
			pref:         models.PreferenceCounty,
			loc:          &models.Location{County: "Orange County"},
			wantKinds:    []models.SourceKind{models.KindCounty},
			wantExpanded: "bid for fencing Orange County",
		},
		{
			name:         "missing location",
			query:        "landscaping",
			pref:         models.PreferenceLocal,
			wantKinds:    []models.SourceKind{models.KindCounty, models.KindCity},
			wantExpanded: "landscaping RFP OR grant OR solicitation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compose(tt.query, tt.pref, tt.loc)
			if !slices.Equal(got.Filter.Kinds, tt.wantKinds) {
				t.Errorf("Kinds = %v, want %v", got.Filter.Kinds, tt.wantKinds)
			}
			if got.Filter.Text != tt.query {
				t.Errorf("Filter.Text = %q, want the raw query %q", got.Filter.Text, tt.query)
			}
			if got.Expanded != tt.wantExpanded {
				t.Errorf("Expanded = %q, want %q", got.Expanded, tt.wantExpanded)
			}
		})
	}
}
