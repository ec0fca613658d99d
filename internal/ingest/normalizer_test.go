package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/david/govmatch/internal/models"
)

func TestNormalizeOpportunity(t *testing.T) {
	closeAt := time.Date(2025, 12, 31, 17, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		opp   models.Opportunity
		check func(t *testing.T, opp models.Opportunity)
	}{
		{
			name: "HTML description is sanitized to text",
			opp: models.Opportunity{
				Title:       "  Roof   Repair ",
				Description: `<p>Replace <b>roof</b> membrane.</p><script>alert(1)</script>`,
			},
			check: func(t *testing.T, opp models.Opportunity) {
				if opp.Title != "Roof Repair" {
					t.Errorf("title not cleaned: %q", opp.Title)
				}
				if opp.Description != "Replace roof membrane." {
					t.Errorf("unexpected description %q", opp.Description)
				}
			},
		},
		{
			name: "Plain description keeps its line breaks",
			opp:  models.Opportunity{Title: "x", Description: "Line one\nLine two  "},
			check: func(t *testing.T, opp models.Opportunity) {
				if opp.Description != "Line one\nLine two" {
					t.Errorf("unexpected description %q", opp.Description)
				}
			},
		},
		{
			name: "Continuous listing drops close date",
			opp:  models.Opportunity{Title: "x", IsContinuous: true, CloseDate: &closeAt},
			check: func(t *testing.T, opp models.Opportunity) {
				if opp.CloseDate != nil {
					t.Error("continuous listing must not keep a close date")
				}
			},
		},
		{
			name: "Invalid UTF-8 is removed",
			opp:  models.Opportunity{Title: "Paving\xff Project"},
			check: func(t *testing.T, opp models.Opportunity) {
				if opp.Title != "Paving Project" {
					t.Errorf("unexpected title %q", opp.Title)
				}
			},
		},
		{
			name: "Full state names are left alone",
			opp:  models.Opportunity{Title: "x", State: "California"},
			check: func(t *testing.T, opp models.Opportunity) {
				if opp.State != "California" {
					t.Errorf("unexpected state %q", opp.State)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp := tt.opp
			NormalizeOpportunity(&opp)
			tt.check(t, opp)
		})
	}
}

func TestTruncateText(t *testing.T) {
	if got := TruncateText("short", 10); got != "short" {
		t.Errorf("unexpected %q", got)
	}
	if got := TruncateText("abcdefghij", 8); got != "abcde..." {
		t.Errorf("unexpected %q", got)
	}
	got := TruncateText(strings.Repeat("é", 10), 8)
	if !strings.HasSuffix(got, "...") || len(got) > 8 {
		t.Errorf("multi-byte truncation broke: %q", got)
	}
	for _, r := range strings.TrimSuffix(got, "...") {
		if r != 'é' {
			t.Fatalf("split a rune: %q", got)
		}
	}
}
