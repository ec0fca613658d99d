package ingest

import (
	"strings"
	"testing"

	"github.com/david/govmatch/internal/models"
)

func TestLoadRegistry_Embedded(t *testing.T) {
	t.Setenv("SAM_GOV_FEED_URL", "https://sam.example.gov/export.csv")

	reg, err := LoadRegistry("")
	if err != nil {
		t.Fatalf("load embedded registry: %v", err)
	}
	src, ok := reg.Lookup("sam_gov")
	if !ok {
		t.Fatal("sam_gov missing from embedded registry")
	}
	if src.FeedURL != "https://sam.example.gov/export.csv" {
		t.Errorf("env not expanded: %q", src.FeedURL)
	}
	if src.SourceFormat() != FormatFederalContract || src.SourceKind() != models.KindFederalContract {
		t.Errorf("unexpected format/kind %s/%s", src.SourceFormat(), src.SourceKind())
	}

	for _, s := range reg.Scheduled() {
		if s.FeedURL == "" || !s.ScheduleEnabled {
			t.Errorf("source %q scheduled without feed", s.ID)
		}
	}
}

func TestParseRegistry_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing id", "sources:\n  - name: x\n    format: generic\n", "has no id"},
		{"duplicate id", "sources:\n  - id: a\n  - id: a\n", "duplicate"},
		{"bad format", "sources:\n  - id: a\n    format: xml\n", "unknown source format"},
		{"bad kind", "sources:\n  - id: a\n    kind: galactic\n", "unknown kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRegistry([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestRegistry_ResolveUnknownFallsBackToGeneric(t *testing.T) {
	reg, err := ParseRegistry([]byte("sources:\n  - id: la_county\n    format: county_bid\n"))
	if err != nil {
		t.Fatal(err)
	}
	src := reg.Resolve("mystery_portal")
	if src.SourceFormat() != FormatGeneric || src.SourceKind() != models.KindOther {
		t.Errorf("unknown source should be generic/other, got %s/%s", src.SourceFormat(), src.SourceKind())
	}
	if got := reg.Resolve("la_county").SourceKind(); got != models.KindCounty {
		t.Errorf("kind should default from format, got %s", got)
	}
}
