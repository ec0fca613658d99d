package models

import "time"

// CatalogQuery selects opportunities from the catalog. Results are ordered by close date
// ascending, then continuous listings, then listings with an unknown deadline.
type CatalogQuery struct {
	Kinds           []SourceKind // empty means every kind
	Sources         []string     // empty means every source
	Text            string       // case-insensitive substring over the searchable text fields
	IncludeInactive bool
	Limit           int
}

// SourceSummary describes what the catalog holds for one source.
type SourceSummary struct {
	Source         string     `json:"source"`
	Kind           SourceKind `json:"kind"`
	Active         int        `json:"active"`
	Total          int        `json:"total"`
	LastImportedAt *time.Time `json:"last_imported_at,omitempty"`
}
