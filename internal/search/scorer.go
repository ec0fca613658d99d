package search

import (
	"sort"
	"strings"

	"github.com/david/govmatch/internal/models"
)

// Weights are the score adjustments and tier thresholds of the relevance scorer.
type Weights struct {
	Base            int `mapstructure:"base" json:"base"`
	NAICS           int `mapstructure:"naics" json:"naics"`
	Certification   int `mapstructure:"certification" json:"certification"`
	Provenance      int `mapstructure:"provenance" json:"provenance"`
	HighThreshold   int `mapstructure:"high_threshold" json:"high_threshold"`
	MediumThreshold int `mapstructure:"medium_threshold" json:"medium_threshold"`
}

func DefaultWeights() Weights {
	return Weights{
		Base:            50,
		NAICS:           20,
		Certification:   15,
		Provenance:      10,
		HighThreshold:   80,
		MediumThreshold: 60,
	}
}

// certificationKeywords expands a profile certification into the terms listings use for it.
var certificationKeywords = map[string][]string{
	"minority":       {"minority", "mbe"},
	"women":          {"women", "wbe", "wosb"},
	"veteran":        {"veteran", "vosb", "sdvosb", "dvbe", "service-disabled"},
	"disadvantaged":  {"disadvantaged", "dbe", "8(a)"},
	"small business": {"small business", "sbe", "sba"},
}

// Scorer rates candidates against a requester profile. It holds no state beyond its
// weights and is safe for concurrent use.
type Scorer struct {
	Weights Weights
}

func NewScorer(w Weights) *Scorer {
	return &Scorer{Weights: w}
}

// Score returns a 0..100 match score and its tier. Each category adds its weight at
// most once.
func (s *Scorer) Score(c models.SearchResult, profile models.RequesterProfile) (int, models.MatchLevel) {
	w := s.Weights
	text := strings.ToLower(strings.Join([]string{
		c.Title, c.Description, c.CommodityDescription, strings.Join(c.SetAsides, " "),
	}, " "))

	score := w.Base
	if matchesNAICS(c, text, profile.NAICSCodes) {
		score += w.NAICS
	}
	if matchesCertification(text, profile.Certifications) {
		score += w.Certification
	}
	if c.FromDatabase {
		score += w.Provenance
	}

	score = max(0, min(100, score))
	return score, s.level(score)
}

func (s *Scorer) level(score int) models.MatchLevel {
	switch {
	case score >= s.Weights.HighThreshold:
		return models.MatchHigh
	case score >= s.Weights.MediumThreshold:
		return models.MatchMedium
	}
	return models.MatchLow
}

// Rank scores every result in place and orders them by score, highest first. Equal
// scores keep their input order.
func (s *Scorer) Rank(results []models.SearchResult, profile models.RequesterProfile) {
	for i := range results {
		results[i].MatchScore, results[i].MatchLevel = s.Score(results[i], profile)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].MatchScore > results[j].MatchScore
	})
}

func matchesNAICS(c models.SearchResult, lowerText string, codes []models.NAICSCode) bool {
	for _, code := range codes {
		needle := strings.ToLower(strings.TrimSpace(code.Code))
		if needle == "" {
			continue
		}
		if strings.Contains(lowerText, needle) || strings.Contains(strings.ToLower(c.CommodityCode), needle) {
			return true
		}
		for _, n := range c.NAICSCodes {
			if strings.Contains(strings.ToLower(n), needle) {
				return true
			}
		}
	}
	return false
}

func matchesCertification(lowerText string, certifications []string) bool {
	for _, cert := range certifications {
		for _, kw := range keywordsFor(cert) {
			if containsWord(lowerText, kw) {
				return true
			}
		}
	}
	return false
}

// containsWord matches kw at word boundaries, so "sbe" does not hit "asbestos". A
// trailing plural "s" or "es" is allowed.
func containsWord(text, kw string) bool {
	for start := 0; start <= len(text)-len(kw); {
		idx := strings.Index(text[start:], kw)
		if idx < 0 {
			return false
		}
		idx += start
		if (idx == 0 || !isWordByte(text[idx-1])) && endsWord(text, idx+len(kw)) {
			return true
		}
		start = idx + 1
	}
	return false
}

func endsWord(text string, end int) bool {
	for _, suffix := range []string{"", "s", "es"} {
		if !strings.HasPrefix(text[end:], suffix) {
			continue
		}
		next := end + len(suffix)
		if next == len(text) || !isWordByte(text[next]) {
			return true
		}
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

// keywordsFor resolves a certification by name or alias. Unknown certifications
// match themselves.
func keywordsFor(cert string) []string {
	c := normalizeCertification(cert)
	if c == "" {
		return nil
	}
	if kws, ok := certificationKeywords[c]; ok {
		return kws
	}
	for _, kws := range certificationKeywords {
		for _, kw := range kws {
			if kw == c {
				return kws
			}
		}
	}
	return []string{c}
}

// normalizeCertification folds "Small_Business" and "women-owned" style tokens onto
// the keys of certificationKeywords.
func normalizeCertification(cert string) string {
	c := strings.ToLower(strings.TrimSpace(cert))
	for _, suffix := range []string{"-owned", "_owned", " owned"} {
		c = strings.TrimSuffix(c, suffix)
	}
	if c != "8(a)" {
		c = strings.NewReplacer("-", " ", "_", " ").Replace(c)
	}
	return strings.Join(strings.Fields(c), " ")
}
