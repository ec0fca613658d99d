package cli

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/david/govmatch/internal/models"
	"github.com/david/govmatch/internal/search"
)

func newSearchCmd(e *env) *cobra.Command {
	var (
		preference     string
		city           string
		county         string
		state          string
		naics          []string
		certifications []string
		sources        []string
		includeWeb     bool
	)
	cmd := &cobra.Command{
		Use:     "search QUERY",
		Short:   "Search the catalog (and the web fallback) like the API does",
		Args:    cobra.MinimumNArgs(1),
		Example: `  catalogctl search "mental health" --naics 624190 --preference county --county "Los Angeles" --state CA`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := search.Request{
				Query:                strings.Join(args, " "),
				GeographicPreference: models.GeographicPreference(preference),
				SourceFilter:         sources,
				IncludeWeb:           includeWeb,
				Profile:              models.RequesterProfile{Certifications: certifications},
			}
			if city != "" || county != "" || state != "" {
				req.Location = &models.Location{City: city, County: county, State: state}
			}
			for _, code := range naics {
				req.Profile.NAICSCodes = append(req.Profile.NAICSCodes, models.NAICSCode{Code: code})
			}

			resp, err := e.app.Search.Search(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d result(s) via %s\n", resp.Count, resp.SearchMethod)
			t := newTable(out, table.Row{"Score", "Level", "Title", "Agency", "Due", "Source"})
			t.SetColumnConfigs([]table.ColumnConfig{{Number: 3, WidthMax: 60, WidthMaxEnforcer: text.WrapSoft}})
			for _, r := range resp.Opportunities {
				t.AppendRow(table.Row{r.MatchScore, r.MatchLevel, r.Title, r.Agency, dueLabel(r), r.Source})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVarP(&preference, "preference", "p", "", "federal, state, county, local or unspecified")
	cmd.Flags().StringVar(&city, "city", "", "requester city")
	cmd.Flags().StringVar(&county, "county", "", "requester county")
	cmd.Flags().StringVar(&state, "state", "", "requester state")
	cmd.Flags().StringSliceVar(&naics, "naics", nil, "requester NAICS codes")
	cmd.Flags().StringSliceVar(&certifications, "cert", nil, "requester certifications (minority, women, veteran, ...)")
	cmd.Flags().StringSliceVar(&sources, "source", nil, "restrict to these source ids")
	cmd.Flags().BoolVar(&includeWeb, "web", false, "also run the web search and blend results")
	return cmd
}

func dueLabel(r models.SearchResult) string {
	switch {
	case r.DueDate != nil:
		return r.DueDate.Format("2006-01-02 15:04")
	case r.IsContinuous:
		return "continuous"
	}
	return "not specified"
}
