package cli

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/david/govmatch/internal/models"
)

func newSourcesCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List registry sources and what the catalog holds for each",
		RunE: func(cmd *cobra.Command, args []string) error {
			summaries, err := e.app.Store.ListSources(cmd.Context())
			if err != nil {
				return err
			}
			bySource := make(map[string]models.SourceSummary, len(summaries))
			for _, s := range summaries {
				bySource[s.Source] = s
			}

			t := newTable(cmd.OutOrStdout(), table.Row{"ID", "Format", "Kind", "Feed", "Scheduled", "Active", "Total"})
			for _, src := range e.app.Registry.Sources {
				sum := bySource[src.ID]
				t.AppendRow(table.Row{src.ID, src.SourceFormat(), src.SourceKind(), src.FeedURL != "", src.ScheduleEnabled, sum.Active, sum.Total})
			}
			t.Render()
			return nil
		},
	}
}

func newScheduleCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run one pass of the scheduled feed imports",
		RunE: func(cmd *cobra.Command, args []string) error {
			results := e.app.Scheduler.RunOnce(cmd.Context())

			t := newTable(cmd.OutOrStdout(), table.Row{"Source", "Result"})
			for _, src := range e.app.Registry.Scheduled() {
				outcome := "ok"
				if err := results[src.ID]; err != nil {
					outcome = err.Error()
				}
				t.AppendRow(table.Row{src.ID, outcome})
			}
			t.Render()
			return nil
		},
	}
}
