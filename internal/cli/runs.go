package cli

import (
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newRunsCmd(e *env) *cobra.Command {
	var (
		source string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent import runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := e.app.Store.ListRuns(cmd.Context(), source, limit)
			if err != nil {
				return err
			}

			t := newTable(cmd.OutOrStdout(), table.Row{"Source", "Trigger", "Status", "Read", "Imported", "Deactivated", "Duration", "Started At", "Error"})
			for _, r := range runs {
				duration := "Running..."
				if r.FinishedAt != nil {
					duration = r.Duration().Round(time.Millisecond).String()
				}
				t.AppendRow(table.Row{r.Source, r.Trigger, r.Status, r.RowsRead, r.Imported, r.Deactivated, duration, r.StartedAt.Format(time.DateTime), r.Error})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "only runs of this source")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show")
	return cmd
}
