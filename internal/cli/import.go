package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/david/govmatch/internal/ingest"
)

func newImportCmd(e *env) *cobra.Command {
	var source, file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a delimited export file for a source",
		Long: `Import reads a delimited export and makes it the current listing for the
source: rows are upserted and every other active record of the source is
deactivated. Use --file - to read standard input.`,
		Example: "  catalogctl import --source la_county --file bids.csv",
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("open export: %w", err)
				}
				defer f.Close()
				r = f
			}
			res, err := e.app.Importer.Import(cmd.Context(), source, r)
			if err != nil {
				return err
			}
			printImportResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "source id (see `catalogctl sources`)")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "export file, - for stdin")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func newFetchCmd(e *env) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download a source's registry feed and import it",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := e.app.Importer.ImportFromFeed(cmd.Context(), source)
			if err != nil {
				return err
			}
			printImportResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "registry source id")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func printImportResult(w io.Writer, res *ingest.ImportResult) {
	t := newTable(w, table.Row{"Source", "Imported", "Deactivated", "Rows Read", "Dropped", "Derived IDs", "Run"})
	t.AppendRow(table.Row{res.Source, res.Imported, res.Deactivated, res.RowsRead, res.RowsDropped, res.DerivedIDs, res.RunID})
	t.Render()
}
