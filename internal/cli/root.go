package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/david/govmatch/internal/app"
	"github.com/david/govmatch/internal/config"
	"github.com/david/govmatch/internal/logger"
)

// env is what every subcommand runs against. It is built once per invocation in the
// root command's pre-run hook.
type env struct {
	cfgFile string
	quiet   bool
	app     *app.App
	log     *logger.Logger
}

// newRootCmd builds the catalogctl command tree around e.
func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "catalogctl",
		Short: "govmatch catalog operations",
		Long: `catalogctl imports portal exports into the opportunity catalog, inspects
import history and runs searches against the catalog from the command line.

Configuration hierarchy (highest to lowest priority):
1. Environment variables (GOVMATCH_*, DATABASE_URL, OPENAI_API_KEY, ...)
2. Config file (--config, $GOVMATCH_CONFIG or ./govmatch.yaml)
3. Defaults`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.setup(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&e.cfgFile, "config", "", "config file (default: $GOVMATCH_CONFIG or ./govmatch.yaml)")
	root.PersistentFlags().BoolVarP(&e.quiet, "quiet", "q", false, "suppress service logs")

	root.AddCommand(
		newImportCmd(e),
		newFetchCmd(e),
		newRunsCmd(e),
		newSearchCmd(e),
		newSourcesCmd(e),
		newScheduleCmd(e),
	)
	return root
}

// Execute runs catalogctl with the process arguments.
func Execute(ctx context.Context) error {
	e := &env{}
	return execute(ctx, e, newRootCmd(e))
}

// execute releases the app after root returns. cobra skips post-run hooks when a
// command fails, so this cannot live in PersistentPostRun.
func execute(ctx context.Context, e *env, root *cobra.Command) error {
	defer e.close()
	return root.ExecuteContext(ctx)
}

func (e *env) setup(ctx context.Context) error {
	cfg, err := config.Load(e.cfgFile)
	if err != nil {
		return err
	}
	if e.quiet {
		e.log = logger.Nop()
	} else {
		if e.log, err = logger.New(cfg.Log.Mode); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	e.app, err = app.New(ctx, cfg, e.log)
	return err
}

func (e *env) close() {
	if e.app != nil {
		e.app.Close()
		e.app = nil
	}
	if e.log != nil {
		e.log.Sync()
		e.log = nil
	}
}

func newTable(w io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(header)
	return t
}
