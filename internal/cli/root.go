// Package cli implements the deidentifier command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"dicom-deidentifier/internal/config"
	"dicom-deidentifier/internal/identity"
	"dicom-deidentifier/internal/idtable"
	"dicom-deidentifier/internal/logging"
)

// app holds what every subcommand needs. Both stores are opened once before
// the subcommand runs and closed when the command tree returns.
type app struct {
	configFile string
	dbDir      string
	logLevel   string

	cfg      *config.Config
	log      *logging.Logger
	registry *prometheus.Registry
	table    *idtable.Table
	index    *identity.Index
}

// Execute runs the command tree with the process arguments.
func Execute(ctx context.Context) error {
	return run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	defer a.close()

	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "deidentifier",
		Short: "De-identify DICOM objects and keep the re-identification index",
		Long: `deidentifier assigns stable surrogate integers to identifying values,
writes anonymized copies of DICOM objects and records the correspondence
between original and anonymized identities in a local index.

The index and the integer table live under the database directory. Keep
them private: anyone holding them can re-identify the submitted data.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", config.DefaultFile, "properties file")
	root.PersistentFlags().StringVar(&a.dbDir, "db", "", "database directory (overrides databaseDir)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (overrides logLevel)")

	root.AddCommand(
		a.integerCommand(),
		a.skipRangeCommand(),
		a.tableCommand(),
		a.indexCommand(),
		a.anonymizeCommand(),
		a.reportCommand(),
	)
	return root
}

func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	if a.dbDir != "" {
		cfg.DatabaseDir = a.dbDir
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg

	a.log, err = logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.ErrorLog)
	if err != nil {
		return err
	}

	a.registry = prometheus.NewRegistry()
	a.table, err = idtable.Open(cfg.DatabaseDir,
		idtable.WithLogger(a.log.Logger),
		idtable.WithRegisterer(a.registry))
	if err != nil {
		return fmt.Errorf("open integer table: %w", err)
	}
	a.index, err = identity.Open(cfg.DatabaseDir, a.log.Logger)
	if err != nil {
		return fmt.Errorf("open identity index: %w", err)
	}

	// A bad range is reported and left in the properties file; the run goes on.
	_ = cfg.InstallIntegerRange(a.table, a.log.Logger)
	return nil
}

func (a *app) close() {
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.log.Error().Err(err).Msg("closing identity index")
		}
	}
	if a.table != nil {
		if err := a.table.Close(); err != nil {
			a.log.Error().Err(err).Msg("closing integer table")
		}
	}
	if a.log != nil {
		_ = a.log.Close()
	}
}
