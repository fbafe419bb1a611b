// Command crdc reconciles CRDC LEA records with county geocodes and reports
// county poverty statistics from the SAIPE school district estimates.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// flags shared by every subcommand
type rootFlags struct {
	envFile  string
	format   string
	join     string
	sentinel string
	nulls    string
	keyScope string
	logLevel string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "crdc",
		Short: "Reconcile CRDC LEAs with counties and report county poverty statistics",
		Long: `crdc joins the CRDC LEA characteristics table to the LEA geocode table,
maps each LEA to its county, and aggregates SAIPE school district estimates
into per-county totals and the percentage of children aged 5-17 in poverty.

Tables are read from PostgreSQL, Snowflake, a SQLite snapshot or CSV exports,
selected with SOURCE_KIND. Settings come from the environment or a .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.envFile, "env-file", ".env", "environment file to load when present")
	pf.StringVarP(&flags.format, "format", "f", "table", "output format: table, csv or json")
	pf.StringVar(&flags.join, "join", "", "county join mode: left or inner (default JOIN_MODE or left)")
	pf.StringVar(&flags.sentinel, "sentinel", "", "missing count policy: exclude or pass_through (default SENTINEL_POLICY or exclude)")
	pf.StringVar(&flags.nulls, "nulls", "", "null percentage placement: first or last (default NULLS_ORDER or first)")
	pf.StringVar(&flags.keyScope, "key-scope", "", "district join key: district or state_district (default KEY_SCOPE or district)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (default LOG_LEVEL or info)")

	root.AddCommand(
		newCountyStatsCmd(flags),
		newLookupCmd(flags),
		newCoverageCmd(flags),
		newDistributionCmd(flags),
		newVerifyCmd(flags),
		newQueryCmd(flags),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
