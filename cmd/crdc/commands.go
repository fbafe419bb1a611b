package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/David-Botos/crdc-reconcile/pkg/cleaner"
	"github.com/David-Botos/crdc-reconcile/pkg/config"
	"github.com/David-Botos/crdc-reconcile/pkg/reconcile"
	"github.com/David-Botos/crdc-reconcile/pkg/source"
	"github.com/David-Botos/crdc-reconcile/pkg/stats"
)

func newCountyStatsCmd(flags *rootFlags) *cobra.Command {
	var (
		where   string
		audit   bool
		metrics bool
	)

	cmd := &cobra.Command{
		Use:   "county-stats",
		Short: "Aggregate district estimates into county poverty statistics",
		Long: `Maps each LEA to its county, joins the SAIPE district rows on the 5-digit
district code and reports per-county totals sorted by pct_poverty_5_17, highest first.

Example:
  crdc county-stats --join inner --nulls last
  crdc county-stats --where 'pct_poverty_5_17 != nil && pct_poverty_5_17 > 30'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.close()

			var options []reconcile.EngineOption
			if where != "" {
				w, err := reconcile.CompileWhere(where)
				if err != nil {
					return err
				}
				options = append(options, reconcile.WithWhere(w))
			}
			if audit {
				dc, err := auditCleaner(cmd, a)
				if err != nil {
					return err
				}
				options = append(options, reconcile.WithCleaner(dc))
			}

			engine, err := a.engine(options...)
			if err != nil {
				return err
			}
			report, err := engine.CountyPovertyStats(cmd.Context())
			if err != nil {
				return err
			}
			a.logger.Debug("county-stats finished",
				zap.Int("rows_read", report.Metrics.RowsRead()),
				zap.Duration("duration", report.Metrics.Duration()))

			if err := a.out.CountyStats(report.Rows); err != nil {
				return err
			}
			if metrics {
				return a.out.Metrics(report.Metrics)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&where, "where", "", "keep only county rows matching this expression")
	cmd.Flags().BoolVar(&audit, "audit", false, "record filtered rows in AUDIT_TABLE (PostgreSQL only)")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "print run metrics after the result set")
	return cmd
}

func auditCleaner(cmd *cobra.Command, a *app) (*cleaner.DataCleaner, error) {
	if a.conn == nil || a.cfg.SourceKind != config.SourcePostgres {
		return nil, errors.New("--audit requires SOURCE_KIND=postgres")
	}
	dc, err := cleaner.NewDataCleaner(a.logger.Named("cleaner"))
	if err != nil {
		return nil, err
	}
	if err := dc.WithAudit(cmd.Context(), a.conn, a.cfg.AuditTable); err != nil {
		return nil, err
	}
	return dc, nil
}

func newLookupCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup",
		Short: "List every LEA with its county, or nulls when no geocode row matches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.close()

			engine, err := a.engine()
			if err != nil {
				return err
			}
			report, err := engine.LookupLEAs(cmd.Context())
			if err != nil {
				return err
			}
			return a.out.Lookups(report.Rows)
		},
	}
}

func newCoverageCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "coverage",
		Short: "Report how many LEAs resolve to a geocode row",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.close()

			engine, err := a.engine()
			if err != nil {
				return err
			}
			report, err := engine.LookupLEAs(cmd.Context())
			if err != nil {
				return err
			}
			return a.out.Coverage(report.Coverage)
		},
	}
}

func newDistributionCmd(flags *rootFlags) *cobra.Command {
	var bins int

	cmd := &cobra.Command{
		Use:   "distribution",
		Short: "Summarise the distribution of county poverty rates",
		Long: `Computes quartiles, mean, standard deviation and an equal-width histogram of
pct_poverty_5_17 across counties. Counties with an undefined rate are counted
separately instead of being treated as zero.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.close()

			engine, err := a.engine()
			if err != nil {
				return err
			}
			report, err := engine.CountyPovertyStats(cmd.Context())
			if err != nil {
				return err
			}
			return a.out.Distribution(stats.Summarize(report.Rows, bins))
		},
	}

	cmd.Flags().IntVar(&bins, "bins", stats.DefaultBins, "number of histogram bins")
	return cmd
}

func newVerifyCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Compare in-process results with the same reconciliation run in PostgreSQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.close()

			pushdown, err := a.pushdown()
			if err != nil {
				return err
			}
			engine, err := a.engine()
			if err != nil {
				return err
			}
			verifier := reconcile.NewVerifier(engine, pushdown, a.logger).WithTimeout(a.cfg.QueryTimeout)

			county, err := verifier.VerifyCountyStats(cmd.Context())
			if err != nil {
				return err
			}
			lookup, err := verifier.VerifyLookup(cmd.Context())
			if err != nil {
				return err
			}

			for _, rep := range []*reconcile.VerificationReport{county, lookup} {
				if err := a.out.Verification(rep); err != nil {
					return err
				}
			}
			if !county.OK() || !lookup.OK() {
				return errors.New("verification found differences")
			}
			return nil
		},
	}
}

func newQueryCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "query {county-stats|lookup}",
		Short:     "Print the PostgreSQL query that computes a result set in the database",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"county-stats", "lookup"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			opts, err := reconcile.ParseOptions(cfg.Reconcile)
			if err != nil {
				return err
			}

			var name string
			switch args[0] {
			case "county-stats":
				name = "county_poverty_stats.sql.tmpl"
			case "lookup":
				name = "lea_lookup.sql.tmpl"
			default:
				return fmt.Errorf("unknown query %q", args[0])
			}

			query, err := source.RenderQuery(name, source.TablesFromConfig(cfg.Tables), opts.Pushdown())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), query)
			return err
		},
	}
}
