package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/leaveledger/internal/adapter/http/dto"
	"github.com/iho/leaveledger/internal/infrastructure/postgres"
)

type options struct {
	baseURL     string
	timeout     time.Duration
	employeeID  string
	databaseURL string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "leaveledger-cli",
		Short:         "LeaveLedger CLI tool",
		Long:          `A command line interface for operating the LeaveLedger API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the LeaveLedger API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&opts.employeeID, "as", "", "Employee id sent as the caller identity")

	rootCmd.AddCommand(
		newLedgerCmd(opts),
		newJobsCmd(opts),
		newDirectoryCmd(opts),
		newCategoriesCmd(opts),
		newBalancesCmd(opts),
		newMigrateCmd(opts),
	)

	return rootCmd
}

func newLedgerCmd(opts *options) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	ledgerCmd.AddCommand(&cobra.Command{
		Use:   "consistency",
		Short: "Check every ledger row against the ledger invariants",
		RunE: func(cmd *cobra.Command, args []string) error {
			var report dto.ConsistencyResponse
			status, err := newClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/ledger/consistency", nil, "", &report)
			if err != nil && status != http.StatusConflict {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Checked %d rows at %s\n", report.RowCount, report.CheckedAt.Format(time.RFC3339))
			if report.Consistent {
				fmt.Fprintln(out, "Consistency check PASSED")
				return nil
			}
			for _, v := range report.Violations {
				fmt.Fprintf(out, "  %s (%s/%s): %s\n", v.LedgerRowID, v.EmployeeID, v.CategoryID, v.Reason)
			}
			return fmt.Errorf("consistency check FAILED: %d violations", len(report.Violations))
		},
	})

	return ledgerCmd
}

func newJobsCmd(opts *options) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Batch job operations",
	}

	jobsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp map[string][]string
			if _, err := newClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/jobs", nil, "", &resp); err != nil {
				return err
			}
			for _, name := range resp["jobs"] {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	})

	jobsCmd.AddCommand(&cobra.Command{
		Use:   "run <name>",
		Short: "Run a job now and print its summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var summary dto.JobSummaryResponse
			if _, err := newClient(opts).do(cmd.Context(), http.MethodPost, "/api/v1/jobs/"+args[0]+"/run", nil, "", &summary); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	})

	return jobsCmd
}

func newDirectoryCmd(opts *options) *cobra.Command {
	directoryCmd := &cobra.Command{
		Use:   "directory",
		Short: "Employee directory operations",
	}

	directoryCmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Reload the employee directory snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := newClient(opts).do(cmd.Context(), http.MethodPost, "/api/v1/directory/refresh", nil, "", nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Directory refreshed")
			return nil
		},
	})

	return directoryCmd
}

func newCategoriesCmd(opts *options) *cobra.Command {
	categoriesCmd := &cobra.Command{
		Use:   "categories",
		Short: "Leave category operations",
	}

	categoriesCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List leave categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.ListCategoriesResponse
			if _, err := newClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/categories/", nil, "", &resp); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-28s %-20s %10s %8s %6s\n", "ID", "NAME", "ANNUAL", "ACCRUAL", "ACTIVE")
			for _, c := range resp.Categories {
				fmt.Fprintf(out, "%-28s %-20s %10s %8s %6t\n",
					c.ID, truncate(c.Name, 20), c.DefaultAnnualAllocation.StringFixed(2), c.AccrualRate.StringFixed(2), c.Active)
			}
			return nil
		},
	})

	var file string
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the categories listed in a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			requests, err := loadSeed(f)
			if err != nil {
				return err
			}
			return seedCategories(cmd.Context(), newClient(opts), cmd.OutOrStdout(), requests)
		},
	}
	seedCmd.Flags().StringVarP(&file, "file", "f", "categories.yaml", "YAML file with the categories to create")
	categoriesCmd.AddCommand(seedCmd)

	return categoriesCmd
}

func newBalancesCmd(opts *options) *cobra.Command {
	balancesCmd := &cobra.Command{
		Use:   "balances",
		Short: "Ledger row operations",
	}

	balancesCmd.AddCommand(&cobra.Command{
		Use:   "show <employee-id>",
		Short: "Show the ledger rows of an employee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.ListBalancesResponse
			if _, err := newClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/employees/"+args[0]+"/balances", nil, "", &resp); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-28s %10s %10s %10s\n", "CATEGORY", "BALANCE", "CARRIED", "EXCESS")
			for _, r := range resp.Balances {
				fmt.Fprintf(out, "%-28s %10s %10s %10s\n",
					r.CategoryID, r.Balance.StringFixed(2), r.CarriedOver.StringFixed(2), r.ExcessDays.StringFixed(2))
			}
			return nil
		},
	})

	balancesCmd.AddCommand(&cobra.Command{
		Use:   "init <employee-id>",
		Short: "Create the missing ledger rows of an employee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.ListBalancesResponse
			if _, err := newClient(opts).do(cmd.Context(), http.MethodPost, "/api/v1/employees/"+args[0]+"/balances", nil, "", &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d rows\n", len(resp.Balances))
			return nil
		},
	})

	return balancesCmd
}

func newMigrateCmd(opts *options) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	migrateCmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")

	logger := func(cmd *cobra.Command) zerolog.Logger {
		return zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).With().Timestamp().Logger()
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.databaseURL == "" {
				return errDatabaseURL
			}
			return postgres.RunMigrations(opts.databaseURL, logger(cmd))
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.databaseURL == "" {
				return errDatabaseURL
			}
			return postgres.RunMigrationsDown(opts.databaseURL, logger(cmd))
		},
	})

	return migrateCmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
