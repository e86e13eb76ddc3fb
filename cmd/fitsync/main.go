// Command fitsync runs VitalSync operations once from the command line.
//
// Usage:
//
//	fitsync sync
//	fitsync sweep
//	fitsync members
//	fitsync auth status mom
//	fitsync history mom --period month --xlsx mom-month.xlsx
//	fitsync roster load family.yaml
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/vitalsync/internal/app"
	"github.com/albapepper/vitalsync/internal/config"
	"github.com/albapepper/vitalsync/internal/provider"
	"github.com/albapepper/vitalsync/internal/report"
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:          "fitsync",
		Short:        "VitalSync one-shot operations",
		SilenceUsage: true,
	}

	root.AddCommand(syncCmd())
	root.AddCommand(sweepCmd())
	root.AddCommand(membersCmd())
	root.AddCommand(authCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(rosterCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// passes
// --------------------------------------------------------------------------

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass: fetch, store, evaluate and alert",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(nil, func(ctx context.Context, a *app.App) error {
				result := a.Monitor.RunSyncPass(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), result.Summary())
				for _, e := range result.Errors {
					a.Logger.Error("sync error", "error", e)
				}
				return nil
			})
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Evaluate every stored reading and alert",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(nil, func(ctx context.Context, a *app.App) error {
				result := a.Monitor.RunAlertSweep(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), result.Summary())
				for _, e := range result.Errors {
					a.Logger.Error("sweep error", "error", e)
				}
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// reads
// --------------------------------------------------------------------------

func membersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "members",
		Short: "List members with their token status and last sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(nil, func(ctx context.Context, a *app.App) error {
				members, err := a.Monitor.ListMembers(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tTOKEN\tLAST SYNC")
				for _, m := range members {
					lastSync := "-"
					if m.LastSync != nil {
						lastSync = m.LastSync.Local().Format("2006-01-02 15:04")
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", m.ID, m.Name, m.Email, m.TokenStatus, lastSync)
				}
				return tw.Flush()
			})
		},
	}
}

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Inspect member authorization",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status <member-id>",
		Short: "Report whether a member must re-authorize (renews a stale token)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(nil, func(ctx context.Context, a *app.App) error {
				if a.Monitor.NeedsReauthentication(ctx, args[0]) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: needs re-authorization\n", args[0])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: active\n", args[0])
				return nil
			})
		},
	})
	return cmd
}

func historyCmd() *cobra.Command {
	var period, xlsxPath string
	cmd := &cobra.Command{
		Use:   "history <member-id>",
		Short: "Print a member's historical series, or write it as XLSX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := provider.ParsePeriod(period)
			if err != nil {
				return err
			}
			return withApp(nil, func(ctx context.Context, a *app.App) error {
				series, err := a.Monitor.GetHistoricalSeries(ctx, args[0], p)
				if err != nil {
					return err
				}
				if series.Source != provider.SourceProvider {
					a.Logger.Warn("Series is synthetic", "member_id", args[0])
				}
				if xlsxPath == "" {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(series.Columns())
				}
				data, err := report.SeriesXLSX(series)
				if err != nil {
					return err
				}
				if err := os.WriteFile(xlsxPath, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", xlsxPath, err)
				}
				a.Logger.Info("Workbook written", "path", xlsxPath, "days", len(series.Days), "source", series.Source)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&period, "period", string(provider.PeriodWeek), "Period: week, month or year")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Write an XLSX workbook to this path")
	return cmd
}

// --------------------------------------------------------------------------
// roster
// --------------------------------------------------------------------------

func rosterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Manage the member roster",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "load <file>",
		Short: "Add members from a YAML roster (existing members are kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			override := func(cfg *config.Config) { cfg.RosterFile = args[0] }
			return withApp(override, func(ctx context.Context, a *app.App) error {
				members, err := a.Monitor.ListMembers(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d members in store\n", len(members))
				return nil
			})
		},
	})
	return cmd
}

// withApp loads configuration, wires the app and runs fn with a context
// cancelled on interrupt.
func withApp(override func(*config.Config), fn func(ctx context.Context, a *app.App) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if override != nil {
		override(cfg)
	}

	a, err := app.New(ctx, cfg, app.NewLogger(cfg))
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}
