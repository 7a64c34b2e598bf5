package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/allocai/backend/internal/app"
	"github.com/allocai/backend/internal/db"
	"github.com/allocai/backend/internal/service"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Apply or inspect the database schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{db.MigrateUp, db.MigrateDown, db.MigrateVersion},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is not set")
			}
			action := db.MigrateUp
			if len(args) == 1 {
				action = args[0]
			}
			version, err := db.Migrate(cfg.DatabaseURL, action)
			if err != nil {
				return err
			}
			logger.Info().Str("action", action).Uint("version", version).Msg("migrate done")
			if jsonOutput {
				return printJSON(map[string]any{"action": action, "version": version})
			}
			fmt.Printf("schema version %d\n", version)
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo data set",
		Long:  "Creates the admin account, three employees with logins, two projects and three allocations. Existing records are kept.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				summary, err := app.Seed(ctx, a.Store, a.Logger)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(summary)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Users", "Employees", "Projects", "Allocations"})
				tw.AppendRow(table.Row{summary.Users, summary.Employees, summary.Projects, summary.Allocations})
				tw.Render()
				return nil
			})
		},
	}
}

func webhooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhooks",
		Short: "Manage outbound webhook subscriptions",
	}
	cmd.AddCommand(webhooksListCmd())
	cmd.AddCommand(webhooksAddCmd())
	cmd.AddCommand(webhooksRemoveCmd())
	return cmd
}

func webhooksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List webhooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				hooks, err := a.Handler.Webhooks.List(ctx)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(hooks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "URL", "Events", "Active", "OK", "Failed", "Last triggered"})
				for _, h := range hooks {
					last := "-"
					if h.LastTriggered != nil {
						last = h.LastTriggered.Format(time.RFC3339)
					}
					tw.AppendRow(table.Row{h.ID, h.URL, strings.Join(h.Events, ","), h.IsActive, h.SuccessCount, h.FailureCount, last})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func webhooksAddCmd() *cobra.Command {
	var in service.WebhookInput
	var inactive bool
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.URL == "" || in.Secret == "" || len(in.Events) == 0 {
				return errors.New("--url, --secret and at least one --event are required")
			}
			if inactive {
				active := false
				in.IsActive = &active
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				hook, err := a.Handler.Webhooks.Create(ctx, in)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(hook)
				}
				fmt.Printf("webhook %s registered for %s\n", hook.ID, strings.Join(hook.Events, ","))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.URL, "url", "", "receiver URL")
	cmd.Flags().StringVar(&in.Secret, "secret", "", "value sent in the X-Webhook-Secret header")
	cmd.Flags().StringSliceVar(&in.Events, "event", nil, "event to subscribe to (repeatable)")
	cmd.Flags().StringVar(&in.Description, "description", "", "free-form description")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "register without delivering")
	return cmd
}

func webhooksRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a webhook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Handler.Webhooks.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("webhook %s deleted\n", args[0])
				return nil
			})
		},
	}
}

func conflictsCmd() *cobra.Command {
	var history bool
	var limit int
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Show current allocation conflicts",
		Long:  "Runs the conflict detector against the current data. With --history, lists persisted conflicts from earlier deep analyses instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				if history {
					list, err := a.Insights.History(ctx, limit)
					if err != nil {
						return err
					}
					if jsonOutput {
						return printJSON(list)
					}
					tw.AppendHeader(table.Row{"Detected", "Type", "Severity", "Status", "Employees", "Allocations"})
					for _, c := range list {
						tw.AppendRow(table.Row{c.DetectedAt.Format(time.DateOnly), c.Type, c.Severity, c.Status,
							strings.Join(c.AffectedEmployees, ","), len(c.AffectedAllocations)})
					}
					tw.Render()
					return nil
				}

				report, err := a.Insights.Conflicts(ctx)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(report)
				}
				tw.AppendHeader(table.Row{"Week", "Type", "Severity", "Employee", "Peak h", "Capacity", "Description"})
				for _, f := range report.Findings {
					tw.AppendRow(table.Row{f.WeekStart.Format(time.DateOnly), f.Type, f.Severity, f.EmployeeName,
						f.PeakHours, f.Capacity, f.Description})
				}
				tw.Render()
				if len(report.Underutilised) > 0 {
					fmt.Printf("%d employee(s) under-utilised this week\n", len(report.Underutilised))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&history, "history", false, "list persisted conflicts")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows with --history")
	return cmd
}
