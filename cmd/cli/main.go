package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/mvandermeer/rosterd/internal/config"
	"github.com/mvandermeer/rosterd/pkg/core/model"
	"github.com/mvandermeer/rosterd/pkg/core/services"
	"github.com/mvandermeer/rosterd/pkg/postgres"
	"github.com/mvandermeer/rosterd/pkg/utils/logging"
)

// App holds the application dependencies
type App struct {
	cfg      *config.Config
	database *postgres.DB
	logger   *zap.Logger
	ctx      context.Context
}

var (
	env string
	app *App
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rosterd",
		Short: "rosterd - generate on-call and incident shift rosters",
		Long:  `A CLI tool for generating fair, deterministic on-call and incident-response rosters over long planning horizons.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil && app.logger != nil {
				app.logger.Sync()
			}
			if app != nil && app.database != nil {
				app.database.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.MarkPersistentFlagRequired("env")

	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(employeesCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(interactiveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config, and database
func initApp() error {
	var err error
	app = &App{
		ctx: context.Background(),
	}

	app.logger, err = logging.InitLogger(env)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.logger.Info("Starting application", zap.String("environment", env))

	app.cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.logger.Debug("Configuration loaded successfully", zap.String("timezone", app.cfg.Timezone))

	app.database, err = postgres.NewDB(app.ctx, app.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.logger.Info("Database connection established")

	return nil
}

func parseFamily(s string) (model.ShiftFamily, error) {
	family := model.ShiftFamily(s)
	if !family.IsValid() {
		return "", fmt.Errorf("unknown shift family %q (expected incidents, incidents_standby, or oncall)", s)
	}
	return family, nil
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate assignments for a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			fromStr, _ := cmd.Flags().GetString("from")
			toStr, _ := cmd.Flags().GetString("to")
			familyStrs, _ := cmd.Flags().GetStringSlice("family")
			teamID, _ := cmd.Flags().GetString("team")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			from, err := time.Parse("2006-01-02", fromStr)
			if err != nil {
				return fmt.Errorf("invalid --from date: %w", err)
			}
			to, err := time.Parse("2006-01-02", toStr)
			if err != nil {
				return fmt.Errorf("invalid --to date: %w", err)
			}

			var families []model.ShiftFamily
			for _, s := range familyStrs {
				family, err := parseFamily(s)
				if err != nil {
					return err
				}
				families = append(families, family)
			}

			result, err := services.Generate(app.ctx, app.database, app.cfg, app.logger, services.GenerateOptions{
				Families: families,
				From:     from,
				To:       to,
				TeamID:   teamID,
				DryRun:   dryRun,
			})
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Printf("\nDRY RUN - nothing persisted\n")
			}
			fmt.Printf("\nGenerated %d assignments across %d employees\n\n", result.TotalShifts, result.EmployeesAssigned)
			for _, a := range result.Assignments {
				fmt.Printf("  %s  %-18s %-12s %.0fh  %s\n",
					a.Start.Format("2006-01-02"), a.Family, a.EmployeeID, a.DurationHours, a.Reason)
			}
			printIssues(result.Errors, result.Warnings)
			return nil
		},
	}

	cmd.Flags().String("from", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "End date (YYYY-MM-DD)")
	cmd.Flags().StringSlice("family", nil, "Shift families to generate (default: all configured)")
	cmd.Flags().String("team", "", "Restrict to one team")
	cmd.Flags().Bool("dry-run", false, "Run without saving to database")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")

	return cmd
}

func previewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Preview the next period's assignments for one family",
		RunE: func(cmd *cobra.Command, args []string) error {
			familyStr, _ := cmd.Flags().GetString("family")
			dateStr, _ := cmd.Flags().GetString("date")

			family, err := parseFamily(familyStr)
			if err != nil {
				return err
			}

			reference := time.Now()
			if dateStr != "" {
				reference, err = time.Parse("2006-01-02", dateStr)
				if err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
			}

			result, err := services.PreviewNextPeriod(app.ctx, app.database, app.cfg, app.logger, family, reference)
			if err != nil {
				return err
			}

			fmt.Printf("\nUpcoming period %s (%s to %s):\n\n",
				result.Period.Label,
				result.Period.Start.Format("2006-01-02 15:04"),
				result.Period.End.Format("2006-01-02 15:04"))
			for _, a := range result.Assignments {
				fmt.Printf("  %s  %-12s %.0fh  %s\n",
					a.Start.Format("2006-01-02"), a.EmployeeID, a.DurationHours, a.Reason)
			}
			printIssues(result.Errors, result.Warnings)
			return nil
		},
	}

	cmd.Flags().String("family", "", "Shift family (incidents, incidents_standby, oncall)")
	cmd.Flags().String("date", "", "Reference date (YYYY-MM-DD, default today)")
	cmd.MarkFlagRequired("family")

	return cmd
}

func employeesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "employees",
		Short: "List eligible employees for a shift family",
		RunE: func(cmd *cobra.Command, args []string) error {
			familyStr, _ := cmd.Flags().GetString("family")
			teamID, _ := cmd.Flags().GetString("team")

			family, err := parseFamily(familyStr)
			if err != nil {
				return err
			}

			employees, err := app.database.ListEligibleEmployees(app.ctx, family, teamID)
			if err != nil {
				return fmt.Errorf("failed to list employees: %w", err)
			}

			fmt.Printf("\nFound %d eligible employees for %s:\n\n", len(employees), family)
			for _, e := range employees {
				fmt.Printf("- %s %s (%s) - %s\n", e.FirstName, e.LastName, e.ID, e.Email)
			}
			return nil
		},
	}

	cmd.Flags().String("family", "", "Shift family (incidents, incidents_standby, oncall)")
	cmd.Flags().String("team", "", "Restrict to one team")
	cmd.MarkFlagRequired("family")

	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.database.RunMigrations(app.ctx); err != nil {
				return fmt.Errorf("migrations failed: %w", err)
			}
			fmt.Println("Migrations applied")
			return nil
		},
	}
}

func printIssues(errors, warnings []string) {
	if len(errors) > 0 {
		fmt.Printf("\nErrors:\n")
		for _, e := range errors {
			fmt.Printf("  ! %s\n", e)
		}
	}
	if len(warnings) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}
}

func interactiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interactive",
		Short: "Start an interactive session (connect once, run multiple commands)",
		Long: `Start an interactive session where you can run multiple commands without reconnecting.
The session will keep running until you type 'exit' or 'quit'.

Type 'help' to see available commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("\nStarting interactive session...")
			fmt.Println("Type 'help' for available commands, 'exit' or 'quit' to leave")

			rootCmd := cmd.Parent()
			commands := make(map[string]*cobra.Command)
			for _, subCmd := range rootCmd.Commands() {
				if subCmd.Name() != "interactive" && subCmd.Name() != "completion" && subCmd.Name() != "help" {
					commands[subCmd.Name()] = subCmd
				}
			}

			scanner := bufio.NewScanner(os.Stdin)

			for {
				fmt.Print("> ")

				if !scanner.Scan() {
					break
				}

				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}

				parts := strings.Fields(line)
				cmdName := parts[0]
				cmdArgs := parts[1:]

				if cmdName == "exit" || cmdName == "quit" {
					fmt.Println("Goodbye!")
					return nil
				}

				if cmdName == "help" {
					printInteractiveHelp(commands)
					continue
				}

				targetCmd, exists := commands[cmdName]
				if !exists {
					fmt.Printf("Unknown command: %s (type 'help' for available commands)\n\n", cmdName)
					continue
				}

				// Reset flags before re-running; a previous invocation may
				// have left values behind.
				targetCmd.Flags().VisitAll(func(flag *pflag.Flag) {
					flag.Changed = false
					flag.Value.Set(flag.DefValue)
				})

				// Execute the RunE directly, bypassing Execute() so
				// PersistentPreRunE does not reconnect every time.
				if err := targetCmd.ParseFlags(cmdArgs); err != nil {
					fmt.Printf("Error parsing flags: %v\n\n", err)
					continue
				}

				cmdArgs = targetCmd.Flags().Args()

				if err := targetCmd.Args(targetCmd, cmdArgs); err != nil {
					fmt.Printf("Error: %v\n\n", err)
					continue
				}

				if targetCmd.RunE != nil {
					if err := targetCmd.RunE(targetCmd, cmdArgs); err != nil {
						fmt.Printf("Error: %v\n\n", err)
					}
				} else if targetCmd.Run != nil {
					targetCmd.Run(targetCmd, cmdArgs)
				}
			}

			if err := scanner.Err(); err != nil {
				return fmt.Errorf("error reading input: %w", err)
			}

			return nil
		},
	}

	return cmd
}

func printInteractiveHelp(commands map[string]*cobra.Command) {
	fmt.Println("\nAvailable commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}

	for _, name := range names {
		cmd := commands[name]
		fmt.Printf("  %-30s %s\n", cmd.Use, cmd.Short)
	}

	fmt.Println("\n  help                           Show this help message")
	fmt.Println("  exit, quit                     Exit the interactive session")
}
