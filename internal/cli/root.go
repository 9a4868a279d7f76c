package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"options-calculator/internal/config"
	"options-calculator/internal/logging"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-17"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// skipsConfig lists commands that run without loading configuration.
var skipsConfig = map[string]bool{
	"version": true,
	"help":    true,
	"shapes":  true,
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: config.Default(),
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "optcalc",
		Short: "Options strategy calculator and screener",
		Long: `optcalc values single option contracts and multi-leg strategies and
screens an options chain for the best strategy of each shape at a target price.

Use 'optcalc <command> --help' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !skipsConfig[cmd.Name()] {
				configDir, _ := cmd.Flags().GetString("config")
				cfg, err := config.Load(configDir)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				app.Config = cfg
				app.Logger = logging.NewLoggerWithConfig(cfg.LogConfig())
				app.Logger.Debug().Str("dir", cfg.Dir).Msg("Configuration loaded")
			}

			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/options-calculator)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	rootCmd.AddCommand(newContractCmd(app))
	rootCmd.AddCommand(newChainCmd(app))
	rootCmd.AddCommand(newStrategyCmd(app))
	rootCmd.AddCommand(newScreenCmd(app))
	rootCmd.AddCommand(newShapesCmd(app))

	return rootCmd
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("optcalc v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.newOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.newOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": app.Config.Dir})
			}
			output.Println(app.Config.Dir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.newOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Chain")
	output.Printf("  Backend:         %s\n", cfg.Chain.Backend)
	output.Printf("  Symbol:          %s\n", cfg.Chain.Symbol)
	output.Printf("  Min Volume:      %d\n", cfg.Chain.MinVolume)
	output.Printf("  Min Bid/Ask:     %.2f / %.2f\n", cfg.Chain.MinBid, cfg.Chain.MinAsk)
	output.Println()

	output.Bold("Screener")
	output.Printf("  Target Days:     %d\n", cfg.Screener.TargetDays)
	output.Printf("  Top Only:        %v\n", cfg.Screener.TopOnly)
	output.Printf("  Workers:         %d\n", cfg.Screener.Workers)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:           %s\n", cfg.Logging.Level)
	output.Printf("  Console:         %v\n", cfg.Logging.Console)
	output.Printf("  File:            %v (%s)\n", cfg.Logging.File, cfg.Logging.FilePath)
}
