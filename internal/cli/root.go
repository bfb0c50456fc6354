package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/existflow/ironboard/internal/config"
	"github.com/existflow/ironboard/internal/logger"
)

var (
	logLevel   string
	logFile    string
	logConsole bool

	userID    string
	userEmail string
	userName  string
	serverURL string

	boardFlag string
)

// Set up by the root command before any subcommand runs
var (
	cfg    *config.Config
	appLog *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ironboard",
	Short: "ironboard - collaborative task boards in the terminal",
	Long: `ironboard keeps task boards shared between an owner and collaborators.
Tasks move through Backlog, Ready, In Progress, Review, QA and Done, and
backlog tasks are grouped by category.

Run 'ironboard' without arguments to watch the current board live.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir, err := config.Dir()
		if err != nil {
			return fmt.Errorf("failed to locate config directory: %w", err)
		}

		// Load config from file (or defaults if not exists)
		cfg, err = config.LoadFrom(dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v, using defaults\n", err)
			cfg = config.DefaultConfig(dir)
		}

		// Override with CLI flags if provided
		configChanged := false
		flags := cmd.Flags()
		if flags.Changed("log-level") {
			cfg.LogLevel = logLevel
			configChanged = true
		}
		if flags.Changed("log-file") {
			cfg.LogFile = logFile
			configChanged = true
		}
		if flags.Changed("log-console") {
			cfg.LogConsole = logConsole
			configChanged = true
		}
		if flags.Changed("user") {
			cfg.User.ID = userID
			configChanged = true
		}
		if flags.Changed("email") {
			cfg.User.Email = userEmail
			configChanged = true
		}
		if flags.Changed("name") {
			cfg.User.Name = userName
			configChanged = true
		}
		if flags.Changed("server") {
			cfg.ServerURL = serverURL
			configChanged = true
		}

		// Save config if changed via CLI flags
		if configChanged {
			if err := cfg.Save(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to save config: %v\n", err)
			}
		}

		appLog, err = logger.New(cfg.Logger())
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		appLog.Info("ironboard started", logger.F("command", cmd.CommandPath()))
		return nil
	},

	RunE: runWatch,

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		appLog.Info("ironboard exiting", logger.F("command", cmd.CommandPath()))
		appLog.Close()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file")
	rootCmd.PersistentFlags().BoolVar(&logConsole, "log-console", false, "Enable console logging")

	// Identity and store flags, saved to the config like the logging flags
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "User id to act as")
	rootCmd.PersistentFlags().StringVar(&userEmail, "email", "", "Email of the acting user")
	rootCmd.PersistentFlags().StringVar(&userName, "name", "", "Display name of the acting user")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Server URL; empty uses the local database")

	rootCmd.PersistentFlags().StringVarP(&boardFlag, "board", "b", "", "Board to work on (id, id prefix or name)")

	// Add subcommands
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(categoryCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(watchCmd)
}
