package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Leonid-98/optimize-table/internal/config"
	"github.com/Leonid-98/optimize-table/internal/errors"
	"github.com/Leonid-98/optimize-table/internal/executor"
	"github.com/Leonid-98/optimize-table/internal/inventory"
	"github.com/Leonid-98/optimize-table/internal/logging"
	"github.com/Leonid-98/optimize-table/internal/metrics"
	"github.com/Leonid-98/optimize-table/internal/output"
	"github.com/Leonid-98/optimize-table/internal/progress"
	"github.com/Leonid-98/optimize-table/internal/ssh"
	"github.com/Leonid-98/optimize-table/internal/stats"

	"github.com/spf13/cobra"
)

var (
	// Build-time variables (set via -ldflags)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"

	// Total time is measured from process start
	processStart = time.Now()

	// Global configuration and the file it was read from
	cfg          *config.Config
	configSource string

	// CLI flags
	configFile     string
	serversFile    string
	port           int
	command        string
	connectTimeout time.Duration
	outputMode     string
	quiet          bool
	dryRun         bool
	logLevel       string
	logFormat      string
	showProgress   bool
	showStats      bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "optimize-table [flags] <database> [<database>...]",
	Short: "Optimize MySQL tables across a fleet of servers over SSH",
	Long: `optimize-table connects to every server listed in the inventory, one at a
time, runs the table maintenance script for the given databases, and reports
how many tables were optimized successfully on each server.

The SSH password is read from the 'password' config key or from
OPTIMIZE_TABLE_PASSWORD. Every setting can be overridden with an
OPTIMIZE_TABLE_* environment variable:
  ` + strings.Join(config.GetEnvVarNames(), "\n  ") + `

Examples:
  # Optimize two databases on every server in servers.yml
  optimize-table shop crm

  # Check only, without optimizing
  optimize-table -n shop

  # Use another inventory and emit JSON
  optimize-table --servers /etc/fleet/servers.yml --output json shop`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		var manager *config.ViperManager
		if configFile != "" {
			manager = config.NewManagerWithFile(configFile)
		} else {
			manager = config.NewManager()
		}

		loadedCfg, err := manager.Load()
		if err != nil {
			return errors.NewSetupError("failed to load configuration", err)
		}
		cfg = loadedCfg
		configSource = manager.ConfigFileUsed()

		overrideConfigWithFlags(cmd)

		if err := manager.Validate(cfg); err != nil {
			return errors.NewSetupError("configuration validation failed", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.NewLoggerFromConfig(cfg.LogLevel, cfg.LogFormat, cfg.Quiet)
		if configSource != "" {
			logger.LogConfigLoad(configSource)
		}

		ctx, cancel := signalContext(logger)
		defer cancel()

		factory := ssh.NewFactory(ssh.Options{
			Password:       cfg.Password,
			ConnectTimeout: cfg.ConnectTimeout,
			Logger:         logger,
		})

		return runSurvey(ctx, cfg, args, factory, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "optimize-table %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", commit)
			fmt.Fprintf(cmd.OutOrStdout(), "Built: %s\n", buildTime)
		},
	}
	rootCmd.AddCommand(versionCmd)

	rootCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Check tables without optimizing them")
	rootCmd.Flags().StringVar(&configFile, "config", "", "Path to a config file (default: search ., ~/.config/optimize-table, /etc/optimize-table)")
	rootCmd.Flags().StringVar(&serversFile, "servers", inventory.DefaultPath, "Path to the YAML server inventory")
	rootCmd.Flags().IntVar(&port, "port", 22, "SSH port used for every server")
	rootCmd.Flags().StringVar(&command, "command", "", "Remote command, template name, or inline template")
	rootCmd.Flags().DurationVar(&connectTimeout, "connect-timeout", ssh.DefaultConnectTimeout, "Timeout for the TCP dial and SSH handshake")
	rootCmd.Flags().StringVar(&outputMode, "output", "text", "Report format (text, json, yaml)")
	rootCmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress non-error logs")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (info, error)")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "text", "Log format (json, text)")
	rootCmd.Flags().BoolVar(&showProgress, "progress", false, "Print a progress line on stderr after each server")
	rootCmd.Flags().BoolVar(&showStats, "stats", false, "Print fleet statistics on stderr after the report")
}

func overrideConfigWithFlags(cmd *cobra.Command) {
	// Override configuration with CLI flags if they were explicitly set
	if cmd.Flags().Changed("servers") {
		cfg.Servers = serversFile
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = port
	}
	if cmd.Flags().Changed("command") {
		cfg.Command = command
	}
	if cmd.Flags().Changed("connect-timeout") {
		cfg.ConnectTimeout = connectTimeout
	}
	if cmd.Flags().Changed("output") {
		cfg.Output = outputMode
	}
	if cmd.Flags().Changed("quiet") {
		cfg.Quiet = quiet
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.DryRun = dryRun
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if cmd.Flags().Changed("progress") {
		cfg.ShowProgress = showProgress
	}
	if cmd.Flags().Changed("stats") {
		cfg.ShowStats = showStats
	}
}

// signalContext returns a context canceled on SIGINT or SIGTERM
func signalContext(logger *logging.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Received shutdown signal, recording remaining servers as failed", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// runSurvey loads the inventory, surveys every server, and writes the report
func runSurvey(ctx context.Context, cfg *config.Config, databases []string, factory ssh.Factory,
	logger *logging.Logger, stdout, stderr io.Writer) error {

	mode, err := output.ParseMode(cfg.Output)
	if err != nil {
		logger.LogConfigError("output", err)
		return errors.NewSetupError("invalid output mode", err)
	}

	inv := inventory.NewFileInventory(cfg.Servers, cfg.Port)
	targets, err := inv.LoadTargets()
	if err != nil {
		logger.LogInventoryError(inv.Path(), err)
		return errors.NewSetupError("failed to load server inventory", err)
	}
	logger.LogInventoryLoad(inv.Path(), len(targets))

	exec, err := executor.NewExecutor(executor.ExecutorConfig{
		Command:   cfg.Command,
		Databases: databases,
		DryRun:    cfg.DryRun,
		StartedAt: processStart,
	}, factory, logger)
	if err != nil {
		return err
	}

	errorCollector := errors.NewErrorCollector()
	tracker := progress.NewProgressTracker(len(targets), stderr, cfg.ShowProgress)
	exec.SetObserver(func(sr *metrics.ServerReport) {
		if sr.Failure != nil {
			errorCollector.Add(sr.Failure.Err)
		}
		tracker.Observe(sr)
	})

	report, err := exec.Run(ctx, targets)
	if err != nil {
		return err
	}
	tracker.Finish()

	if errorCollector.HasErrors() {
		logger.Info("Some servers could not be surveyed", "summary", errorCollector.Summary())
	}

	if err := output.NewFormatter(mode, stdout).Write(report); err != nil {
		return errors.NewExecutionError("failed to write report", err)
	}

	if cfg.ShowStats {
		stats.Summarize(report).Write(stderr)
	}

	return nil
}

// getExitCode determines the appropriate exit code based on error type
// Returns:
//   - 0: Survey completed, including per-server failures
//   - 1: The report could not be written
//   - 2: Setup error (invalid arguments, configuration, inventory)
func getExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch errors.TypeOf(err) {
	case errors.ExecutionErrorType:
		return 1
	default:
		return 2
	}
}
