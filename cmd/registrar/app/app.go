// Package app builds the registrar command tree and wires its components.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ieee-registration-bot/internal/config"
	"ieee-registration-bot/internal/logger"
)

const defaultConfigPath = "config/registrar.yaml"

// App holds the parsed flags and the lazily built dependencies shared by
// subcommands.
type App struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	dryRun     bool
	logLevel   string

	cfg          *config.Config
	googleClient *http.Client
	closers      []func() error
}

func New(stdout, stderr io.Writer) *App {
	return &App{stdout: stdout, stderr: stderr}
}

// Execute runs the command line in args and releases every resource the
// chosen command opened.
func (a *App) Execute(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	defer a.close()
	return root.ExecuteContext(ctx)
}

func (a *App) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "registrar",
		Short: "Student branch membership registration bot",
		Long: `registrar keeps the branch membership ledger in step with the campus
engagement portal: it emails new applicants, watches the inbox for their
IEEE membership numbers, reminds and expires stragglers, and approves or
denies requests on the portal.`,
		PersistentPreRunE: a.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", defaultConfigPath, "path to the YAML configuration file")
	root.PersistentFlags().BoolVar(&a.dryRun, "dry-run", false, "decide and log, but send no email and change nothing")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	root.AddCommand(
		a.serveCommand(),
		a.runOnceCommand(),
		a.authorizeCommand(),
		a.ledgerCommand(),
		a.findIDCommand(),
	)
	return root
}

// setup loads .env files, the config file and the logger before any command.
func (a *App) setup(cmd *cobra.Command, _ []string) error {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dryRun {
		cfg.Reconcile.DryRun = true
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg

	logger.Initialize(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	logger.Debug("Configuration loaded", "path", a.configPath, "command", cmd.Name(), "dry_run", cfg.Reconcile.DryRun)
	return nil
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("Failed to release resource", "error", err)
		}
	}
	a.closers = nil
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.stdout, format, args...)
}
