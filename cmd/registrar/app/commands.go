package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	httpapi "ieee-registration-bot/internal/api/http"
	"ieee-registration-bot/internal/logger"
	"ieee-registration-bot/internal/scheduler"
	"ieee-registration-bot/internal/telemetry"
	"ieee-registration-bot/internal/workspace"
)

const (
	serviceName     = "ieee-registration-bot"
	shutdownTimeout = 10 * time.Second
)

func (a *App) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Reconcile on a fixed interval until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *App) serve(ctx context.Context) error {
	stopTelemetry, err := a.startTelemetry(ctx)
	if err != nil {
		return err
	}
	defer stopTelemetry()

	runner, err := a.buildRunner(ctx)
	if err != nil {
		return err
	}
	sched, err := scheduler.NewScheduler(ctx, runner, a.cfg.Scheduler.Interval, *a.cfg.Scheduler.RunOnStart, a.cfg.Location())
	if err != nil {
		return err
	}

	var srv *http.Server
	if addr := a.cfg.HTTP.Addr; addr != "" {
		srv = &http.Server{
			Addr:              addr,
			Handler:           httpapi.NewStatusHandler(runner, sched).Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("Status endpoint listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Status endpoint failed", "error", err)
			}
		}()
	}

	sched.Start()
	logger.Info("Registrar running",
		"interval", a.cfg.Scheduler.Interval.String(),
		"dry_run", a.cfg.Reconcile.DryRun,
		"ledger", a.cfg.Ledger.Backend,
		"mail", a.cfg.Mail.Provider,
	)

	<-ctx.Done()
	logger.Info("Shutdown signal received")
	sched.Stop()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Status endpoint did not shut down cleanly", "error", err)
		}
	}
	return nil
}

func (a *App) runOnceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run-once",
		Short: "Run a single reconciliation cycle and print its decisions",
		Long: `run-once runs one cycle and prints what it decided. Combine with
--dry-run to preview a cycle without sending email or touching the ledger
or roster. The command exits non-zero when the cycle aborts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			stopTelemetry, err := a.startTelemetry(ctx)
			if err != nil {
				return err
			}
			defer stopTelemetry()

			runner, err := a.buildRunner(ctx)
			if err != nil {
				return err
			}
			report, err := runner.RunCycle(ctx)
			if report != nil {
				if perr := a.printReport(report); perr != nil {
					return perr
				}
			}
			return err
		},
	}
}

func (a *App) authorizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "authorize",
		Short: "Grant Gmail and Sheets access and store the OAuth token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return workspace.Authorize(cmd.Context(), a.cfg.Google.CredentialsFile, a.cfg.Google.TokenFile, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func (a *App) ledgerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the membership ledger",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every ledger row",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ledger, err := a.buildLedger(cmd.Context())
			if err != nil {
				return err
			}
			members, err := ledger.ListMembers(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read ledger: %w", err)
			}
			return a.printMembers(members)
		},
	})
	return cmd
}

func (a *App) findIDCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "find-id <email>",
		Short: "Search the inbox for a membership number sent by an applicant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inbox, err := a.buildInbox(cmd.Context())
			if err != nil {
				return err
			}
			addresses := a.cfg.InstitutionDomains().CandidateAddresses(args[0])
			id, found, err := inbox.SearchMembershipID(cmd.Context(), addresses)
			if err != nil {
				return err
			}
			if !found {
				a.printf("No membership number found from %s\n", joinAddresses(addresses))
				return nil
			}
			a.printf("%s\n", id)
			return nil
		},
	}
}

// startTelemetry installs the OTLP exporter when configured and returns a
// flush function bounded by shutdownTimeout.
func (a *App) startTelemetry(ctx context.Context) (func(), error) {
	shutdown, err := telemetry.Setup(ctx, serviceName, a.cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}
	return func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("Failed to flush traces", "error", err)
		}
	}, nil
}

func joinAddresses(addresses []string) string {
	return strings.Join(addresses, " or ")
}
