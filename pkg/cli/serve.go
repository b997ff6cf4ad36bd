package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpctrl "github.com/itmoou/attendbot/pkg/controller/http"
	"github.com/itmoou/attendbot/pkg/service/metrics"
	"github.com/itmoou/attendbot/pkg/service/worker"
	"github.com/itmoou/attendbot/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdServe(version string) *cli.Command {
	var addr string
	var noScheduler bool
	var webhookToken string
	var cfg appConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("ATTENDBOT_ADDR"),
			Destination: &addr,
		},
		&cli.BoolFlag{
			Name:        "no-scheduler",
			Usage:       "Serve inbound activities only, without running scheduled jobs",
			Sources:     cli.EnvVars("ATTENDBOT_NO_SCHEDULER"),
			Destination: &noScheduler,
		},
		&cli.StringFlag{
			Name:        "webhook-token",
			Usage:       "Shared secret for POST /api/vacation/approved (bearer or X-Webhook-Token header)",
			Sources:     cli.EnvVars("ATTENDBOT_WEBHOOK_TOKEN"),
			Destination: &webhookToken,
		},
	}
	flags = append(flags, cfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the bot endpoint and the notification scheduler",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			registry := metrics.NewRegistry()
			recorder := metrics.NewCollector(registry)

			a, err := cfg.build(ctx, recorder, version)
			if err != nil {
				return err
			}
			defer a.Close()

			httpOpts := []httpctrl.Options{
				httpctrl.WithMetrics(recorder),
				httpctrl.WithMetricsHandler(metrics.Handler(registry)),
			}
			if webhookToken != "" || cfg.bot.NoAuthn() {
				httpOpts = append(httpOpts, httpctrl.WithVacationHandler(a.uc.Attendance, webhookToken))
			} else {
				logging.Default().Warn("Webhook token not configured, vacation approval endpoint is disabled")
			}
			if cfg.bot.NoAuthn() {
				logging.Default().Warn("Inbound activity verification is disabled (development only)")
				httpOpts = append(httpOpts, httpctrl.WithNoAuthn())
			} else {
				verifier, err := cfg.bot.Verifier()
				if err != nil {
					return err
				}
				httpOpts = append(httpOpts, httpctrl.WithVerifier(verifier))
			}

			httpHandler, err := httpctrl.New(a.uc.Onboarding, httpOpts...)
			if err != nil {
				return goerr.Wrap(err, "failed to create http server")
			}
			server := &http.Server{
				Addr:              addr,
				Handler:           httpHandler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			var scheduler *worker.Scheduler
			if !noScheduler {
				jobs, err := cfg.schedule.Apply(a.uc.Jobs())
				if err != nil {
					return goerr.Wrap(err, "failed to apply schedule file")
				}
				scheduler = worker.NewScheduler(jobs,
					worker.WithLocation(a.uc.Location()),
					worker.WithRunHook(a.uc.JobHook()),
				)
				if err := scheduler.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start scheduler")
				}
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr, "scheduler", !noScheduler)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				if scheduler != nil {
					scheduler.Stop()
				}
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				// Running jobs finish before the server goes away.
				if scheduler != nil {
					scheduler.Stop()
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
