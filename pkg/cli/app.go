package cli

import (
	"context"

	"github.com/itmoou/attendbot/pkg/cli/config"
	"github.com/itmoou/attendbot/pkg/domain/interfaces"
	"github.com/itmoou/attendbot/pkg/service/metrics"
	"github.com/itmoou/attendbot/pkg/service/teams"
	"github.com/itmoou/attendbot/pkg/service/token"
	"github.com/itmoou/attendbot/pkg/usecase"
	"github.com/itmoou/attendbot/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// appConfig is the flag set shared by every command that touches the
// attendance pipeline.
type appConfig struct {
	repo     config.Repository
	flex     config.Flex
	bot      config.Bot
	graph    config.Graph
	schedule config.Schedule
	alert    config.Alert
	archive  config.Archive
}

func (x *appConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, x.repo.Flags()...)
	flags = append(flags, x.flex.Flags()...)
	flags = append(flags, x.bot.Flags()...)
	flags = append(flags, x.graph.Flags()...)
	flags = append(flags, x.schedule.Flags()...)
	flags = append(flags, x.alert.Flags()...)
	flags = append(flags, x.archive.Flags()...)
	return flags
}

// app is the wired runtime built from appConfig.
type app struct {
	repo    interfaces.Repository
	tokens  *token.Cache
	bot     *teams.Client
	uc      *usecase.UseCases
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (x *appConfig) build(ctx context.Context, rec metrics.Recorder, version string) (*app, error) {
	logger := logging.Default()
	logger.Info("Configuration",
		"repository", x.repo,
		"flex", x.flex,
		"bot", x.bot,
		"graph", x.graph,
		"schedule", x.schedule,
		"alert", x.alert,
		"archive", x.archive,
	)

	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	flush, err := x.alert.ConfigureSentry(version)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, flush)

	loc, err := x.schedule.Location()
	if err != nil {
		return nil, err
	}

	repo, err := x.repo.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize repository")
	}
	a.repo = repo
	a.closers = append(a.closers, func() {
		if err := repo.Close(); err != nil {
			logger.Error("failed to close repository", "error", err.Error())
		}
	})

	creds := []token.Credential{x.flex.Credential()}
	if x.bot.IsConfigured() {
		creds = append(creds, x.bot.Credential())
	}
	a.tokens = token.New(creds,
		token.WithRefreshTokenStore(repo.RefreshToken()),
		token.WithMetrics(rec),
	)

	ucOpts := []usecase.Option{
		usecase.WithLocation(loc),
		usecase.WithMetrics(rec),
		usecase.WithAttendanceSource(x.flex.Configure(a.tokens)),
		usecase.WithTokenRotator(a.tokens),
		usecase.WithAlerter(x.alert.Alerter("attendbot " + version)),
		usecase.WithHRRecipients(x.graph.HREmails()),
		usecase.WithTeamCalendar(x.graph.TeamCalendar()),
		usecase.WithVacationBroadcast(x.schedule.VacationBroadcast()),
		usecase.WithDispatchConcurrency(x.schedule.DispatchConcurrency()),
		usecase.WithLedgerClaim(x.schedule.LedgerClaim()),
	}

	if x.bot.IsConfigured() {
		bot, err := x.bot.Configure(a.tokens)
		if err != nil {
			return nil, err
		}
		a.bot = bot
		ucOpts = append(ucOpts, usecase.WithMessenger(bot), usecase.WithConnector(bot))
	} else {
		logger.Warn("Bot credentials not configured, chat delivery is disabled")
	}

	graphClient, err := x.graph.Configure()
	if err != nil {
		return nil, err
	}
	if graphClient != nil {
		ucOpts = append(ucOpts,
			usecase.WithMailer(graphClient),
			usecase.WithCalendar(graphClient),
			usecase.WithDirectory(graphClient),
		)
	} else {
		logger.Warn("Microsoft Graph not configured, mail and calendar features are disabled")
	}

	archiver, err := x.archive.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize report archive")
	}
	if archiver != nil {
		ucOpts = append(ucOpts, usecase.WithArchiver(archiver))
		a.closers = append(a.closers, func() {
			if err := archiver.Close(); err != nil {
				logger.Error("failed to close archive client", "error", err.Error())
			}
		})
	}

	a.uc = usecase.New(repo, ucOpts...)
	ok = true
	return a, nil
}
