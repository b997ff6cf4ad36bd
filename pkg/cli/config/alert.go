package config

import (
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/itmoou/attendbot/pkg/domain/interfaces"
	"github.com/itmoou/attendbot/pkg/service/alert"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

const sentryFlushTimeout = 2 * time.Second

// Alert configures operator notifications for failed jobs and error reporting.
type Alert struct {
	slackWebhookURL string
	sentryDSN       string
	sentryEnv       string
}

func (x *Alert) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-webhook-url",
			Usage:       "Slack incoming webhook for job failure alerts",
			Category:    "Alert",
			Destination: &x.slackWebhookURL,
			Sources:     cli.EnvVars("ATTENDBOT_SLACK_WEBHOOK_URL"),
		},
		&cli.StringFlag{
			Name:        "sentry-dsn",
			Usage:       "Sentry DSN for error reporting",
			Category:    "Alert",
			Destination: &x.sentryDSN,
			Sources:     cli.EnvVars("ATTENDBOT_SENTRY_DSN"),
		},
		&cli.StringFlag{
			Name:        "sentry-env",
			Usage:       "Sentry environment name",
			Category:    "Alert",
			Value:       "production",
			Destination: &x.sentryEnv,
			Sources:     cli.EnvVars("ATTENDBOT_SENTRY_ENV"),
		},
	}
}

func (x Alert) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("slack_webhook", x.slackWebhookURL != ""),
		slog.Bool("sentry", x.sentryDSN != ""),
		slog.String("sentry_env", x.sentryEnv),
	)
}

// Alerter returns a no-op alerter when no webhook is configured.
func (x *Alert) Alerter(source string) interfaces.Alerter {
	if x.slackWebhookURL == "" {
		return alert.Nop{}
	}
	return alert.NewSlack(x.slackWebhookURL, alert.WithSource(source))
}

// ConfigureSentry initializes the Sentry client. The returned function
// flushes pending events.
func (x *Alert) ConfigureSentry(release string) (func(), error) {
	if x.sentryDSN == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         x.sentryDSN,
		Environment: x.sentryEnv,
		Release:     release,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to initialize sentry")
	}
	return func() { sentry.Flush(sentryFlushTimeout) }, nil
}
