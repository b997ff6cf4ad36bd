package config

import (
	"fmt"
	"log/slog"

	"github.com/itmoou/attendbot/pkg/domain/interfaces"
	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/itmoou/attendbot/pkg/service/teams"
	"github.com/itmoou/attendbot/pkg/service/token"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

const (
	botFrameworkScope    = "https://api.botframework.com/.default"
	botFrameworkTokenURL = "https://login.microsoftonline.com/botframework.com/oauth2/v2.0/token"
)

// Bot configures the Bot Framework credentials used for Teams messaging.
type Bot struct {
	appID           string
	appPassword     string
	tenantID        string
	openIDConfigURL string
	rateLimit       float64
	noAuthn         bool
}

func (x *Bot) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "bot-app-id",
			Usage:       "Microsoft App ID of the bot",
			Category:    "Bot",
			Destination: &x.appID,
			Sources:     cli.EnvVars("ATTENDBOT_BOT_APP_ID"),
		},
		&cli.StringFlag{
			Name:        "bot-app-password",
			Usage:       "Microsoft App password of the bot",
			Category:    "Bot",
			Destination: &x.appPassword,
			Sources:     cli.EnvVars("ATTENDBOT_BOT_APP_PASSWORD"),
		},
		&cli.StringFlag{
			Name:        "bot-tenant-id",
			Usage:       "Tenant ID for a single tenant bot. Leave empty for multi tenant",
			Category:    "Bot",
			Destination: &x.tenantID,
			Sources:     cli.EnvVars("ATTENDBOT_BOT_TENANT_ID"),
		},
		&cli.StringFlag{
			Name:        "bot-openid-config-url",
			Usage:       "OpenID configuration used to verify inbound activities",
			Category:    "Bot",
			Value:       teams.DefaultOpenIDConfigURL,
			Destination: &x.openIDConfigURL,
			Sources:     cli.EnvVars("ATTENDBOT_BOT_OPENID_CONFIG_URL"),
		},
		&cli.FloatFlag{
			Name:        "bot-rate-limit",
			Usage:       "Maximum outbound connector requests per second",
			Category:    "Bot",
			Value:       10,
			Destination: &x.rateLimit,
			Sources:     cli.EnvVars("ATTENDBOT_BOT_RATE_LIMIT"),
		},
		&cli.BoolFlag{
			Name:        "bot-no-authn",
			Usage:       "Accept inbound activities without verifying the bearer token (development only)",
			Category:    "Bot",
			Destination: &x.noAuthn,
			Sources:     cli.EnvVars("ATTENDBOT_BOT_NO_AUTHN"),
		},
	}
}

func (x Bot) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("app_id", x.appID),
		slog.Int("app_password.len", len(x.appPassword)),
		slog.String("tenant_id", x.tenantID),
		slog.Bool("no_authn", x.noAuthn),
	)
}

func (x *Bot) IsConfigured() bool {
	return x.appID != "" && x.appPassword != ""
}

// NoAuthn reports whether inbound verification is disabled.
func (x *Bot) NoAuthn() bool {
	return x.noAuthn
}

func (x *Bot) tokenURL() string {
	if x.tenantID == "" {
		return botFrameworkTokenURL
	}
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", x.tenantID)
}

// Credential is the token cache registration for the connector.
func (x *Bot) Credential() token.Credential {
	return token.Credential{
		Set:          types.CredentialBot,
		TokenURL:     x.tokenURL(),
		ClientID:     x.appID,
		ClientSecret: x.appPassword,
		Scope:        botFrameworkScope,
		Grant:        token.GrantClientCredentials,
	}
}

// Configure creates the connector client.
func (x *Bot) Configure(tokens interfaces.TokenProvider) (*teams.Client, error) {
	if !x.IsConfigured() {
		return nil, goerr.Wrap(ErrMissingSetting, "bot-app-id and bot-app-password are required")
	}
	burst := int(x.rateLimit)
	if burst < 1 {
		burst = 1
	}
	return teams.New(tokens, teams.WithRateLimit(x.rateLimit, burst)), nil
}

// Verifier creates the inbound token verifier.
func (x *Bot) Verifier() (*teams.Verifier, error) {
	if x.appID == "" {
		return nil, goerr.Wrap(ErrMissingSetting, "bot-app-id is required to verify inbound activities")
	}
	return teams.NewVerifier(x.appID, teams.WithOpenIDConfigURL(x.openIDConfigURL)), nil
}
