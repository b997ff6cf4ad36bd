package config

import (
	"log/slog"

	"github.com/itmoou/attendbot/pkg/domain/interfaces"
	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/itmoou/attendbot/pkg/service/flex"
	"github.com/itmoou/attendbot/pkg/service/token"
	"github.com/urfave/cli/v3"
)

const defaultFlexTokenURL = "https://openapi.flex.team/v2/auth/realms/open-api/protocol/openid-connect/token"

// Flex configures the vendor attendance API.
type Flex struct {
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
	refreshToken string
	rateLimit    float64
	concurrency  int
}

func (x *Flex) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "flex-base-url",
			Usage:       "Flex OpenAPI base URL",
			Category:    "Flex",
			Value:       flex.DefaultBaseURL,
			Destination: &x.baseURL,
			Sources:     cli.EnvVars("ATTENDBOT_FLEX_BASE_URL"),
		},
		&cli.StringFlag{
			Name:        "flex-token-url",
			Usage:       "Flex OAuth token endpoint",
			Category:    "Flex",
			Value:       defaultFlexTokenURL,
			Destination: &x.tokenURL,
			Sources:     cli.EnvVars("ATTENDBOT_FLEX_TOKEN_URL"),
		},
		&cli.StringFlag{
			Name:        "flex-client-id",
			Usage:       "Flex OAuth client ID",
			Category:    "Flex",
			Value:       "open-api",
			Destination: &x.clientID,
			Sources:     cli.EnvVars("ATTENDBOT_FLEX_CLIENT_ID"),
		},
		&cli.StringFlag{
			Name:        "flex-client-secret",
			Usage:       "Flex OAuth client secret, if the client requires one",
			Category:    "Flex",
			Destination: &x.clientSecret,
			Sources:     cli.EnvVars("ATTENDBOT_FLEX_CLIENT_SECRET"),
		},
		&cli.StringFlag{
			Name:        "flex-refresh-token",
			Usage:       "Initial Flex refresh token, used when none is stored yet",
			Category:    "Flex",
			Destination: &x.refreshToken,
			Sources:     cli.EnvVars("ATTENDBOT_FLEX_REFRESH_TOKEN"),
		},
		&cli.FloatFlag{
			Name:        "flex-rate-limit",
			Usage:       "Maximum Flex API requests per second",
			Category:    "Flex",
			Value:       5,
			Destination: &x.rateLimit,
			Sources:     cli.EnvVars("ATTENDBOT_FLEX_RATE_LIMIT"),
		},
		&cli.IntFlag{
			Name:        "flex-concurrency",
			Usage:       "Concurrent Flex requests when querying date ranges",
			Category:    "Flex",
			Value:       4,
			Destination: &x.concurrency,
			Sources:     cli.EnvVars("ATTENDBOT_FLEX_CONCURRENCY"),
		},
	}
}

func (x Flex) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("base_url", x.baseURL),
		slog.String("token_url", x.tokenURL),
		slog.Int("client_secret.len", len(x.clientSecret)),
		slog.Int("refresh_token.len", len(x.refreshToken)),
		slog.Float64("rate_limit", x.rateLimit),
	)
}

// Credential is the token cache registration for the vendor API.
func (x *Flex) Credential() token.Credential {
	return token.Credential{
		Set:                types.CredentialFlex,
		TokenURL:           x.tokenURL,
		ClientID:           x.clientID,
		ClientSecret:       x.clientSecret,
		Grant:              token.GrantRefreshToken,
		StaticRefreshToken: x.refreshToken,
	}
}

// Configure creates the vendor client.
func (x *Flex) Configure(tokens interfaces.TokenProvider) *flex.Client {
	burst := int(x.rateLimit)
	if burst < 1 {
		burst = 1
	}
	return flex.New(tokens,
		flex.WithBaseURL(x.baseURL),
		flex.WithRateLimit(x.rateLimit, burst),
		flex.WithConcurrency(x.concurrency),
	)
}
