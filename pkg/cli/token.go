package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/itmoou/attendbot/pkg/cli/config"
	"github.com/itmoou/attendbot/pkg/domain/interfaces"
	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/itmoou/attendbot/pkg/service/token"
	"github.com/itmoou/attendbot/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// tokenConfig is the subset of settings needed to operate the token cache.
type tokenConfig struct {
	repo       config.Repository
	flex       config.Flex
	bot        config.Bot
	credential string
}

func (x *tokenConfig) Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "credential",
			Aliases:     []string{"c"},
			Usage:       "Credential set [flex|bot]",
			Value:       types.CredentialFlex.String(),
			Destination: &x.credential,
		},
	}
	flags = append(flags, x.repo.Flags()...)
	flags = append(flags, x.flex.Flags()...)
	flags = append(flags, x.bot.Flags()...)
	return flags
}

func (x *tokenConfig) open(ctx context.Context) (*token.Cache, types.CredentialSet, func(), error) {
	set, err := types.ParseCredentialSet(x.credential)
	if err != nil {
		return nil, "", nil, goerr.Wrap(err, "invalid credential set")
	}

	repo, err := x.repo.Configure(ctx)
	if err != nil {
		return nil, "", nil, goerr.Wrap(err, "failed to initialize repository")
	}
	closer := func() {
		if err := repo.Close(); err != nil {
			logging.Default().Error("failed to close repository", "error", err.Error())
		}
	}

	creds := []token.Credential{x.flex.Credential()}
	if x.bot.IsConfigured() {
		creds = append(creds, x.bot.Credential())
	}
	return newTokenCache(creds, repo), set, closer, nil
}

func newTokenCache(creds []token.Credential, repo interfaces.Repository) *token.Cache {
	return token.New(creds, token.WithRefreshTokenStore(repo.RefreshToken()))
}

func cmdToken() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Inspect and manage API tokens",
		Commands: []*cli.Command{
			cmdTokenInfo(),
			cmdTokenRotate(),
			cmdTokenSet(),
		},
	}
}

func cmdTokenInfo() *cli.Command {
	var cfg tokenConfig
	return &cli.Command{
		Name:  "info",
		Usage: "Show token cache state without exposing secrets",
		Flags: cfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			cache, set, closer, err := cfg.open(ctx)
			if err != nil {
				return err
			}
			defer closer()

			info, err := cache.Info(ctx, set)
			if err != nil {
				return err
			}
			printTokenInfo(info)
			return nil
		},
	}
}

func printTokenInfo(info *model.TokenInfo) {
	label := color.New(color.FgCyan).SprintFunc()
	fmt.Printf("%s %s\n", label("credential:"), info.Credential)
	if info.HasAccessToken {
		fmt.Printf("%s %s (in %s)\n", label("access token expires:"), info.ExpiresAt.Format(time.RFC3339), info.ExpiresIn.Round(time.Second))
	} else {
		fmt.Printf("%s %s\n", label("access token:"), color.YellowString("not cached"))
	}
	if info.RefreshTokenSource == "" {
		return
	}
	fmt.Printf("%s %s\n", label("refresh token source:"), info.RefreshTokenSource)
	fmt.Printf("%s %d\n", label("refresh token length:"), info.RefreshTokenLength)
	fmt.Printf("%s %s\n", label("refresh token preview:"), info.RefreshTokenPreview)
}

func cmdTokenRotate() *cli.Command {
	var cfg tokenConfig
	return &cli.Command{
		Name:  "rotate",
		Usage: "Force a token refresh and persist the rotated refresh token",
		Flags: cfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			cache, set, closer, err := cfg.open(ctx)
			if err != nil {
				return err
			}
			defer closer()

			if err := cache.Rotate(ctx, set); err != nil {
				fmt.Println(color.RedString("rotation failed"))
				return err
			}
			fmt.Println(color.GreenString("rotated %s token", set))

			info, err := cache.Info(ctx, set)
			if err != nil {
				return err
			}
			printTokenInfo(info)
			return nil
		},
	}
}

func cmdTokenSet() *cli.Command {
	var cfg tokenConfig
	var fromStdin bool

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "stdin",
			Usage:       "Read the refresh token from standard input",
			Destination: &fromStdin,
		},
	}
	flags = append(flags, cfg.Flags()...)

	return &cli.Command{
		Name:      "set",
		Usage:     "Store a refresh token issued out of band",
		ArgsUsage: "[refresh-token]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			value := c.Args().First()
			if fromStdin {
				raw, err := io.ReadAll(os.Stdin)
				if err != nil {
					return goerr.Wrap(err, "failed to read refresh token from stdin")
				}
				value = string(raw)
			}
			if strings.TrimSpace(value) == "" {
				return goerr.New("refresh token is required")
			}

			cache, set, closer, err := cfg.open(ctx)
			if err != nil {
				return err
			}
			defer closer()

			if err := cache.SetRefreshToken(ctx, set, value, types.TokenUpdaterManual); err != nil {
				return err
			}
			fmt.Println(color.GreenString("stored refresh token for %s", set))
			return nil
		},
	}
}
