package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/itmoou/attendbot/pkg/cli/config"
	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/itmoou/attendbot/pkg/usecase"
	"github.com/itmoou/attendbot/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

// identityFile is the bulk import format.
//
//	[[identity]]
//	account_id   = "jane@example.com"
//	subject_id   = "E1024"
//	display_name = "Jane"
type identityFile struct {
	Identities []identityRow `toml:"identity"`
}

type identityRow struct {
	AccountID   string `toml:"account_id"`
	SubjectID   string `toml:"subject_id"`
	DisplayName string `toml:"display_name"`
}

func parseIdentityFile(raw []byte) ([]*model.IdentityMapping, error) {
	var f identityFile
	if err := toml.Unmarshal(raw, &f); err != nil {
		return nil, goerr.Wrap(err, "failed to parse identity file")
	}
	out := make([]*model.IdentityMapping, 0, len(f.Identities))
	for _, row := range f.Identities {
		out = append(out, &model.IdentityMapping{
			AccountID:   types.AccountID(row.AccountID),
			SubjectID:   types.SubjectID(row.SubjectID),
			DisplayName: row.DisplayName,
		})
	}
	return out, nil
}

// withIdentity opens the repository and runs fn with an identity use case.
func withIdentity(ctx context.Context, repoCfg *config.Repository, fn func(*usecase.IdentityUseCase) error) error {
	repo, err := repoCfg.Configure(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to initialize repository")
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logging.Default().Error("failed to close repository", "error", err.Error())
		}
	}()
	return fn(usecase.New(repo).Identity)
}

func cmdIdentity() *cli.Command {
	return &cli.Command{
		Name:  "identity",
		Usage: "Manage the chat account to employee number mapping",
		Commands: []*cli.Command{
			cmdIdentityImport(),
			cmdIdentityList(),
			cmdIdentityDelete(),
		},
	}
}

func cmdIdentityImport() *cli.Command {
	var repoCfg config.Repository
	var path string

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "file",
			Aliases:     []string{"f"},
			Usage:       "TOML file with [[identity]] rows",
			Required:    true,
			Destination: &path,
		},
	}
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:  "import",
		Usage: "Upsert identity mappings from a file",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			raw, err := os.ReadFile(path)
			if err != nil {
				return goerr.Wrap(err, "failed to read identity file", goerr.V("path", path))
			}
			mappings, err := parseIdentityFile(raw)
			if err != nil {
				return goerr.Wrap(err, "invalid identity file", goerr.V("path", path))
			}

			return withIdentity(ctx, &repoCfg, func(uc *usecase.IdentityUseCase) error {
				result, err := uc.Import(ctx, mappings)
				if result != nil {
					fmt.Printf("imported %s, skipped %s\n",
						color.GreenString("%d", result.Imported),
						color.YellowString("%d", result.Skipped))
				}
				return err
			})
		},
	}
}

func cmdIdentityList() *cli.Command {
	var repoCfg config.Repository
	return &cli.Command{
		Name:  "list",
		Usage: "List identity mappings",
		Flags: repoCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			return withIdentity(ctx, &repoCfg, func(uc *usecase.IdentityUseCase) error {
				mappings, err := uc.List(ctx)
				if err != nil {
					return err
				}
				for _, m := range mappings {
					fmt.Printf("%-40s %-12s %s\n", m.AccountID, color.CyanString("%s", m.SubjectID), m.DisplayName)
				}
				fmt.Printf("%d mappings\n", len(mappings))
				return nil
			})
		},
	}
}

func cmdIdentityDelete() *cli.Command {
	var repoCfg config.Repository
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete the mapping of an account",
		ArgsUsage: "<account-id>",
		Flags:     repoCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return goerr.New("exactly one account id is required")
			}
			accountID := c.Args().First()
			return withIdentity(ctx, &repoCfg, func(uc *usecase.IdentityUseCase) error {
				if err := uc.Delete(ctx, accountID); err != nil {
					return err
				}
				fmt.Println(color.GreenString("deleted %s", accountID))
				return nil
			})
		},
	}
}
