package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/itmoou/attendbot/pkg/cli/config"
	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/itmoou/attendbot/pkg/usecase"
	"github.com/itmoou/attendbot/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdLedger() *cli.Command {
	return &cli.Command{
		Name:  "ledger",
		Usage: "Inspect the notification ledger",
		Commands: []*cli.Command{
			cmdLedgerShow(),
		},
	}
}

func cmdLedgerShow() *cli.Command {
	var repoCfg config.Repository
	var schedCfg config.Schedule
	var date string

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "date",
			Aliases:     []string{"d"},
			Usage:       "Business date (YYYY-MM-DD). Defaults to today",
			Destination: &date,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, schedCfg.Flags()...)

	return &cli.Command{
		Name:  "show",
		Usage: "Show which reminders went out on a date",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			loc, err := schedCfg.Location()
			if err != nil {
				return err
			}
			target := types.DateOf(time.Now(), loc)
			if date != "" {
				if target, err = types.ParseDate(date); err != nil {
					return err
				}
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			states, err := usecase.New(repo, usecase.WithLocation(loc)).Ledger.ListByDate(ctx, target)
			if err != nil {
				return err
			}

			fmt.Printf("%s %s\n", color.CyanString("date:"), target)
			for _, s := range states {
				fmt.Printf("%-12s %s\n", s.SubjectID, formatFlags(s))
			}
			fmt.Printf("%d subjects\n", len(states))
			return nil
		},
	}
}

func formatFlags(s *model.NotifyState) string {
	var out string
	for i, kind := range types.AllNotifyKinds() {
		if i > 0 {
			out += " "
		}
		if s.Sent(kind) {
			out += color.GreenString("%s", kind)
		} else {
			out += color.New(color.Faint).Sprint(kind)
		}
	}
	return out
}
