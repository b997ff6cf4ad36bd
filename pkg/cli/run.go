package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/itmoou/attendbot/pkg/service/metrics"
	"github.com/itmoou/attendbot/pkg/service/worker"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func cmdRun(version string) *cli.Command {
	var cfg appConfig
	var list bool

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "list",
			Usage:       "List jobs and their schedules instead of running one",
			Destination: &list,
		},
	}
	flags = append(flags, cfg.Flags()...)

	return &cli.Command{
		Name:      "run",
		Usage:     "Run one scheduled job immediately",
		ArgsUsage: "<job>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if !list && c.Args().Len() != 1 {
				return goerr.New("exactly one job name is required")
			}

			a, err := cfg.build(ctx, metrics.Nop{}, version)
			if err != nil {
				return err
			}
			defer a.Close()

			jobs, err := cfg.schedule.Apply(a.uc.Jobs())
			if err != nil {
				return goerr.Wrap(err, "failed to apply schedule file")
			}
			scheduler := worker.NewScheduler(jobs,
				worker.WithLocation(a.uc.Location()),
				worker.WithRunHook(a.uc.JobHook()),
			)

			if list {
				for _, job := range scheduler.Jobs() {
					fmt.Printf("%-24s %s\n", color.CyanString(job.Name), job.Spec)
				}
				return nil
			}

			name := c.Args().First()
			if err := scheduler.RunNow(ctx, name); err != nil {
				fmt.Printf("%s %s\n", color.RedString("FAILED"), name)
				return err
			}
			fmt.Printf("%s %s\n", color.GreenString("OK"), name)
			return nil
		},
	}
}
