package config

import (
	"log/slog"
	"time"
	_ "time/tzdata"

	"github.com/itmoou/attendbot/pkg/service/worker"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// Schedule holds settings for the notification jobs.
type Schedule struct {
	timezone            string
	scheduleFile        string
	ledgerClaim         bool
	dispatchConcurrency int
	vacationBroadcast   bool
}

func (x *Schedule) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "timezone",
			Usage:       "IANA time zone used for business dates and job schedules",
			Category:    "Schedule",
			Value:       "Asia/Seoul",
			Destination: &x.timezone,
			Sources:     cli.EnvVars("ATTENDBOT_TIMEZONE"),
		},
		&cli.StringFlag{
			Name:        "schedule-file",
			Usage:       "TOML file overriding default job schedules",
			Category:    "Schedule",
			Destination: &x.scheduleFile,
			Sources:     cli.EnvVars("ATTENDBOT_SCHEDULE_FILE"),
		},
		&cli.BoolFlag{
			Name:        "ledger-claim",
			Usage:       "Claim each reminder before sending so concurrent runs never double send",
			Category:    "Schedule",
			Destination: &x.ledgerClaim,
			Sources:     cli.EnvVars("ATTENDBOT_LEDGER_CLAIM"),
		},
		&cli.IntFlag{
			Name:        "dispatch-concurrency",
			Usage:       "Concurrent chat deliveries per reminder run",
			Category:    "Schedule",
			Value:       4,
			Destination: &x.dispatchConcurrency,
			Sources:     cli.EnvVars("ATTENDBOT_DISPATCH_CONCURRENCY"),
		},
		&cli.BoolFlag{
			Name:        "vacation-broadcast",
			Usage:       "Also post the morning vacation announcement to every mapped user",
			Category:    "Schedule",
			Destination: &x.vacationBroadcast,
			Sources:     cli.EnvVars("ATTENDBOT_VACATION_BROADCAST"),
		},
	}
}

func (x Schedule) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("timezone", x.timezone),
		slog.String("schedule_file", x.scheduleFile),
		slog.Bool("ledger_claim", x.ledgerClaim),
		slog.Int("dispatch_concurrency", x.dispatchConcurrency),
		slog.Bool("vacation_broadcast", x.vacationBroadcast),
	)
}

func (x *Schedule) VacationBroadcast() bool {
	return x.vacationBroadcast
}

func (x *Schedule) LedgerClaim() bool {
	return x.ledgerClaim
}

func (x *Schedule) DispatchConcurrency() int {
	return x.dispatchConcurrency
}

func (x *Schedule) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(x.timezone)
	if err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "unknown timezone", goerr.V(ValueKey, x.timezone), goerr.V("cause", err.Error()))
	}
	return loc, nil
}

// Apply loads the schedule file, if set, and overrides jobs with it.
func (x *Schedule) Apply(jobs []worker.Job) ([]worker.Job, error) {
	if x.scheduleFile == "" {
		return jobs, nil
	}
	file, err := worker.LoadScheduleFile(x.scheduleFile)
	if err != nil {
		return nil, err
	}
	return file.Apply(jobs)
}
