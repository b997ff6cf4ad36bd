package worker

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
)

// ScheduleFile overrides job specs by job name.
//
//	[jobs.check_in_first]
//	time = "11:10"
//	weekdays = ["mon", "tue", "wed", "thu", "fri"]
//
//	[jobs.vacation_calendar_sync]
//	disabled = true
type ScheduleFile struct {
	Jobs map[string]JobOverride `toml:"jobs"`
}

type JobOverride struct {
	Time       string   `toml:"time"`
	Weekdays   []string `toml:"weekdays"`
	EveryNDays *int     `toml:"every_n_days"`
	Disabled   bool     `toml:"disabled"`
}

// LoadScheduleFile reads a TOML schedule override file.
func LoadScheduleFile(path string) (*ScheduleFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read schedule file", goerr.V("path", path))
	}
	return ParseScheduleFile(raw)
}

func ParseScheduleFile(raw []byte) (*ScheduleFile, error) {
	var f ScheduleFile
	if err := toml.Unmarshal(raw, &f); err != nil {
		return nil, goerr.Wrap(err, "failed to parse schedule file")
	}
	return &f, nil
}

// Apply returns jobs with overrides applied. Disabled jobs are dropped and
// overrides for unknown job names are an error.
func (f *ScheduleFile) Apply(jobs []Job) ([]Job, error) {
	if f == nil {
		return jobs, nil
	}

	known := make(map[string]bool, len(jobs))
	for _, job := range jobs {
		known[job.Name] = true
	}
	for name := range f.Jobs {
		if !known[name] {
			return nil, goerr.Wrap(ErrUnknownJob, "schedule file names an unknown job", goerr.V("job", name))
		}
	}

	result := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		o, ok := f.Jobs[job.Name]
		if !ok {
			result = append(result, job)
			continue
		}
		if o.Disabled {
			continue
		}

		if o.Time != "" {
			h, m, err := ParseClock(o.Time)
			if err != nil {
				return nil, goerr.Wrap(err, "invalid override", goerr.V("job", job.Name))
			}
			job.Spec.Hour, job.Spec.Minute = h, m
		}
		if o.Weekdays != nil {
			weekdays := make([]time.Weekday, 0, len(o.Weekdays))
			for _, s := range o.Weekdays {
				wd, err := ParseWeekday(s)
				if err != nil {
					return nil, goerr.Wrap(err, "invalid override", goerr.V("job", job.Name))
				}
				weekdays = append(weekdays, wd)
			}
			job.Spec.Weekdays = weekdays
		}
		if o.EveryNDays != nil {
			job.Spec.EveryNDays = *o.EveryNDays
		}
		if err := job.Spec.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid override", goerr.V("job", job.Name))
		}
		result = append(result, job)
	}
	return result, nil
}
