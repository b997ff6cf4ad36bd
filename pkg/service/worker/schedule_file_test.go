package worker_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/itmoou/attendbot/pkg/service/worker"
	"github.com/m-mizutani/gt"
)

func baseJobs() []worker.Job {
	noop := func(ctx context.Context) error { return nil }
	return []worker.Job{
		{Name: "check_in_first", Spec: worker.Spec{Hour: 11, Minute: 5, Weekdays: worker.WorkingDays}, Run: noop},
		{Name: "daily_summary", Spec: worker.Spec{Hour: 22, Minute: 0, Weekdays: worker.WorkingDays}, Run: noop},
		{Name: "flex_token_rotate", Spec: worker.Spec{Hour: 3, EveryNDays: 6}, Run: noop},
	}
}

func TestScheduleFileApply(t *testing.T) {
	f, err := worker.ParseScheduleFile([]byte(`
[jobs.check_in_first]
time = "10:30"
weekdays = ["mon", "wed"]

[jobs.daily_summary]
disabled = true

[jobs.flex_token_rotate]
every_n_days = 3
`))
	gt.NoError(t, err).Required()

	jobs, err := f.Apply(baseJobs())
	gt.NoError(t, err).Required()
	gt.Array(t, jobs).Length(2).Required()

	gt.Value(t, jobs[0].Name).Equal("check_in_first")
	gt.Value(t, jobs[0].Spec.Hour).Equal(10)
	gt.Value(t, jobs[0].Spec.Minute).Equal(30)
	gt.Value(t, jobs[0].Spec.Weekdays).Equal([]time.Weekday{time.Monday, time.Wednesday})

	gt.Value(t, jobs[1].Name).Equal("flex_token_rotate")
	gt.Value(t, jobs[1].Spec.EveryNDays).Equal(3)
	gt.Value(t, jobs[1].Spec.Hour).Equal(3)
}

func TestScheduleFileUnknownJob(t *testing.T) {
	f, err := worker.ParseScheduleFile([]byte("[jobs.nope]\ntime = \"10:00\"\n"))
	gt.NoError(t, err).Required()

	_, err = f.Apply(baseJobs())
	gt.Bool(t, errors.Is(err, worker.ErrUnknownJob)).True()
}

func TestScheduleFileInvalidTime(t *testing.T) {
	f, err := worker.ParseScheduleFile([]byte("[jobs.check_in_first]\ntime = \"25:99\"\n"))
	gt.NoError(t, err).Required()

	_, err = f.Apply(baseJobs())
	gt.Error(t, err)
}

func TestLoadScheduleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.toml")
	gt.NoError(t, os.WriteFile(path, []byte("[jobs.daily_summary]\ntime = \"21:00\"\n"), 0o600)).Required()

	f, err := worker.LoadScheduleFile(path)
	gt.NoError(t, err).Required()
	gt.Value(t, f.Jobs["daily_summary"].Time).Equal("21:00")

	_, err = worker.LoadScheduleFile(filepath.Join(t.TempDir(), "missing.toml"))
	gt.Error(t, err)
}

func TestNilScheduleFileKeepsJobs(t *testing.T) {
	var f *worker.ScheduleFile
	jobs, err := f.Apply(baseJobs())
	gt.NoError(t, err).Required()
	gt.Array(t, jobs).Length(3)
}
