package worker_test

import (
	"testing"
	"time"

	"github.com/itmoou/attendbot/pkg/service/worker"
	"github.com/m-mizutani/gt"
)

func mustSeoul(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Seoul")
	gt.NoError(t, err).Required()
	return loc
}

func TestSpecNext(t *testing.T) {
	loc := mustSeoul(t)
	// 2026-10-16 is a Friday
	fri := func(h, m int) time.Time { return time.Date(2026, 10, 16, h, m, 0, 0, loc) }

	testCases := []struct {
		name string
		spec worker.Spec
		now  time.Time
		want time.Time
	}{
		{
			name: "later today",
			spec: worker.Spec{Hour: 11, Minute: 5, Weekdays: worker.WorkingDays},
			now:  fri(9, 0),
			want: fri(11, 5),
		},
		{
			name: "exactly at firing time moves on",
			spec: worker.Spec{Hour: 11, Minute: 5, Weekdays: worker.WorkingDays},
			now:  fri(11, 5),
			want: time.Date(2026, 10, 19, 11, 5, 0, 0, loc),
		},
		{
			name: "skips weekend",
			spec: worker.Spec{Hour: 9, Minute: 0, Weekdays: worker.WorkingDays},
			now:  fri(18, 0),
			want: time.Date(2026, 10, 19, 9, 0, 0, 0, loc),
		},
		{
			name: "every day without weekdays",
			spec: worker.Spec{Hour: 9, Minute: 0},
			now:  fri(18, 0),
			want: time.Date(2026, 10, 17, 9, 0, 0, 0, loc),
		},
		{
			name: "single weekday",
			spec: worker.Spec{Hour: 9, Minute: 0, Weekdays: []time.Weekday{time.Monday}},
			now:  time.Date(2026, 10, 19, 9, 30, 0, 0, loc),
			want: time.Date(2026, 10, 26, 9, 0, 0, 0, loc),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gt.Value(t, tc.spec.Next(tc.now)).Equal(tc.want)
		})
	}
}

func TestSpecNextEveryNDays(t *testing.T) {
	spec := worker.Spec{Hour: 3, Minute: 0, EveryNDays: 6}
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	first := spec.Next(now)
	second := spec.Next(first)
	gt.Value(t, second.Sub(first)).Equal(6 * 24 * time.Hour)

	days := first.Unix() / 86400
	gt.Value(t, days%6).Equal(int64(0))
}

func TestSpecValidate(t *testing.T) {
	gt.NoError(t, worker.Spec{Hour: 23, Minute: 59}.Validate())
	gt.Error(t, worker.Spec{Hour: 24}.Validate())
	gt.Error(t, worker.Spec{Minute: -1}.Validate())
	gt.Error(t, worker.Spec{EveryNDays: -2}.Validate())
}

func TestSpecString(t *testing.T) {
	spec := worker.Spec{Hour: 9, Minute: 5, Weekdays: []time.Weekday{time.Monday, time.Friday}, EveryNDays: 3}
	gt.Value(t, spec.String()).Equal("09:05 Mon,Fri every 3 days")
}

func TestParseWeekday(t *testing.T) {
	wd, err := worker.ParseWeekday("TUE")
	gt.NoError(t, err).Required()
	gt.Value(t, wd).Equal(time.Tuesday)

	wd, err = worker.ParseWeekday("saturday")
	gt.NoError(t, err).Required()
	gt.Value(t, wd).Equal(time.Saturday)

	_, err = worker.ParseWeekday("someday")
	gt.Error(t, err)
}
