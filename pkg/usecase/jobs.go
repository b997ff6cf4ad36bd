package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/itmoou/attendbot/pkg/service/worker"
	"github.com/itmoou/attendbot/pkg/utils/async"
	"github.com/itmoou/attendbot/pkg/utils/errutil"
)

// Job names, also used by the schedule file and the run command.
const (
	JobCheckInFirst         = "check_in_first"
	JobCheckInFinal         = "check_in_final"
	JobCheckOutFirst        = "check_out_first"
	JobCheckOutFinal        = "check_out_final"
	JobDailySummary         = "daily_summary"
	JobDailyReport          = "daily_report"
	JobWeeklyVacationReport = "weekly_vacation_report"
	JobVacationCalendarSync = "vacation_calendar_sync"
	JobVacationReminder     = "vacation_reminder"
	JobVacationAnnouncement = "vacation_announcement"
	JobDailyCalendarNotify  = "daily_calendar_notify"
	JobFlexTokenRotate      = "flex_token_rotate"
)

// Jobs returns every scheduled job with its default schedule.
func (uc *UseCases) Jobs() []worker.Job {
	a := uc.Attendance
	weekdays := worker.WorkingDays

	return []worker.Job{
		{
			Name: JobCheckInFirst,
			Spec: worker.Spec{Hour: 11, Minute: 5, Weekdays: weekdays},
			Run:  func(ctx context.Context) error { return a.RemindCheckIn(ctx, types.NotifyKindCheckInFirst) },
		},
		{
			Name: JobCheckInFinal,
			Spec: worker.Spec{Hour: 11, Minute: 30, Weekdays: weekdays},
			Run:  func(ctx context.Context) error { return a.RemindCheckIn(ctx, types.NotifyKindCheckInFinal) },
		},
		{
			Name: JobCheckOutFirst,
			Spec: worker.Spec{Hour: 20, Minute: 30, Weekdays: weekdays},
			Run:  func(ctx context.Context) error { return a.RemindCheckOut(ctx, types.NotifyKindCheckOutFirst) },
		},
		{
			Name: JobCheckOutFinal,
			Spec: worker.Spec{Hour: 22, Minute: 0, Weekdays: weekdays},
			Run:  func(ctx context.Context) error { return a.RemindCheckOut(ctx, types.NotifyKindCheckOutFinal) },
		},
		{
			Name: JobDailySummary,
			Spec: worker.Spec{Hour: 22, Minute: 10, Weekdays: weekdays},
			Run:  a.DailySummary,
		},
		{
			Name: JobDailyReport,
			Spec: worker.Spec{Hour: 9, Minute: 0, Weekdays: weekdays},
			Run:  a.DailyReport,
		},
		{
			Name: JobWeeklyVacationReport,
			Spec: worker.Spec{Hour: 9, Minute: 0, Weekdays: []time.Weekday{time.Monday}},
			Run:  a.WeeklyVacationReport,
		},
		{
			Name: JobVacationCalendarSync,
			Spec: worker.Spec{Hour: 8, Minute: 0},
			Run:  a.SyncVacationCalendar,
		},
		{
			Name: JobVacationReminder,
			Spec: worker.Spec{Hour: 18, Minute: 0, Weekdays: weekdays},
			Run:  a.VacationReminder,
		},
		{
			Name: JobVacationAnnouncement,
			Spec: worker.Spec{Hour: 9, Minute: 0, Weekdays: weekdays},
			Run:  a.VacationAnnouncement,
		},
		{
			Name: JobDailyCalendarNotify,
			Spec: worker.Spec{Hour: 9, Minute: 0, Weekdays: weekdays},
			Run:  a.DailyCalendarNotify,
		},
		{
			Name: JobFlexTokenRotate,
			Spec: worker.Spec{Hour: 0, Minute: 0, EveryNDays: 6},
			Run:  a.RotateFlexToken,
		},
	}
}

// JobHook records job metrics and reports failures to Sentry and the alert channel.
func (uc *UseCases) JobHook() worker.RunHook {
	return func(ctx context.Context, job string, err error, elapsed time.Duration) {
		uc.deps.metrics.RecordJobRun(job, err, elapsed)
		if err == nil {
			return
		}

		_ = errutil.Handle(ctx, err, "scheduled job failed")
		if uc.deps.alerter == nil {
			return
		}
		title := fmt.Sprintf("attendbot job %s failed", job)
		text := err.Error()
		async.Dispatch(ctx, "job-alert", func(ctx context.Context) error {
			return uc.deps.alerter.Alert(ctx, title, text)
		})
	}
}
