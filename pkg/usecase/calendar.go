package usecase

import (
	"context"
	"fmt"

	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/itmoou/attendbot/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const untitledEvent = "(제목 없음)"

// DailyCalendarNotify sends every mapped account the events on its calendar
// today. A calendar that cannot be read skips that account only.
func (uc *AttendanceUseCase) DailyCalendarNotify(ctx context.Context) error {
	if uc.deps.calendar == nil {
		return goerr.Wrap(ErrNotConfigured, "calendar is not configured")
	}
	logger := logging.From(ctx)
	loc := uc.deps.loc
	today := uc.today()

	snapshot, err := uc.identity.ResolveAll(ctx)
	if err != nil {
		return err
	}
	if len(snapshot) == 0 {
		logger.Info("no identity mappings, skipping calendar notify")
		return nil
	}

	start, end := today.Time(loc), today.AddDays(1).Time(loc)
	accounts := sortedAccounts(snapshot)
	notifications := make([]model.Notification, 0, len(accounts))
	unreadable := 0
	for _, acc := range accounts {
		events, err := uc.deps.calendar.ListEvents(ctx, acc.String(), start, end)
		if err != nil {
			logger.Error("failed to read calendar", "error", err, AccountIDKey, acc)
			unreadable++
			continue
		}

		body, err := render(tmplCalendarToday, calendarTodayData{
			DisplayName: displayName(snapshot[acc], acc),
			Date:        koreanDate(today),
			Events:      uc.calendarRows(events),
		})
		if err != nil {
			return err
		}
		notifications = append(notifications, model.Notification{AccountID: acc, Body: body})
	}

	result := uc.dispatcher.SendMany(ctx, notifications)
	logger.Info("daily calendar notify finished",
		"date", today,
		"accounts", len(accounts),
		"unreadable", unreadable,
		"sent", result.SuccessCount,
		"failed", result.FailedCount,
	)
	return nil
}

func (uc *AttendanceUseCase) calendarRows(events []*model.CalendarEvent) []calendarRow {
	rows := make([]calendarRow, 0, len(events))
	for _, e := range events {
		when := "종일"
		if !e.AllDay {
			when = e.Start.In(uc.deps.loc).Format("15:04") + " - " + e.End.In(uc.deps.loc).Format("15:04")
		}
		subject := e.Subject
		if subject == "" {
			subject = untitledEvent
		}
		rows = append(rows, calendarRow{
			Time:     when,
			Subject:  subject,
			Location: e.Location,
			Online:   e.Online,
		})
	}
	return rows
}

// koreanDate renders 2026-10-16 as "2026년 10월 16일".
func koreanDate(d types.Date) string {
	t := d.Time(nil)
	return fmt.Sprintf("%d년 %d월 %d일", t.Year(), int(t.Month()), t.Day())
}
