package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/itmoou/attendbot/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const defaultVacationType = "연차"

var koreanWeekdays = [...]string{"일", "월", "화", "수", "목", "금", "토"}

func koreanWeekday(d time.Weekday) string {
	return koreanWeekdays[d]
}

// VacationAnnouncement mails HR who is on vacation today and who is off for
// the rest of the week. With broadcast enabled every mapped account gets the
// same message in chat.
func (uc *AttendanceUseCase) VacationAnnouncement(ctx context.Context) error {
	if err := uc.requireSource(); err != nil {
		return err
	}
	logger := logging.From(ctx)
	loc := uc.deps.loc
	today := uc.today()
	if isWeekend(today.Time(loc)) {
		logger.Info("weekend, skipping vacation announcement", "date", today)
		return nil
	}

	snapshot, err := uc.identity.ResolveAll(ctx)
	if err != nil {
		return err
	}
	if len(snapshot) == 0 {
		logger.Info("no identity mappings, skipping vacation announcement")
		return nil
	}
	ids := SubjectIDsOf(snapshot)
	index := reverseIndex(snapshot)

	current, err := uc.deps.source.GetTimeOffs(ctx, today, ids)
	if err != nil {
		return goerr.Wrap(err, "failed to query time-offs", goerr.V(DateKey, today))
	}
	data := announcementData{Date: today}
	for _, t := range dedupTimeOffs(current, func(t *model.TimeOff) bool { return t.Covers(today) }) {
		data.Today = append(data.Today, uc.vacationRow(snapshot, index, t))
	}

	friday := today.AddDays(int(time.Friday - today.Time(loc).Weekday()))
	if tomorrow := today.AddDays(1); tomorrow <= friday {
		upcoming, err := uc.deps.source.GetVacationsInRange(ctx, tomorrow, friday, ids)
		if err != nil {
			return goerr.Wrap(err, "failed to query vacations", goerr.V("start", tomorrow), goerr.V("end", friday))
		}
		for d := tomorrow; d <= friday; d = d.AddDays(1) {
			day := announcementDay{Date: d, Weekday: koreanWeekday(d.Time(loc).Weekday())}
			for _, t := range dedupTimeOffs(upcoming, func(t *model.TimeOff) bool { return t.Covers(d) }) {
				if _, ok := index[t.SubjectID]; !ok {
					continue
				}
				day.Rows = append(day.Rows, uc.vacationRow(snapshot, index, t))
			}
			if len(day.Rows) > 0 {
				data.Week = append(data.Week, day)
				data.WeekCount += len(day.Rows)
			}
		}
	}

	html, err := render(tmplVacationAnnouncement, data)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("[휴가 현황] %s - 오늘 휴가자 %d명", today, len(data.Today))
	if err := uc.mailHR(ctx, subject, html); err != nil {
		return err
	}

	sent, failed := 0, 0
	if uc.deps.vacationBroadcast {
		accounts := sortedAccounts(snapshot)
		notifications := make([]model.Notification, 0, len(accounts))
		for _, acc := range accounts {
			notifications = append(notifications, model.Notification{AccountID: acc, Body: html})
		}
		result := uc.dispatcher.SendMany(ctx, notifications)
		sent, failed = result.SuccessCount, result.FailedCount
	}

	logger.Info("vacation announcement finished",
		"date", today,
		"today", len(data.Today),
		"week", data.WeekCount,
		"broadcast", uc.deps.vacationBroadcast,
		"sent", sent,
		"failed", failed,
	)
	return nil
}

// ValidateVacationApproval checks the fields an approval must carry.
func ValidateVacationApproval(v *model.VacationApproval) error {
	if v == nil {
		return goerr.Wrap(ErrInvalidVacation, "approval is empty")
	}
	if v.EmployeeNumber == "" || strings.TrimSpace(v.EmployeeName) == "" || v.StartDate == "" || v.EndDate == "" {
		return goerr.Wrap(ErrInvalidVacation, "required field is missing (employeeNumber, employeeName, startDate, endDate)",
			goerr.V(SubjectIDKey, v.EmployeeNumber))
	}
	for _, f := range []struct {
		name  string
		value types.Date
	}{{"startDate", v.StartDate}, {"endDate", v.EndDate}} {
		if _, err := types.ParseDate(string(f.value)); err != nil {
			return goerr.Wrap(ErrInvalidVacation, "date is not YYYY-MM-DD", goerr.V("field", f.name), goerr.V("value", f.value))
		}
	}
	if v.EndDate < v.StartDate {
		return goerr.Wrap(ErrInvalidVacation, "endDate is before startDate",
			goerr.V("start_date", v.StartDate),
			goerr.V("end_date", v.EndDate))
	}
	return nil
}

// ApproveVacation records an approved vacation in the employee's calendar and
// the team calendar, then tells the employee in chat. Calendar and chat
// failures are reported in the result, not as errors.
func (uc *AttendanceUseCase) ApproveVacation(ctx context.Context, v *model.VacationApproval) (*model.VacationApprovalResult, error) {
	if err := ValidateVacationApproval(v); err != nil {
		return nil, err
	}
	vacationType := strings.TrimSpace(v.VacationType)
	if vacationType == "" {
		vacationType = defaultVacationType
	}
	logger := logging.From(ctx).With(SubjectIDKey, v.EmployeeNumber, "period", v.Period(), "type", vacationType)

	result := &model.VacationApprovalResult{
		EmployeeName: v.EmployeeName,
		VacationType: vacationType,
		Period:       v.Period(),
	}

	acc, mapped, err := uc.identity.AccountIDFor(ctx, v.EmployeeNumber)
	if err != nil {
		return nil, err
	}
	if !mapped {
		logger.Warn("approved vacation for an unmapped employee, chat notice skipped")
	}

	personal := strings.TrimSpace(v.EmployeeEmail)
	if personal == "" && mapped {
		personal = acc.String()
	}
	if personal != "" {
		result.PersonalCalendar = uc.createApprovalEvent(ctx, personal, uc.approvalEvent(v, vacationType, false))
	} else {
		logger.Warn("no mailbox for the employee, personal calendar skipped")
	}

	team := uc.deps.teamCalendar
	if team == "" && len(uc.deps.hrRecipients) > 0 {
		team = uc.deps.hrRecipients[0]
	}
	if team != "" {
		result.TeamCalendar = uc.createApprovalEvent(ctx, team, uc.approvalEvent(v, vacationType, true))
	}

	if mapped {
		body, err := render(tmplVacationApproved, vacationApprovedData{
			DisplayName:     v.EmployeeName,
			Type:            vacationType,
			Period:          v.Period(),
			Reason:          v.Reason,
			CalendarCreated: result.PersonalCalendar,
		})
		if err != nil {
			return nil, err
		}
		sent := uc.dispatcher.SendMany(ctx, []model.Notification{{AccountID: acc, Body: body}})
		result.TeamsNotification = sent.SuccessCount == 1
	}

	logger.Info("vacation approval processed",
		"personal_calendar", result.PersonalCalendar,
		"team_calendar", result.TeamCalendar,
		"teams_notification", result.TeamsNotification,
	)
	return result, nil
}

func (uc *AttendanceUseCase) createApprovalEvent(ctx context.Context, upn string, event *model.CalendarEvent) bool {
	if uc.deps.calendar == nil {
		logging.From(ctx).Warn("calendar is not configured, event skipped", "upn", upn)
		return false
	}
	if err := uc.deps.calendar.CreateEvent(ctx, upn, event); err != nil {
		logging.From(ctx).Error("failed to create vacation event", "error", err, "upn", upn)
		return false
	}
	return true
}

// approvalEvent spans whole days from the start date to the day after the end date.
func (uc *AttendanceUseCase) approvalEvent(v *model.VacationApproval, vacationType string, team bool) *model.CalendarEvent {
	loc := uc.deps.loc
	body := v.Reason
	if body == "" {
		body = vacationType + " 사용"
	}
	if team {
		body = fmt.Sprintf("직원: %s\n휴가 유형: %s\n기간: %s", v.EmployeeName, vacationType, v.Period())
		if v.Reason != "" {
			body += "\n사유: " + v.Reason
		}
	}

	return &model.CalendarEvent{
		Subject:  fmt.Sprintf("[휴가] %s - %s", v.EmployeeName, vacationType),
		Body:     body,
		Start:    v.StartDate.Time(loc),
		End:      v.EndDate.AddDays(1).Time(loc),
		TimeZone: loc.String(),
		AllDay:   true,
		Free:     team,
	}
}
