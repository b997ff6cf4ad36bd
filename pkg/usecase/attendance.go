package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/itmoou/attendbot/pkg/service/archive"
	"github.com/itmoou/attendbot/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const (
	defaultWorkStart = 9
	defaultWorkEnd   = 18
	htmlContentType  = "text/html; charset=utf-8"
)

// AttendanceUseCase implements the scheduled attendance jobs.
type AttendanceUseCase struct {
	deps       dependencies
	ledger     *LedgerUseCase
	identity   *IdentityUseCase
	dispatcher *DispatchUseCase
}

type missingQuery func(ctx context.Context, date types.Date, subjectIDs []types.SubjectID) ([]types.SubjectID, error)

func (uc *AttendanceUseCase) now() time.Time {
	return uc.deps.clock().In(uc.deps.loc)
}

func (uc *AttendanceUseCase) today() types.Date {
	return types.DateOf(uc.deps.clock(), uc.deps.loc)
}

func (uc *AttendanceUseCase) requireSource() error {
	if uc.deps.source == nil {
		return goerr.Wrap(ErrNotConfigured, "attendance source is not configured")
	}
	return nil
}

// RemindCheckIn notifies mapped people who have not checked in today.
func (uc *AttendanceUseCase) RemindCheckIn(ctx context.Context, kind types.NotifyKind) error {
	if !kind.IsCheckIn() {
		return goerr.Wrap(ErrUnsupportedKind, "check-in reminder needs a check-in kind", goerr.V(KindKey, kind))
	}
	if err := uc.requireSource(); err != nil {
		return err
	}
	return uc.remind(ctx, kind, uc.deps.source.GetMissingCheckIns)
}

// RemindCheckOut notifies mapped people who checked in but not out today.
func (uc *AttendanceUseCase) RemindCheckOut(ctx context.Context, kind types.NotifyKind) error {
	if !kind.IsCheckOut() {
		return goerr.Wrap(ErrUnsupportedKind, "check-out reminder needs a check-out kind", goerr.V(KindKey, kind))
	}
	if err := uc.requireSource(); err != nil {
		return err
	}
	return uc.remind(ctx, kind, uc.deps.source.GetMissingCheckOuts)
}

func (uc *AttendanceUseCase) remind(ctx context.Context, kind types.NotifyKind, query missingQuery) error {
	logger := logging.From(ctx).With("kind", kind)
	now := uc.now()
	today := types.DateOf(now, uc.deps.loc)

	snapshot, err := uc.identity.ResolveAll(ctx)
	if err != nil {
		return err
	}
	if len(snapshot) == 0 {
		logger.Info("no identity mappings, nothing to remind")
		return nil
	}

	missing, err := query(ctx, today, SubjectIDsOf(snapshot))
	if err != nil {
		return goerr.Wrap(err, "failed to query attendance", goerr.V(DateKey, today), goerr.V(KindKey, kind))
	}

	targets := missing
	if !uc.deps.ledgerClaim {
		targets, err = uc.ledger.FilterUnsent(ctx, today, missing, kind)
		if err != nil {
			return err
		}
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })

	index := reverseIndex(snapshot)
	subjectOf := make(map[types.AccountID]types.SubjectID, len(targets))
	notifications := make([]model.Notification, 0, len(targets))
	unmapped := 0
	for _, subj := range targets {
		acc, ok := index[subj]
		if !ok {
			logger.Warn("subject has no identity mapping", "subject_id", subj)
			unmapped++
			continue
		}

		if uc.deps.ledgerClaim {
			won, err := uc.ledger.Claim(ctx, today, subj, kind)
			if err != nil {
				logger.Warn("failed to claim notification", "error", err, "subject_id", subj)
				continue
			}
			if !won {
				continue
			}
		}

		body, err := render(reminderTemplates[kind], reminderData{
			DisplayName: displayName(snapshot[acc], acc),
			Date:        today,
			Time:        now.Format("15:04"),
		})
		if err != nil {
			return err
		}
		subjectOf[acc] = subj
		notifications = append(notifications, model.Notification{AccountID: acc, Body: body})
	}

	result := uc.dispatcher.SendMany(ctx, notifications)
	marked := 0
	if !uc.deps.ledgerClaim {
		marked = uc.ledger.MarkManySent(ctx, today, succeededSubjects(result, subjectOf), kind)
	}

	logger.Info("reminder finished",
		"date", today,
		"mapped", len(snapshot),
		"missing", len(missing),
		"targets", len(targets),
		"unmapped", unmapped,
		"sent", result.SuccessCount,
		"failed", result.FailedCount,
		"not_onboarded", len(result.NotOnboardedAccountIDs),
		"marked", marked,
	)
	return nil
}

// DailySummary sends one message per person listing the checks still missing today.
func (uc *AttendanceUseCase) DailySummary(ctx context.Context) error {
	if err := uc.requireSource(); err != nil {
		return err
	}
	kind := types.NotifyKindDailySummary
	logger := logging.From(ctx).With("kind", kind)
	today := uc.today()

	snapshot, err := uc.identity.ResolveAll(ctx)
	if err != nil {
		return err
	}
	if len(snapshot) == 0 {
		logger.Info("no identity mappings, nothing to summarize")
		return nil
	}

	missingIn, missingOut, err := uc.queryMissing(ctx, today, SubjectIDsOf(snapshot))
	if err != nil {
		return err
	}

	targets, err := uc.ledger.FilterUnsent(ctx, today, unionSubjects(missingIn, missingOut), kind)
	if err != nil {
		return err
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })

	index := reverseIndex(snapshot)
	subjectOf := make(map[types.AccountID]types.SubjectID, len(targets))
	notifications := make([]model.Notification, 0, len(targets))
	for _, subj := range targets {
		acc, ok := index[subj]
		if !ok {
			logger.Warn("subject has no identity mapping", "subject_id", subj)
			continue
		}
		body, err := render(tmplDailySummary, summaryData{
			DisplayName:     displayName(snapshot[acc], acc),
			Date:            today,
			MissingCheckIn:  missingIn[subj],
			MissingCheckOut: missingOut[subj],
		})
		if err != nil {
			return err
		}
		subjectOf[acc] = subj
		notifications = append(notifications, model.Notification{AccountID: acc, Body: body})
	}

	result := uc.dispatcher.SendMany(ctx, notifications)
	marked := uc.ledger.MarkManySent(ctx, today, succeededSubjects(result, subjectOf), kind)

	logger.Info("daily summary finished",
		"date", today,
		"missing_check_in", len(missingIn),
		"missing_check_out", len(missingOut),
		"targets", len(targets),
		"sent", result.SuccessCount,
		"failed", result.FailedCount,
		"marked", marked,
	)
	return nil
}

func (uc *AttendanceUseCase) queryMissing(ctx context.Context, date types.Date, ids []types.SubjectID) (map[types.SubjectID]bool, map[types.SubjectID]bool, error) {
	in, err := uc.deps.source.GetMissingCheckIns(ctx, date, ids)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to query missing check-ins", goerr.V(DateKey, date))
	}
	out, err := uc.deps.source.GetMissingCheckOuts(ctx, date, ids)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to query missing check-outs", goerr.V(DateKey, date))
	}
	return toSet(in), toSet(out), nil
}

// DailyReport mails HR the check-ins and check-outs missing yesterday.
func (uc *AttendanceUseCase) DailyReport(ctx context.Context) error {
	if err := uc.requireSource(); err != nil {
		return err
	}
	logger := logging.From(ctx)
	date := uc.today().AddDays(-1)

	snapshot, err := uc.identity.ResolveAll(ctx)
	if err != nil {
		return err
	}
	if len(snapshot) == 0 {
		logger.Info("no identity mappings, skipping daily report")
		return nil
	}

	missingIn, missingOut, err := uc.queryMissing(ctx, date, SubjectIDsOf(snapshot))
	if err != nil {
		return err
	}
	// counts follow the rows so the mail subject matches its body
	index := reverseIndex(snapshot)
	data := dailyReportData{Date: date}
	var unmapped []types.SubjectID
	for _, subj := range unionSubjects(missingIn, missingOut) {
		acc, ok := index[subj]
		if !ok {
			unmapped = append(unmapped, subj)
			continue
		}
		if missingIn[subj] {
			data.MissingCheckInCount++
		}
		if missingOut[subj] {
			data.MissingCheckOutCount++
		}
		data.Rows = append(data.Rows, reportRow{
			DisplayName:     displayName(snapshot[acc], acc),
			SubjectID:       subj,
			AccountID:       acc,
			MissingCheckIn:  missingIn[subj],
			MissingCheckOut: missingOut[subj],
		})
	}
	if len(unmapped) > 0 {
		logger.Warn("vendor reported missing records for unmapped subjects", "date", date, "subjects", unmapped)
	}
	total := data.MissingCheckInCount + data.MissingCheckOutCount
	data.Total = total
	if total == 0 {
		logger.Info("no missing records, skipping daily report", "date", date)
		return nil
	}
	sort.SliceStable(data.Rows, func(i, j int) bool { return data.Rows[i].DisplayName < data.Rows[j].DisplayName })

	html, err := render(tmplDailyReport, data)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("[근태 리포트] %s 근태 누락 현황 (%d건)", date, total)
	if err := uc.mailHR(ctx, subject, html); err != nil {
		return err
	}
	uc.archive(ctx, archive.DailyReportName(date), html)

	logger.Info("daily report sent", "date", date, "total", total, "rows", len(data.Rows))
	return nil
}

// WeeklyVacationReport mails HR every vacation from Monday of this week to Sunday of next week.
func (uc *AttendanceUseCase) WeeklyVacationReport(ctx context.Context) error {
	if err := uc.requireSource(); err != nil {
		return err
	}
	logger := logging.From(ctx)
	start, end := vacationWindow(uc.now())

	snapshot, err := uc.identity.ResolveAll(ctx)
	if err != nil {
		return err
	}
	if len(snapshot) == 0 {
		logger.Info("no identity mappings, skipping weekly vacation report")
		return nil
	}

	vacations, err := uc.deps.source.GetVacationsInRange(ctx, start, end, SubjectIDsOf(snapshot))
	if err != nil {
		return goerr.Wrap(err, "failed to query vacations", goerr.V("start", start), goerr.V("end", end))
	}

	index := reverseIndex(snapshot)
	data := weeklyVacationData{Start: start, End: end}
	for _, v := range vacations {
		data.Rows = append(data.Rows, uc.vacationRow(snapshot, index, v))
	}

	html, err := render(tmplWeeklyVacation, data)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("[휴가 현황] %s ~ %s 휴가자 현황 (%d건)", start, end, len(vacations))
	if err := uc.mailHR(ctx, subject, html); err != nil {
		return err
	}
	uc.archive(ctx, archive.WeeklyReportName(start), html)

	logger.Info("weekly vacation report sent", "start", start, "end", end, "vacations", len(vacations))
	return nil
}

// vacationWindow returns Monday of the week containing now and the Sunday 13 days later.
func vacationWindow(now time.Time) (types.Date, types.Date) {
	offset := (int(now.Weekday()) + 6) % 7
	monday := types.DateOf(now, now.Location()).AddDays(-offset)
	return monday, monday.AddDays(13)
}

// SyncVacationCalendar writes an out-of-office event for each time-off starting today.
func (uc *AttendanceUseCase) SyncVacationCalendar(ctx context.Context) error {
	if err := uc.requireSource(); err != nil {
		return err
	}
	if uc.deps.calendar == nil {
		return goerr.Wrap(ErrNotConfigured, "calendar is not configured")
	}
	logger := logging.From(ctx)
	today := uc.today()

	snapshot, err := uc.identity.ResolveAll(ctx)
	if err != nil {
		return err
	}
	if len(snapshot) == 0 {
		logger.Info("no identity mappings, skipping calendar sync")
		return nil
	}

	timeOffs, err := uc.deps.source.GetTimeOffs(ctx, today, SubjectIDsOf(snapshot))
	if err != nil {
		return goerr.Wrap(err, "failed to query time-offs", goerr.V(DateKey, today))
	}

	index := reverseIndex(snapshot)
	seen := map[string]bool{}
	created, failed := 0, 0
	for _, t := range timeOffs {
		if t.StartDate != today || seen[t.Key()] {
			continue
		}
		seen[t.Key()] = true

		acc, ok := index[t.SubjectID]
		if !ok {
			logger.Warn("subject has no identity mapping", "subject_id", t.SubjectID)
			continue
		}

		event := uc.calendarEvent(t, displayName(snapshot[acc], acc))
		if err := uc.deps.calendar.CreateEvent(ctx, acc.String(), event); err != nil {
			logger.Error("failed to create calendar event", "error", err, "account_id", acc, "type", t.Type)
			failed++
			continue
		}
		created++
	}

	logger.Info("vacation calendar synced", "date", today, "time_offs", len(timeOffs), "created", created, "failed", failed)
	return nil
}

func (uc *AttendanceUseCase) calendarEvent(t *model.TimeOff, name string) *model.CalendarEvent {
	loc := uc.deps.loc
	start := t.StartDate.Time(loc).Add(defaultWorkStart * time.Hour)
	if t.StartAt != nil {
		start = t.StartAt.In(loc)
	}
	end := t.EndDate.Time(loc).Add(defaultWorkEnd * time.Hour)
	if t.EndAt != nil {
		end = t.EndAt.In(loc)
	}

	return &model.CalendarEvent{
		Subject:  calendarSubject(t.Type),
		Body:     fmt.Sprintf("%s %s (%s ~ %s)", name, t.Type, t.StartDate, t.EndDate),
		Start:    start,
		End:      end,
		TimeZone: loc.String(),
	}
}

// calendarSubject picks the event title by time-off type.
func calendarSubject(timeOffType string) string {
	switch {
	case strings.Contains(timeOffType, "연차"):
		return "연차 🏖️"
	case strings.Contains(timeOffType, "반차"):
		return "반차 🌤️"
	case strings.Contains(timeOffType, "외근"):
		return "외근 🚗"
	case strings.Contains(timeOffType, "재택"):
		return "재택근무 🏠"
	default:
		return "휴가 🏖️"
	}
}

// VacationReminder tells people whose vacation starts tomorrow or ends today,
// and mails HR the same list.
func (uc *AttendanceUseCase) VacationReminder(ctx context.Context) error {
	if err := uc.requireSource(); err != nil {
		return err
	}
	logger := logging.From(ctx)
	now := uc.now()
	today := types.DateOf(now, uc.deps.loc)
	tomorrow := today.AddDays(1)
	tomorrowIsWeekend := isWeekend(tomorrow.Time(uc.deps.loc))

	snapshot, err := uc.identity.ResolveAll(ctx)
	if err != nil {
		return err
	}
	if len(snapshot) == 0 {
		logger.Info("no identity mappings, skipping vacation reminder")
		return nil
	}
	ids := SubjectIDsOf(snapshot)
	index := reverseIndex(snapshot)

	var starting, returning []*model.TimeOff
	if !tomorrowIsWeekend {
		upcoming, err := uc.deps.source.GetTimeOffs(ctx, tomorrow, ids)
		if err != nil {
			return goerr.Wrap(err, "failed to query time-offs", goerr.V(DateKey, tomorrow))
		}
		starting = dedupTimeOffs(upcoming, func(t *model.TimeOff) bool { return t.StartDate == tomorrow })
	}
	current, err := uc.deps.source.GetTimeOffs(ctx, today, ids)
	if err != nil {
		return goerr.Wrap(err, "failed to query time-offs", goerr.V(DateKey, today))
	}
	returning = dedupTimeOffs(current, func(t *model.TimeOff) bool { return t.EndDate == today })

	if len(starting) == 0 && len(returning) == 0 {
		logger.Info("no vacations starting or ending", "date", today)
		return nil
	}

	var notifications []model.Notification
	hr := vacationHRData{Date: today}
	for _, group := range []struct {
		list      []*model.TimeOff
		returning bool
	}{{starting, false}, {returning, true}} {
		for _, t := range group.list {
			row := uc.vacationRow(snapshot, index, t)
			if group.returning {
				hr.Returning = append(hr.Returning, row)
			} else {
				hr.Starting = append(hr.Starting, row)
			}

			acc, ok := index[t.SubjectID]
			if !ok {
				continue
			}
			body, err := render(tmplVacationNotice, vacationNoticeData{
				DisplayName: row.DisplayName,
				Type:        t.Type,
				StartDate:   t.StartDate,
				EndDate:     t.EndDate,
				Returning:   group.returning,
			})
			if err != nil {
				return err
			}
			notifications = append(notifications, model.Notification{AccountID: acc, Body: body})
		}
	}

	result := uc.dispatcher.SendMany(ctx, notifications)

	if uc.deps.mailer != nil && len(uc.deps.hrRecipients) > 0 {
		html, err := render(tmplVacationHR, hr)
		if err != nil {
			return err
		}
		subject := fmt.Sprintf("[휴가 안내] %s 휴가 시작 %d명, 복귀 %d명", today, len(hr.Starting), len(hr.Returning))
		if err := uc.mailHR(ctx, subject, html); err != nil {
			return err
		}
	}

	logger.Info("vacation reminder finished",
		"date", today,
		"starting", len(starting),
		"returning", len(returning),
		"sent", result.SuccessCount,
		"failed", result.FailedCount,
	)
	return nil
}

// RotateFlexToken forces a vendor token refresh so the refresh token never expires unused.
func (uc *AttendanceUseCase) RotateFlexToken(ctx context.Context) error {
	if uc.deps.rotator == nil {
		return goerr.Wrap(ErrNotConfigured, "token rotator is not configured")
	}
	if err := uc.deps.rotator.Rotate(ctx, types.CredentialFlex); err != nil {
		return goerr.Wrap(err, "failed to rotate flex token")
	}
	logging.From(ctx).Info("flex token rotated")
	return nil
}

func (uc *AttendanceUseCase) vacationRow(snapshot map[types.AccountID]model.IdentityEntry, index map[types.SubjectID]types.AccountID, t *model.TimeOff) vacationRow {
	name := string(t.SubjectID)
	if acc, ok := index[t.SubjectID]; ok {
		name = displayName(snapshot[acc], acc)
	}
	period := string(t.StartDate)
	if t.EndDate != t.StartDate {
		period += " ~ " + string(t.EndDate)
	}
	if t.StartAt != nil && t.EndAt != nil {
		period += fmt.Sprintf(" (%s-%s)", t.StartAt.In(uc.deps.loc).Format("15:04"), t.EndAt.In(uc.deps.loc).Format("15:04"))
	}
	return vacationRow{
		DisplayName: name,
		SubjectID:   t.SubjectID,
		Type:        t.Type,
		StartDate:   t.StartDate,
		EndDate:     t.EndDate,
		Period:      period,
	}
}

func (uc *AttendanceUseCase) mailHR(ctx context.Context, subject, html string) error {
	if uc.deps.mailer == nil || len(uc.deps.hrRecipients) == 0 {
		logging.From(ctx).Warn("mailer or HR recipients not configured, report not mailed", "subject", subject)
		return nil
	}
	if err := uc.deps.mailer.SendMail(ctx, uc.deps.hrRecipients, subject, html); err != nil {
		return goerr.Wrap(err, "failed to mail HR", goerr.V("subject", subject))
	}
	return nil
}

// archive stores a copy of the report when an archiver is configured. Failures are logged only.
func (uc *AttendanceUseCase) archive(ctx context.Context, name, html string) {
	if uc.deps.archiver == nil {
		return
	}
	if err := uc.deps.archiver.Put(ctx, name, htmlContentType, []byte(html)); err != nil {
		logging.From(ctx).Error("failed to archive report", "error", err, "name", name)
	}
}

func displayName(entry model.IdentityEntry, acc types.AccountID) string {
	if entry.DisplayName != "" {
		return entry.DisplayName
	}
	return acc.String()
}

func toSet(ids []types.SubjectID) map[types.SubjectID]bool {
	set := make(map[types.SubjectID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func unionSubjects(sets ...map[types.SubjectID]bool) []types.SubjectID {
	seen := map[types.SubjectID]bool{}
	var out []types.SubjectID
	for _, set := range sets {
		for subj := range set {
			if !seen[subj] {
				seen[subj] = true
				out = append(out, subj)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func dedupTimeOffs(list []*model.TimeOff, keep func(*model.TimeOff) bool) []*model.TimeOff {
	seen := map[string]bool{}
	out := make([]*model.TimeOff, 0, len(list))
	for _, t := range list {
		if !keep(t) || seen[t.Key()] {
			continue
		}
		seen[t.Key()] = true
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })
	return out
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}
