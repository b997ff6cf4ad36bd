package usecase

import (
	"bytes"
	"embed"
	"html/template"

	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	tmplDailySummary   = "daily_summary.html"
	tmplDailyReport    = "daily_report.html"
	tmplWeeklyVacation = "weekly_vacation_report.html"
	tmplVacationNotice = "vacation_reminder.html"
	tmplVacationHR     = "vacation_hr_notice.html"
	tmplWelcome        = "welcome.html"

	tmplVacationAnnouncement = "vacation_announcement.html"
	tmplVacationApproved     = "vacation_approved.html"
	tmplCalendarToday        = "calendar_today.html"
)

var reminderTemplates = map[types.NotifyKind]string{
	types.NotifyKindCheckInFirst:  "check_in_first.html",
	types.NotifyKindCheckInFinal:  "check_in_final.html",
	types.NotifyKindCheckOutFirst: "check_out_first.html",
	types.NotifyKindCheckOutFinal: "check_out_final.html",
}

// reminderData feeds the four reminder templates.
type reminderData struct {
	DisplayName string
	Date        types.Date
	Time        string
}

type summaryData struct {
	DisplayName     string
	Date            types.Date
	MissingCheckIn  bool
	MissingCheckOut bool
}

type reportRow struct {
	DisplayName     string
	SubjectID       types.SubjectID
	AccountID       types.AccountID
	MissingCheckIn  bool
	MissingCheckOut bool
}

type dailyReportData struct {
	Date                 types.Date
	Rows                 []reportRow
	MissingCheckInCount  int
	MissingCheckOutCount int
	Total                int
}

type vacationRow struct {
	DisplayName string
	SubjectID   types.SubjectID
	Type        string
	StartDate   types.Date
	EndDate     types.Date
	Period      string
}

type weeklyVacationData struct {
	Start types.Date
	End   types.Date
	Rows  []vacationRow
}

type vacationNoticeData struct {
	DisplayName string
	Type        string
	StartDate   types.Date
	EndDate     types.Date
	Returning   bool
}

type vacationHRData struct {
	Date      types.Date
	Starting  []vacationRow
	Returning []vacationRow
}

type announcementDay struct {
	Date    types.Date
	Weekday string
	Rows    []vacationRow
}

type announcementData struct {
	Date      types.Date
	Today     []vacationRow
	Week      []announcementDay
	WeekCount int
}

type vacationApprovedData struct {
	DisplayName     string
	Type            string
	Period          string
	Reason          string
	CalendarCreated bool
}

type calendarRow struct {
	Time     string
	Subject  string
	Location string
	Online   bool
}

type calendarTodayData struct {
	DisplayName string
	Date        string
	Events      []calendarRow
}

type welcomeData struct {
	DisplayName string
	EmployeeID  string
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", goerr.Wrap(err, "failed to render template", goerr.V("template", name))
	}
	return buf.String(), nil
}
