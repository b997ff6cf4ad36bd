package usecase

// Render is exported for testing
var Render = render

// CalendarSubject is exported for testing
var CalendarSubject = calendarSubject

// VacationWindow is exported for testing
var VacationWindow = vacationWindow

// Template names exported for testing
const (
	TmplDailySummary   = tmplDailySummary
	TmplDailyReport    = tmplDailyReport
	TmplWeeklyVacation = tmplWeeklyVacation
	TmplVacationNotice = tmplVacationNotice
	TmplVacationHR     = tmplVacationHR
	TmplWelcome        = tmplWelcome

	TmplVacationAnnouncement = tmplVacationAnnouncement
	TmplVacationApproved     = tmplVacationApproved
	TmplCalendarToday        = tmplCalendarToday
)

// ReminderTemplates is exported for testing
var ReminderTemplates = reminderTemplates

// Template data types exported for testing
type (
	ReminderData       = reminderData
	SummaryData        = summaryData
	ReportRow          = reportRow
	DailyReportData    = dailyReportData
	VacationRow        = vacationRow
	WeeklyVacationData = weeklyVacationData
	VacationNoticeData = vacationNoticeData
	VacationHRData     = vacationHRData
	WelcomeData        = welcomeData

	AnnouncementDay      = announcementDay
	AnnouncementData     = announcementData
	VacationApprovedData = vacationApprovedData
	CalendarRow          = calendarRow
	CalendarTodayData    = calendarTodayData
)

// KoreanDate is exported for testing
var KoreanDate = koreanDate
