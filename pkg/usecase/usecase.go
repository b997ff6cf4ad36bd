package usecase

import (
	"time"

	"github.com/itmoou/attendbot/pkg/domain/interfaces"
	"github.com/itmoou/attendbot/pkg/service/metrics"
)

const (
	defaultLedgerConcurrency   = 8
	defaultDispatchConcurrency = 4
)

type UseCases struct {
	repo interfaces.Repository
	deps dependencies

	Ledger     *LedgerUseCase
	Identity   *IdentityUseCase
	Dispatcher *DispatchUseCase
	Attendance *AttendanceUseCase
	Onboarding *OnboardingUseCase
}

// dependencies collects everything configured through Options.
type dependencies struct {
	clock               func() time.Time
	loc                 *time.Location
	messenger           interfaces.Messenger
	connector           interfaces.Connector
	source              interfaces.AttendanceSource
	mailer              interfaces.Mailer
	calendar            interfaces.Calendar
	directory           interfaces.Directory
	archiver            interfaces.Archiver
	alerter             interfaces.Alerter
	rotator             interfaces.TokenRotator
	metrics             metrics.Recorder
	hrRecipients        []string
	teamCalendar        string
	vacationBroadcast   bool
	ledgerConcurrency   int
	dispatchConcurrency int
	ledgerClaim         bool
}

type Option func(*dependencies)

func WithClock(clock func() time.Time) Option {
	return func(d *dependencies) {
		d.clock = clock
	}
}

// WithLocation sets the zone used for calendar dates. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(d *dependencies) {
		d.loc = loc
	}
}

func WithMessenger(m interfaces.Messenger) Option {
	return func(d *dependencies) {
		d.messenger = m
	}
}

func WithConnector(c interfaces.Connector) Option {
	return func(d *dependencies) {
		d.connector = c
	}
}

func WithAttendanceSource(s interfaces.AttendanceSource) Option {
	return func(d *dependencies) {
		d.source = s
	}
}

func WithMailer(m interfaces.Mailer) Option {
	return func(d *dependencies) {
		d.mailer = m
	}
}

func WithCalendar(c interfaces.Calendar) Option {
	return func(d *dependencies) {
		d.calendar = c
	}
}

func WithDirectory(dir interfaces.Directory) Option {
	return func(d *dependencies) {
		d.directory = dir
	}
}

func WithArchiver(a interfaces.Archiver) Option {
	return func(d *dependencies) {
		d.archiver = a
	}
}

func WithAlerter(a interfaces.Alerter) Option {
	return func(d *dependencies) {
		d.alerter = a
	}
}

func WithTokenRotator(r interfaces.TokenRotator) Option {
	return func(d *dependencies) {
		d.rotator = r
	}
}

func WithMetrics(m metrics.Recorder) Option {
	return func(d *dependencies) {
		d.metrics = m
	}
}

// WithHRRecipients sets the mail addresses that receive reports.
func WithHRRecipients(addrs []string) Option {
	return func(d *dependencies) {
		d.hrRecipients = addrs
	}
}

// WithTeamCalendar sets the mailbox whose calendar shows approved vacations
// for the whole team.
func WithTeamCalendar(upn string) Option {
	return func(d *dependencies) {
		d.teamCalendar = upn
	}
}

// WithVacationBroadcast posts the morning vacation announcement to every
// mapped account in addition to mailing HR.
func WithVacationBroadcast(enabled bool) Option {
	return func(d *dependencies) {
		d.vacationBroadcast = enabled
	}
}

func WithLedgerConcurrency(n int) Option {
	return func(d *dependencies) {
		if n > 0 {
			d.ledgerConcurrency = n
		}
	}
}

func WithDispatchConcurrency(n int) Option {
	return func(d *dependencies) {
		if n > 0 {
			d.dispatchConcurrency = n
		}
	}
}

// WithLedgerClaim makes reminder jobs claim each recipient atomically right
// before sending instead of filtering first and marking after.
func WithLedgerClaim(enabled bool) Option {
	return func(d *dependencies) {
		d.ledgerClaim = enabled
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	deps := dependencies{
		clock:               time.Now,
		loc:                 time.UTC,
		metrics:             metrics.Nop{},
		ledgerConcurrency:   defaultLedgerConcurrency,
		dispatchConcurrency: defaultDispatchConcurrency,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	uc := &UseCases{
		repo: repo,
		deps: deps,
	}

	uc.Ledger = NewLedgerUseCase(repo, deps.clock, deps.ledgerConcurrency)
	uc.Identity = NewIdentityUseCase(repo, deps.clock)
	uc.Dispatcher = NewDispatchUseCase(repo, deps.messenger, deps.dispatchConcurrency, deps.metrics)
	uc.Attendance = &AttendanceUseCase{
		deps:       deps,
		ledger:     uc.Ledger,
		identity:   uc.Identity,
		dispatcher: uc.Dispatcher,
	}
	uc.Onboarding = &OnboardingUseCase{
		repo:     repo,
		deps:     deps,
		identity: uc.Identity,
	}

	return uc
}

// Location returns the zone calendar dates are computed in.
func (uc *UseCases) Location() *time.Location {
	return uc.deps.loc
}
