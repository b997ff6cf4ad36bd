package usecase_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/itmoou/attendbot/pkg/domain/interfaces"
	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/itmoou/attendbot/pkg/repository/memory"
)

var errInjected = errors.New("injected failure")

// mockMessenger records sent messages and fails for configured accounts
type mockMessenger struct {
	mu      sync.Mutex
	sent    map[types.AccountID][]string
	failFor map[types.AccountID]error
	panicOn map[types.AccountID]bool
}

func newMockMessenger() *mockMessenger {
	return &mockMessenger{
		sent:    map[types.AccountID][]string{},
		failFor: map[types.AccountID]error{},
		panicOn: map[types.AccountID]bool{},
	}
}

func (m *mockMessenger) SendMessage(ctx context.Context, handle *model.ConversationHandle, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panicOn[handle.AccountID] {
		panic("messenger exploded")
	}
	if err := m.failFor[handle.AccountID]; err != nil {
		return err
	}
	m.sent[handle.AccountID] = append(m.sent[handle.AccountID], html)
	return nil
}

func (m *mockMessenger) sentTo() map[types.AccountID][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[types.AccountID][]string, len(m.sent))
	for k, v := range m.sent {
		out[k] = append([]string{}, v...)
	}
	return out
}

// mockSource returns canned vendor data and counts calls
type mockSource struct {
	mu               sync.Mutex
	missingIn        map[types.Date][]types.SubjectID
	missingOut       map[types.Date][]types.SubjectID
	timeOffs         map[types.Date][]*model.TimeOff
	vacations        []*model.TimeOff
	err              error
	queriedSubjects  [][]types.SubjectID
	rangeStart       types.Date
	rangeEnd         types.Date
	missingInCalls   int
	missingOutCalls  int
	timeOffCallDates []types.Date
}

func newMockSource() *mockSource {
	return &mockSource{
		missingIn:  map[types.Date][]types.SubjectID{},
		missingOut: map[types.Date][]types.SubjectID{},
		timeOffs:   map[types.Date][]*model.TimeOff{},
	}
}

func (m *mockSource) GetMissingCheckIns(ctx context.Context, date types.Date, ids []types.SubjectID) ([]types.SubjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.missingInCalls++
	m.queriedSubjects = append(m.queriedSubjects, ids)
	if m.err != nil {
		return nil, m.err
	}
	return m.missingIn[date], nil
}

func (m *mockSource) GetMissingCheckOuts(ctx context.Context, date types.Date, ids []types.SubjectID) ([]types.SubjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.missingOutCalls++
	if m.err != nil {
		return nil, m.err
	}
	return m.missingOut[date], nil
}

func (m *mockSource) GetTimeOffs(ctx context.Context, date types.Date, ids []types.SubjectID) ([]*model.TimeOff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeOffCallDates = append(m.timeOffCallDates, date)
	if m.err != nil {
		return nil, m.err
	}
	return m.timeOffs[date], nil
}

func (m *mockSource) GetVacationsInRange(ctx context.Context, start, end types.Date, ids []types.SubjectID) ([]*model.TimeOff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rangeStart, m.rangeEnd = start, end
	if m.err != nil {
		return nil, m.err
	}
	return m.vacations, nil
}

type sentMail struct {
	to      []string
	subject string
	html    string
}

type mockMailer struct {
	mu    sync.Mutex
	mails []sentMail
	err   error
}

func (m *mockMailer) SendMail(ctx context.Context, to []string, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.mails = append(m.mails, sentMail{to: to, subject: subject, html: html})
	return nil
}

type mockCalendar struct {
	mu        sync.Mutex
	events    map[string][]*model.CalendarEvent
	failFor   map[string]bool
	listed    map[string][]*model.CalendarEvent
	listFail  map[string]bool
	listRange [2]time.Time
}

func newMockCalendar() *mockCalendar {
	return &mockCalendar{
		events:   map[string][]*model.CalendarEvent{},
		failFor:  map[string]bool{},
		listed:   map[string][]*model.CalendarEvent{},
		listFail: map[string]bool{},
	}
}

func (m *mockCalendar) ListEvents(ctx context.Context, upn string, start, end time.Time) ([]*model.CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listRange = [2]time.Time{start, end}
	if m.listFail[upn] {
		return nil, errInjected
	}
	return m.listed[upn], nil
}

func (m *mockCalendar) CreateEvent(ctx context.Context, upn string, event *model.CalendarEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[upn] {
		return errInjected
	}
	m.events[upn] = append(m.events[upn], event)
	return nil
}

type mockArchiver struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *mockArchiver) Put(ctx context.Context, name, contentType string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[name] = data
	return nil
}

type mockDirectory struct {
	users map[string]*model.DirectoryUser
	err   error
}

func (m *mockDirectory) LookupUser(ctx context.Context, upn string) (*model.DirectoryUser, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.users[upn], nil
}

type mockConnector struct {
	mu        sync.Mutex
	members   map[string]*model.TeamsMember
	memberErr error
	replies   []string
	replyErr  error
}

func (m *mockConnector) GetMember(ctx context.Context, serviceURL, conversationID, userID string) (*model.TeamsMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.memberErr != nil {
		return nil, m.memberErr
	}
	member, ok := m.members[userID]
	if !ok {
		return nil, errors.New("member not found")
	}
	return member, nil
}

func (m *mockConnector) Reply(ctx context.Context, inbound *model.Activity, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replyErr != nil {
		return m.replyErr
	}
	m.replies = append(m.replies, html)
	return nil
}

type mockRotator struct {
	mu    sync.Mutex
	calls []types.CredentialSet
	err   error
}

func (m *mockRotator) Rotate(ctx context.Context, set types.CredentialSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, set)
	return m.err
}

type mockAlerter struct {
	mu     sync.Mutex
	titles []string
	done   chan struct{}
}

func (m *mockAlerter) Alert(ctx context.Context, title, text string) error {
	m.mu.Lock()
	m.titles = append(m.titles, title)
	m.mu.Unlock()
	if m.done != nil {
		m.done <- struct{}{}
	}
	return nil
}

// flakyRepository fails notify state writes for selected subjects
type flakyRepository struct {
	*memory.Memory
	states *flakyNotifyStates
}

type flakyNotifyStates struct {
	interfaces.NotifyStateRepository
	failSet map[types.SubjectID]bool
	failGet map[types.SubjectID]bool
}

func newFlakyRepository() *flakyRepository {
	repo := memory.New()
	return &flakyRepository{
		Memory: repo,
		states: &flakyNotifyStates{
			NotifyStateRepository: repo.NotifyState(),
			failSet:               map[types.SubjectID]bool{},
			failGet:               map[types.SubjectID]bool{},
		},
	}
}

func (r *flakyRepository) NotifyState() interfaces.NotifyStateRepository {
	return r.states
}

func (s *flakyNotifyStates) Get(ctx context.Context, date types.Date, subjectID types.SubjectID) (*model.NotifyState, error) {
	if s.failGet[subjectID] {
		return nil, errInjected
	}
	return s.NotifyStateRepository.Get(ctx, date, subjectID)
}

func (s *flakyNotifyStates) SetFlag(ctx context.Context, date types.Date, subjectID types.SubjectID, kind types.NotifyKind, now time.Time) error {
	if s.failSet[subjectID] {
		return errInjected
	}
	return s.NotifyStateRepository.SetFlag(ctx, date, subjectID, kind, now)
}

var _ interfaces.Repository = &flakyRepository{}
