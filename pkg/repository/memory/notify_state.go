package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/domain/types"
)

type notifyStateRepository struct {
	mu     sync.RWMutex
	states map[string]*model.NotifyState
}

func newNotifyStateRepository() *notifyStateRepository {
	return &notifyStateRepository{
		states: make(map[string]*model.NotifyState),
	}
}

func (r *notifyStateRepository) Get(ctx context.Context, date types.Date, subjectID types.SubjectID) (*model.NotifyState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.states[model.NotifyStateKey(date, subjectID)]
	if !ok {
		return nil, nil
	}
	return state.Copy(), nil
}

func (r *notifyStateRepository) SetFlag(ctx context.Context, date types.Date, subjectID types.SubjectID, kind types.NotifyKind, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.setLocked(date, subjectID, kind, now)
	return nil
}

func (r *notifyStateRepository) Claim(ctx context.Context, date types.Date, subjectID types.SubjectID, kind types.NotifyKind, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.states[model.NotifyStateKey(date, subjectID)].Sent(kind) {
		return false, nil
	}
	r.setLocked(date, subjectID, kind, now)
	return true, nil
}

func (r *notifyStateRepository) setLocked(date types.Date, subjectID types.SubjectID, kind types.NotifyKind, now time.Time) {
	key := model.NotifyStateKey(date, subjectID)
	state, ok := r.states[key]
	if !ok {
		state = model.NewNotifyState(date, subjectID)
		r.states[key] = state
	}
	state.Flags[kind] = true
	state.LastUpdated = now
}

func (r *notifyStateRepository) ListByDate(ctx context.Context, date types.Date) ([]*model.NotifyState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var states []*model.NotifyState
	for _, state := range r.states {
		if state.Date == date {
			states = append(states, state.Copy())
		}
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].SubjectID < states[j].SubjectID
	})
	return states, nil
}
