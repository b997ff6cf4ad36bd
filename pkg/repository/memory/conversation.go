package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/domain/types"
)

type conversationRepository struct {
	mu      sync.RWMutex
	handles map[types.AccountID]*model.ConversationHandle
}

func newConversationRepository() *conversationRepository {
	return &conversationRepository{
		handles: make(map[types.AccountID]*model.ConversationHandle),
	}
}

func (r *conversationRepository) Get(ctx context.Context, accountID types.AccountID) (*model.ConversationHandle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handles[accountID]
	if !ok {
		return nil, nil
	}
	handleCopy := *h
	return &handleCopy, nil
}

func (r *conversationRepository) Put(ctx context.Context, handle *model.ConversationHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	handleCopy := *handle
	r.handles[handle.AccountID] = &handleCopy
	return nil
}

func (r *conversationRepository) List(ctx context.Context) ([]*model.ConversationHandle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := make([]*model.ConversationHandle, 0, len(r.handles))
	for _, h := range r.handles {
		handleCopy := *h
		handles = append(handles, &handleCopy)
	}
	sort.Slice(handles, func(i, j int) bool {
		return handles[i].AccountID < handles[j].AccountID
	})
	return handles, nil
}
