package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

type identityRepository struct {
	mu       sync.RWMutex
	mappings map[types.AccountID]*model.IdentityMapping
}

func newIdentityRepository() *identityRepository {
	return &identityRepository{
		mappings: make(map[types.AccountID]*model.IdentityMapping),
	}
}

func (r *identityRepository) List(ctx context.Context) ([]*model.IdentityMapping, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mappings := make([]*model.IdentityMapping, 0, len(r.mappings))
	for _, m := range r.mappings {
		mappingCopy := *m
		mappings = append(mappings, &mappingCopy)
	}

	sort.Slice(mappings, func(i, j int) bool {
		return mappings[i].AccountID < mappings[j].AccountID
	})
	return mappings, nil
}

func (r *identityRepository) Get(ctx context.Context, accountID types.AccountID) (*model.IdentityMapping, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.mappings[accountID]
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "identity mapping not found", goerr.V("account_id", accountID))
	}
	mappingCopy := *m
	return &mappingCopy, nil
}

func (r *identityRepository) Put(ctx context.Context, mapping *model.IdentityMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	mappingCopy := *mapping
	r.mappings[mapping.AccountID] = &mappingCopy
	return nil
}

func (r *identityRepository) Delete(ctx context.Context, accountID types.AccountID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.mappings[accountID]; !ok {
		return goerr.Wrap(ErrNotFound, "identity mapping not found", goerr.V("account_id", accountID))
	}
	delete(r.mappings, accountID)
	return nil
}
