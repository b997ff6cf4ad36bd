package memory

import (
	"context"
	"sync"

	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/domain/types"
)

type refreshTokenRepository struct {
	mu      sync.RWMutex
	records map[types.CredentialSet]*model.RefreshTokenRecord
}

func newRefreshTokenRepository() *refreshTokenRepository {
	return &refreshTokenRepository{
		records: make(map[types.CredentialSet]*model.RefreshTokenRecord),
	}
}

func (r *refreshTokenRepository) Get(ctx context.Context, credential types.CredentialSet) (*model.RefreshTokenRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[credential]
	if !ok {
		return nil, nil
	}
	recordCopy := *rec
	return &recordCopy, nil
}

func (r *refreshTokenRepository) Put(ctx context.Context, record *model.RefreshTokenRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	recordCopy := *record
	r.records[record.Credential] = &recordCopy
	return nil
}
