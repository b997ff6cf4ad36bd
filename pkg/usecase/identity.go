package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/itmoou/attendbot/pkg/domain/interfaces"
	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/itmoou/attendbot/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// IdentityUseCase maps chat accounts to vendor employee numbers.
type IdentityUseCase struct {
	repo  interfaces.Repository
	clock func() time.Time
}

func NewIdentityUseCase(repo interfaces.Repository, clock func() time.Time) *IdentityUseCase {
	if clock == nil {
		clock = time.Now
	}
	return &IdentityUseCase{
		repo:  repo,
		clock: clock,
	}
}

// ResolveAll returns a snapshot of every mapping keyed by account.
func (uc *IdentityUseCase) ResolveAll(ctx context.Context) (map[types.AccountID]model.IdentityEntry, error) {
	mappings, err := uc.repo.Identity().List(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list identity mappings")
	}

	snapshot := make(map[types.AccountID]model.IdentityEntry, len(mappings))
	for _, m := range mappings {
		snapshot[m.AccountID] = model.IdentityEntry{
			SubjectID:   m.SubjectID,
			DisplayName: m.DisplayName,
		}
	}
	return snapshot, nil
}

// SubjectIDsOf projects a snapshot onto its subject IDs, sorted and without duplicates.
func SubjectIDsOf(snapshot map[types.AccountID]model.IdentityEntry) []types.SubjectID {
	seen := make(map[types.SubjectID]bool, len(snapshot))
	ids := make([]types.SubjectID, 0, len(snapshot))
	for _, entry := range snapshot {
		if entry.SubjectID == "" || seen[entry.SubjectID] {
			continue
		}
		seen[entry.SubjectID] = true
		ids = append(ids, entry.SubjectID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// sortedAccounts returns the snapshot keys in ascending order.
func sortedAccounts(snapshot map[types.AccountID]model.IdentityEntry) []types.AccountID {
	accounts := make([]types.AccountID, 0, len(snapshot))
	for id := range snapshot {
		accounts = append(accounts, id)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i] < accounts[j] })
	return accounts
}

// lookupAccount scans accounts in sorted order; the first match wins.
func lookupAccount(snapshot map[types.AccountID]model.IdentityEntry, subjectID types.SubjectID) (types.AccountID, bool) {
	for _, id := range sortedAccounts(snapshot) {
		if snapshot[id].SubjectID == subjectID {
			return id, true
		}
	}
	return "", false
}

// reverseIndex builds subject to account with the same first match rule as lookupAccount.
func reverseIndex(snapshot map[types.AccountID]model.IdentityEntry) map[types.SubjectID]types.AccountID {
	index := make(map[types.SubjectID]types.AccountID, len(snapshot))
	for _, id := range sortedAccounts(snapshot) {
		subj := snapshot[id].SubjectID
		if _, ok := index[subj]; !ok {
			index[subj] = id
		}
	}
	return index
}

// AccountIDFor finds the account mapped to subjectID.
func (uc *IdentityUseCase) AccountIDFor(ctx context.Context, subjectID types.SubjectID) (types.AccountID, bool, error) {
	snapshot, err := uc.ResolveAll(ctx)
	if err != nil {
		return "", false, err
	}
	id, ok := lookupAccount(snapshot, subjectID)
	return id, ok, nil
}

// Upsert stores the mapping, replacing whatever was stored for the account.
func (uc *IdentityUseCase) Upsert(ctx context.Context, accountID string, subjectID types.SubjectID, displayName string) (*model.IdentityMapping, error) {
	id, err := types.NewAccountID(accountID)
	if err != nil {
		return nil, err
	}
	if subjectID == "" {
		return nil, goerr.New("subject ID is required", goerr.V(AccountIDKey, id))
	}

	mapping := &model.IdentityMapping{
		AccountID:   id,
		SubjectID:   subjectID,
		DisplayName: displayName,
		UpdatedAt:   uc.clock(),
	}
	if err := uc.repo.Identity().Put(ctx, mapping); err != nil {
		return nil, goerr.Wrap(err, "failed to put identity mapping",
			goerr.V(AccountIDKey, id), goerr.V(SubjectIDKey, subjectID))
	}

	logging.From(ctx).Info("identity mapping updated",
		"account_id", id, "subject_id", subjectID, "display_name", displayName)
	return mapping, nil
}

func (uc *IdentityUseCase) Get(ctx context.Context, accountID string) (*model.IdentityMapping, error) {
	id, err := types.NewAccountID(accountID)
	if err != nil {
		return nil, err
	}
	mapping, err := uc.repo.Identity().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get identity mapping", goerr.V(AccountIDKey, id))
	}
	return mapping, nil
}

func (uc *IdentityUseCase) List(ctx context.Context) ([]*model.IdentityMapping, error) {
	mappings, err := uc.repo.Identity().List(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list identity mappings")
	}
	return mappings, nil
}

func (uc *IdentityUseCase) Delete(ctx context.Context, accountID string) error {
	id, err := types.NewAccountID(accountID)
	if err != nil {
		return err
	}
	if err := uc.repo.Identity().Delete(ctx, id); err != nil {
		return goerr.Wrap(err, "failed to delete identity mapping", goerr.V(AccountIDKey, id))
	}
	logging.From(ctx).Info("identity mapping deleted", "account_id", id)
	return nil
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Imported int
	Skipped  int
}

// Import upserts every mapping. Invalid rows are logged and skipped; storage
// errors abort the import.
func (uc *IdentityUseCase) Import(ctx context.Context, mappings []*model.IdentityMapping) (*ImportResult, error) {
	result := &ImportResult{}
	for _, m := range mappings {
		if m == nil || m.SubjectID == "" {
			result.Skipped++
			continue
		}
		if _, err := types.NewAccountID(string(m.AccountID)); err != nil {
			logging.From(ctx).Warn("skipping invalid identity row", "error", err, "account_id", m.AccountID)
			result.Skipped++
			continue
		}
		if _, err := uc.Upsert(ctx, string(m.AccountID), m.SubjectID, m.DisplayName); err != nil {
			return result, err
		}
		result.Imported++
	}
	return result, nil
}
