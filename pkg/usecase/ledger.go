package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/itmoou/attendbot/pkg/domain/interfaces"
	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/itmoou/attendbot/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

// LedgerUseCase records which notifications went out per date and subject.
type LedgerUseCase struct {
	repo        interfaces.Repository
	clock       func() time.Time
	concurrency int
}

func NewLedgerUseCase(repo interfaces.Repository, clock func() time.Time, concurrency int) *LedgerUseCase {
	if clock == nil {
		clock = time.Now
	}
	if concurrency <= 0 {
		concurrency = defaultLedgerConcurrency
	}
	return &LedgerUseCase{
		repo:        repo,
		clock:       clock,
		concurrency: concurrency,
	}
}

// WasSent reports whether kind was recorded for subjectID on date. Absent state means not sent.
func (uc *LedgerUseCase) WasSent(ctx context.Context, date types.Date, subjectID types.SubjectID, kind types.NotifyKind) (bool, error) {
	state, err := uc.repo.NotifyState().Get(ctx, date, subjectID)
	if err != nil {
		return false, goerr.Wrap(err, "failed to get notify state",
			goerr.V(DateKey, date), goerr.V(SubjectIDKey, subjectID), goerr.V(KindKey, kind))
	}
	return state.Sent(kind), nil
}

// MarkSent sets kind for subjectID on date, keeping other kinds as they are.
func (uc *LedgerUseCase) MarkSent(ctx context.Context, date types.Date, subjectID types.SubjectID, kind types.NotifyKind) error {
	if !kind.IsValid() {
		return goerr.New("invalid notify kind", goerr.V(KindKey, kind))
	}
	if err := uc.repo.NotifyState().SetFlag(ctx, date, subjectID, kind, uc.clock()); err != nil {
		return goerr.Wrap(err, "failed to mark notification sent",
			goerr.V(DateKey, date), goerr.V(SubjectIDKey, subjectID), goerr.V(KindKey, kind))
	}
	return nil
}

// FilterUnsent returns the subjects not yet notified with kind on date. The
// order of the result is not defined.
func (uc *LedgerUseCase) FilterUnsent(ctx context.Context, date types.Date, subjectIDs []types.SubjectID, kind types.NotifyKind) ([]types.SubjectID, error) {
	var (
		mu     sync.Mutex
		unsent = make([]types.SubjectID, 0, len(subjectIDs))
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(uc.concurrency)
	for _, id := range subjectIDs {
		eg.Go(func() error {
			sent, err := uc.WasSent(ctx, date, id, kind)
			if err != nil {
				return err
			}
			if !sent {
				mu.Lock()
				unsent = append(unsent, id)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return unsent, nil
}

// MarkManySent marks each subject independently. Failures are logged and do
// not stop the rest of the batch. It returns how many were marked.
func (uc *LedgerUseCase) MarkManySent(ctx context.Context, date types.Date, subjectIDs []types.SubjectID, kind types.NotifyKind) int {
	marked := 0
	for _, id := range subjectIDs {
		if err := uc.MarkSent(ctx, date, id, kind); err != nil {
			logging.From(ctx).Warn("failed to mark notification sent",
				"error", err, "date", date, "subject_id", id, "kind", kind)
			continue
		}
		marked++
	}
	return marked
}

// Claim sets kind only when it is not set yet and reports whether this call set it.
func (uc *LedgerUseCase) Claim(ctx context.Context, date types.Date, subjectID types.SubjectID, kind types.NotifyKind) (bool, error) {
	if !kind.IsValid() {
		return false, goerr.New("invalid notify kind", goerr.V(KindKey, kind))
	}
	won, err := uc.repo.NotifyState().Claim(ctx, date, subjectID, kind, uc.clock())
	if err != nil {
		return false, goerr.Wrap(err, "failed to claim notification",
			goerr.V(DateKey, date), goerr.V(SubjectIDKey, subjectID), goerr.V(KindKey, kind))
	}
	return won, nil
}

func (uc *LedgerUseCase) ListByDate(ctx context.Context, date types.Date) ([]*model.NotifyState, error) {
	states, err := uc.repo.NotifyState().ListByDate(ctx, date)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list notify states", goerr.V(DateKey, date))
	}
	return states, nil
}
