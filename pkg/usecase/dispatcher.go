package usecase

import (
	"context"
	"errors"

	"github.com/itmoou/attendbot/pkg/domain/interfaces"
	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/itmoou/attendbot/pkg/service/metrics"
	"github.com/itmoou/attendbot/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

// DispatchUseCase sends chat notifications through stored conversation handles.
type DispatchUseCase struct {
	repo        interfaces.Repository
	messenger   interfaces.Messenger
	concurrency int
	metrics     metrics.Recorder
}

func NewDispatchUseCase(repo interfaces.Repository, messenger interfaces.Messenger, concurrency int, recorder metrics.Recorder) *DispatchUseCase {
	if concurrency <= 0 {
		concurrency = defaultDispatchConcurrency
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &DispatchUseCase{
		repo:        repo,
		messenger:   messenger,
		concurrency: concurrency,
		metrics:     recorder,
	}
}

// SendMany sends every notification and reports the outcome. It never fails
// as a whole; each entry succeeds or fails on its own.
func (uc *DispatchUseCase) SendMany(ctx context.Context, notifications []model.Notification) *model.DispatchResult {
	errs := make([]error, len(notifications))

	var eg errgroup.Group
	eg.SetLimit(uc.concurrency)
	for i, n := range notifications {
		eg.Go(func() error {
			errs[i] = uc.sendOne(ctx, n)
			return nil
		})
	}
	_ = eg.Wait()

	result := &model.DispatchResult{}
	logger := logging.From(ctx)
	for i, n := range notifications {
		err := errs[i]
		if err == nil {
			result.SuccessCount++
			result.SucceededAccountIDs = append(result.SucceededAccountIDs, n.AccountID)
			continue
		}

		result.FailedCount++
		result.FailedAccountIDs = append(result.FailedAccountIDs, n.AccountID)
		if errors.Is(err, ErrNotOnboarded) {
			result.NotOnboardedAccountIDs = append(result.NotOnboardedAccountIDs, n.AccountID)
			logger.Warn("recipient has not talked to the bot yet", "account_id", n.AccountID)
		} else {
			logger.Error("failed to send notification", "account_id", n.AccountID, "error", err)
		}
	}

	uc.metrics.RecordDispatch("success", result.SuccessCount)
	uc.metrics.RecordDispatch("not_onboarded", len(result.NotOnboardedAccountIDs))
	uc.metrics.RecordDispatch("failed", result.FailedCount-len(result.NotOnboardedAccountIDs))
	return result
}

func (uc *DispatchUseCase) sendOne(ctx context.Context, n model.Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = goerr.New("panic while sending notification", goerr.V(AccountIDKey, n.AccountID), goerr.V("panic", r))
		}
	}()

	if uc.messenger == nil {
		return ErrMessengerUnavailable
	}

	handle, err := uc.repo.Conversation().Get(ctx, n.AccountID)
	if err != nil {
		return goerr.Wrap(err, "failed to get conversation handle", goerr.V(AccountIDKey, n.AccountID))
	}
	if handle == nil {
		return goerr.Wrap(ErrNotOnboarded, "no conversation handle", goerr.V(AccountIDKey, n.AccountID))
	}

	if err := uc.messenger.SendMessage(ctx, handle, n.Body); err != nil {
		return goerr.Wrap(err, "failed to send message", goerr.V(AccountIDKey, n.AccountID))
	}
	return nil
}

// succeededSubjects maps successful accounts back to the subjects they were sent for.
func succeededSubjects(result *model.DispatchResult, subjectOf map[types.AccountID]types.SubjectID) []types.SubjectID {
	ids := make([]types.SubjectID, 0, len(result.SucceededAccountIDs))
	for _, acc := range result.SucceededAccountIDs {
		if subj, ok := subjectOf[acc]; ok {
			ids = append(ids, subj)
		}
	}
	return ids
}
