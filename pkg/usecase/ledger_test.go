package usecase_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/itmoou/attendbot/pkg/repository/memory"
	"github.com/itmoou/attendbot/pkg/usecase"
	"github.com/m-mizutani/gt"
)

const testDate = types.Date("2026-10-16")

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestLedger_MarkSentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	uc := usecase.NewLedgerUseCase(memory.New(), nil, 0)

	gt.NoError(t, uc.MarkSent(ctx, testDate, "E1", types.NotifyKindCheckOutFirst)).Required()
	gt.NoError(t, uc.MarkSent(ctx, testDate, "E1", types.NotifyKindCheckInFirst)).Required()
	gt.NoError(t, uc.MarkSent(ctx, testDate, "E1", types.NotifyKindCheckInFirst)).Required()

	sent, err := uc.WasSent(ctx, testDate, "E1", types.NotifyKindCheckInFirst)
	gt.NoError(t, err).Required()
	gt.Bool(t, sent).True()

	// other kinds are untouched
	sent, err = uc.WasSent(ctx, testDate, "E1", types.NotifyKindCheckOutFirst)
	gt.NoError(t, err).Required()
	gt.Bool(t, sent).True()

	sent, err = uc.WasSent(ctx, testDate, "E1", types.NotifyKindCheckInFinal)
	gt.NoError(t, err).Required()
	gt.Bool(t, sent).False()
}

func TestLedger_WasSentWithoutState(t *testing.T) {
	uc := usecase.NewLedgerUseCase(memory.New(), nil, 0)
	sent, err := uc.WasSent(context.Background(), testDate, "nobody", types.NotifyKindDailySummary)
	gt.NoError(t, err).Required()
	gt.Bool(t, sent).False()
}

func TestLedger_MarkSentRejectsInvalidKind(t *testing.T) {
	uc := usecase.NewLedgerUseCase(memory.New(), nil, 0)
	gt.Error(t, uc.MarkSent(context.Background(), testDate, "E1", types.NotifyKind("LUNCH")))
}

func TestLedger_FilterUnsent(t *testing.T) {
	ctx := context.Background()
	uc := usecase.NewLedgerUseCase(memory.New(), nil, 2)

	gt.NoError(t, uc.MarkSent(ctx, testDate, "B", types.NotifyKindCheckInFirst)).Required()
	// same subject on another date or kind does not count
	gt.NoError(t, uc.MarkSent(ctx, testDate.AddDays(-1), "A", types.NotifyKindCheckInFirst)).Required()
	gt.NoError(t, uc.MarkSent(ctx, testDate, "C", types.NotifyKindCheckInFinal)).Required()

	unsent, err := uc.FilterUnsent(ctx, testDate, []types.SubjectID{"A", "B", "C"}, types.NotifyKindCheckInFirst)
	gt.NoError(t, err).Required()

	sort.Slice(unsent, func(i, j int) bool { return unsent[i] < unsent[j] })
	gt.Value(t, unsent).Equal([]types.SubjectID{"A", "C"})
}

func TestLedger_FilterUnsentPropagatesReadErrors(t *testing.T) {
	repo := newFlakyRepository()
	repo.states.failGet["B"] = true
	uc := usecase.NewLedgerUseCase(repo, nil, 0)

	_, err := uc.FilterUnsent(context.Background(), testDate, []types.SubjectID{"A", "B"}, types.NotifyKindCheckInFirst)
	gt.Error(t, err)
}

func TestLedger_MarkManySentIsBestEffort(t *testing.T) {
	ctx := context.Background()
	repo := newFlakyRepository()
	repo.states.failSet["B"] = true
	uc := usecase.NewLedgerUseCase(repo, nil, 0)

	marked := uc.MarkManySent(ctx, testDate, []types.SubjectID{"A", "B", "C"}, types.NotifyKindCheckOutFinal)
	gt.Value(t, marked).Equal(2)

	for _, id := range []types.SubjectID{"A", "C"} {
		sent, err := uc.WasSent(ctx, testDate, id, types.NotifyKindCheckOutFinal)
		gt.NoError(t, err).Required()
		gt.Bool(t, sent).True()
	}
	sent, err := uc.WasSent(ctx, testDate, "B", types.NotifyKindCheckOutFinal)
	gt.NoError(t, err).Required()
	gt.Bool(t, sent).False()
}

func TestLedger_ClaimAndList(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 2, 5, 0, 0, time.UTC)
	uc := usecase.NewLedgerUseCase(memory.New(), fixedClock(now), 0)

	won, err := uc.Claim(ctx, testDate, "E1", types.NotifyKindCheckInFirst)
	gt.NoError(t, err).Required()
	gt.Bool(t, won).True()

	won, err = uc.Claim(ctx, testDate, "E1", types.NotifyKindCheckInFirst)
	gt.NoError(t, err).Required()
	gt.Bool(t, won).False()

	_, err = uc.Claim(ctx, testDate, "E1", types.NotifyKind("bogus"))
	gt.Error(t, err)

	states, err := uc.ListByDate(ctx, testDate)
	gt.NoError(t, err).Required()
	gt.Array(t, states).Length(1).Required()
	gt.Value(t, states[0].SubjectID).Equal(types.SubjectID("E1"))
	gt.Bool(t, states[0].Sent(types.NotifyKindCheckInFirst)).True()
	gt.Bool(t, states[0].LastUpdated.Equal(now)).True()
}
