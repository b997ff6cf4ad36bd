package firestore

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/itmoou/attendbot/pkg/domain/interfaces"
	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const NotifyStatesCollection = "notify_states"

type notifyStateRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.NotifyStateRepository = &notifyStateRepository{}

func newNotifyStateRepository(client *firestore.Client) *notifyStateRepository {
	return &notifyStateRepository{
		client: client,
	}
}

// notifyStateDoc is the Firestore persistence model
type notifyStateDoc struct {
	Date        string          `firestore:"date"`
	SubjectID   string          `firestore:"subject_id"`
	Flags       map[string]bool `firestore:"flags"`
	LastUpdated time.Time       `firestore:"last_updated"`
}

func (r *notifyStateRepository) collection() *firestore.CollectionRef {
	return prefixed(r.client, r.collectionPrefix, NotifyStatesCollection)
}

func (r *notifyStateRepository) doc(date types.Date, subjectID types.SubjectID) *firestore.DocumentRef {
	return r.collection().Doc(model.NotifyStateKey(date, subjectID))
}

func (r *notifyStateRepository) fromDoc(doc *notifyStateDoc) *model.NotifyState {
	state := model.NewNotifyState(types.Date(doc.Date), types.SubjectID(doc.SubjectID))
	for k, v := range doc.Flags {
		state.Flags[types.NotifyKind(k)] = v
	}
	state.LastUpdated = doc.LastUpdated
	return state
}

// flagUpdate only names one flag inside the nested map so MergeAll leaves the others untouched.
func flagUpdate(date types.Date, subjectID types.SubjectID, kind types.NotifyKind, now time.Time) map[string]any {
	return map[string]any{
		"date":         date.String(),
		"subject_id":   subjectID.String(),
		"flags":        map[string]any{kind.String(): true},
		"last_updated": now,
	}
}

func (r *notifyStateRepository) Get(ctx context.Context, date types.Date, subjectID types.SubjectID) (*model.NotifyState, error) {
	snap, err := r.doc(date, subjectID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get notify state",
			goerr.V("date", date),
			goerr.V("subject_id", subjectID))
	}

	var doc notifyStateDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal notify state", goerr.V("docID", snap.Ref.ID))
	}
	return r.fromDoc(&doc), nil
}

func (r *notifyStateRepository) SetFlag(ctx context.Context, date types.Date, subjectID types.SubjectID, kind types.NotifyKind, now time.Time) error {
	if _, err := r.doc(date, subjectID).Set(ctx, flagUpdate(date, subjectID, kind, now), firestore.MergeAll); err != nil {
		return goerr.Wrap(err, "failed to set notify flag",
			goerr.V("date", date),
			goerr.V("subject_id", subjectID),
			goerr.V("kind", kind))
	}
	return nil
}

func (r *notifyStateRepository) Claim(ctx context.Context, date types.Date, subjectID types.SubjectID, kind types.NotifyKind, now time.Time) (bool, error) {
	ref := r.doc(date, subjectID)
	claimed := false

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		claimed = false

		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return goerr.Wrap(err, "failed to read notify state in transaction")
		}
		if err == nil && snap.Exists() {
			var doc notifyStateDoc
			if err := snap.DataTo(&doc); err != nil {
				return goerr.Wrap(err, "failed to unmarshal notify state", goerr.V("docID", ref.ID))
			}
			if doc.Flags[kind.String()] {
				return nil
			}
		}

		if err := tx.Set(ref, flagUpdate(date, subjectID, kind, now), firestore.MergeAll); err != nil {
			return goerr.Wrap(err, "failed to write notify state in transaction")
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, goerr.Wrap(err, "failed to claim notify flag",
			goerr.V("date", date),
			goerr.V("subject_id", subjectID),
			goerr.V("kind", kind))
	}

	return claimed, nil
}

func (r *notifyStateRepository) ListByDate(ctx context.Context, date types.Date) ([]*model.NotifyState, error) {
	iter := r.collection().
		Where("date", "==", date.String()).
		OrderBy("subject_id", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var states []*model.NotifyState
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate notify states", goerr.V("date", date))
		}

		var doc notifyStateDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal notify state", goerr.V("docID", snap.Ref.ID))
		}
		states = append(states, r.fromDoc(&doc))
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].SubjectID < states[j].SubjectID
	})
	return states, nil
}
