package firestore

import (
	"context"
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

const ConversationsCollection = "conversations"

type conversationRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.ConversationRepository = &conversationRepository{}

func newConversationRepository(client *firestore.Client) *conversationRepository {
	return &conversationRepository{
		client: client,
	}
}

type conversationDoc struct {
	AccountID      string    `firestore:"account_id"`
	ServiceURL     string    `firestore:"service_url"`
	ConversationID string    `firestore:"conversation_id"`
	TenantID       string    `firestore:"tenant_id"`
	BotID          string    `firestore:"bot_id"`
	BotName        string    `firestore:"bot_name"`
	UserID         string    `firestore:"user_id"`
	UserName       string    `firestore:"user_name"`
	AADObjectID    string    `firestore:"aad_object_id"`
	UpdatedAt      time.Time `firestore:"updated_at"`
}

func (r *conversationRepository) collection() *firestore.CollectionRef {
	return prefixed(r.client, r.collectionPrefix, ConversationsCollection)
}

func (r *conversationRepository) toDoc(h *model.ConversationHandle) *conversationDoc {
	return &conversationDoc{
		AccountID:      h.AccountID.String(),
		ServiceURL:     h.ServiceURL,
		ConversationID: h.ConversationID,
		TenantID:       h.TenantID,
		BotID:          h.BotID,
		BotName:        h.BotName,
		UserID:         h.UserID,
		UserName:       h.UserName,
		AADObjectID:    h.AADObjectID,
		UpdatedAt:      h.UpdatedAt,
	}
}

func (r *conversationRepository) fromDoc(doc *conversationDoc) *model.ConversationHandle {
	return &model.ConversationHandle{
		AccountID:      types.AccountID(doc.AccountID),
		ServiceURL:     doc.ServiceURL,
		ConversationID: doc.ConversationID,
		TenantID:       doc.TenantID,
		BotID:          doc.BotID,
		BotName:        doc.BotName,
		UserID:         doc.UserID,
		UserName:       doc.UserName,
		AADObjectID:    doc.AADObjectID,
		UpdatedAt:      doc.UpdatedAt,
	}
}

func (r *conversationRepository) Get(ctx context.Context, accountID types.AccountID) (*model.ConversationHandle, error) {
	snap, err := r.collection().Doc(accountID.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get conversation handle", goerr.V("account_id", accountID))
	}

	var doc conversationDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal conversation handle", goerr.V("account_id", accountID))
	}
	return r.fromDoc(&doc), nil
}

func (r *conversationRepository) Put(ctx context.Context, handle *model.ConversationHandle) error {
	if _, err := r.collection().Doc(handle.AccountID.String()).Set(ctx, r.toDoc(handle)); err != nil {
		return goerr.Wrap(err, "failed to put conversation handle", goerr.V("account_id", handle.AccountID))
	}
	return nil
}

func (r *conversationRepository) List(ctx context.Context) ([]*model.ConversationHandle, error) {
	iter := r.collection().OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var handles []*model.ConversationHandle
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate conversation handles")
		}

		var doc conversationDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal conversation handle", goerr.V("docID", snap.Ref.ID))
		}
		handles = append(handles, r.fromDoc(&doc))
	}

	return handles, nil
}
