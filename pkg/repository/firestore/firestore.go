package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/itmoou/attendbot/pkg/domain/interfaces"
	"github.com/m-mizutani/goerr/v2"
)

var ErrNotFound = goerr.New("not found")

type Firestore struct {
	client       *firestore.Client
	notifyState  *notifyStateRepository
	identity     *identityRepository
	conversation *conversationRepository
	refreshToken *refreshTokenRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix isolates collections, e.g. per environment or per test run.
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.notifyState.collectionPrefix = prefix
		f.identity.collectionPrefix = prefix
		f.conversation.collectionPrefix = prefix
		f.refreshToken.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID))
	}

	f := &Firestore{
		client:       client,
		notifyState:  newNotifyStateRepository(client),
		identity:     newIdentityRepository(client),
		conversation: newConversationRepository(client),
		refreshToken: newRefreshTokenRepository(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) NotifyState() interfaces.NotifyStateRepository {
	return f.notifyState
}

func (f *Firestore) Identity() interfaces.IdentityRepository {
	return f.identity
}

func (f *Firestore) Conversation() interfaces.ConversationRepository {
	return f.conversation
}

func (f *Firestore) RefreshToken() interfaces.RefreshTokenRepository {
	return f.refreshToken
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// CollectionName returns the collection name for name under prefix.
func CollectionName(prefix, name string) string {
	if prefix != "" {
		return prefix + "_" + name
	}
	return name
}

func prefixed(client *firestore.Client, prefix, name string) *firestore.CollectionRef {
	return client.Collection(CollectionName(prefix, name))
}
