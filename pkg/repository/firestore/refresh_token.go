package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/itmoou/attendbot/pkg/domain/interfaces"
	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const RefreshTokensCollection = "refresh_tokens"

type refreshTokenRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.RefreshTokenRepository = &refreshTokenRepository{}

func newRefreshTokenRepository(client *firestore.Client) *refreshTokenRepository {
	return &refreshTokenRepository{
		client: client,
	}
}

type refreshTokenDoc struct {
	Credential string    `firestore:"credential"`
	Value      string    `firestore:"value"`
	UpdatedAt  time.Time `firestore:"updated_at"`
	UpdatedBy  string    `firestore:"updated_by"`
}

func (r *refreshTokenRepository) collection() *firestore.CollectionRef {
	return prefixed(r.client, r.collectionPrefix, RefreshTokensCollection)
}

func (r *refreshTokenRepository) Get(ctx context.Context, credential types.CredentialSet) (*model.RefreshTokenRecord, error) {
	snap, err := r.collection().Doc(credential.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get refresh token", goerr.V("credential", credential))
	}

	var doc refreshTokenDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal refresh token", goerr.V("credential", credential))
	}

	return &model.RefreshTokenRecord{
		Credential: types.CredentialSet(doc.Credential),
		Value:      doc.Value,
		UpdatedAt:  doc.UpdatedAt,
		UpdatedBy:  types.TokenUpdater(doc.UpdatedBy),
	}, nil
}

func (r *refreshTokenRepository) Put(ctx context.Context, record *model.RefreshTokenRecord) error {
	doc := &refreshTokenDoc{
		Credential: record.Credential.String(),
		Value:      record.Value,
		UpdatedAt:  record.UpdatedAt,
		UpdatedBy:  record.UpdatedBy.String(),
	}
	if _, err := r.collection().Doc(record.Credential.String()).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to put refresh token", goerr.V("credential", record.Credential))
	}
	return nil
}
