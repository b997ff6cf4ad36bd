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

const IdentityMappingsCollection = "identity_mappings"

type identityRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.IdentityRepository = &identityRepository{}

func newIdentityRepository(client *firestore.Client) *identityRepository {
	return &identityRepository{
		client: client,
	}
}

type identityMappingDoc struct {
	AccountID   string    `firestore:"account_id"`
	SubjectID   string    `firestore:"subject_id"`
	DisplayName string    `firestore:"display_name"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

func (r *identityRepository) collection() *firestore.CollectionRef {
	return prefixed(r.client, r.collectionPrefix, IdentityMappingsCollection)
}

func (r *identityRepository) toDoc(m *model.IdentityMapping) *identityMappingDoc {
	return &identityMappingDoc{
		AccountID:   m.AccountID.String(),
		SubjectID:   m.SubjectID.String(),
		DisplayName: m.DisplayName,
		UpdatedAt:   m.UpdatedAt,
	}
}

func (r *identityRepository) fromDoc(doc *identityMappingDoc) *model.IdentityMapping {
	return &model.IdentityMapping{
		AccountID:   types.AccountID(doc.AccountID),
		SubjectID:   types.SubjectID(doc.SubjectID),
		DisplayName: doc.DisplayName,
		UpdatedAt:   doc.UpdatedAt,
	}
}

// List returns mappings ordered by document ID, which is the AccountID.
func (r *identityRepository) List(ctx context.Context) ([]*model.IdentityMapping, error) {
	iter := r.collection().OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var mappings []*model.IdentityMapping
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate identity mappings")
		}

		var doc identityMappingDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal identity mapping", goerr.V("docID", snap.Ref.ID))
		}
		mappings = append(mappings, r.fromDoc(&doc))
	}

	return mappings, nil
}

func (r *identityRepository) Get(ctx context.Context, accountID types.AccountID) (*model.IdentityMapping, error) {
	snap, err := r.collection().Doc(accountID.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "identity mapping not found", goerr.V("account_id", accountID))
		}
		return nil, goerr.Wrap(err, "failed to get identity mapping", goerr.V("account_id", accountID))
	}

	var doc identityMappingDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal identity mapping", goerr.V("account_id", accountID))
	}
	return r.fromDoc(&doc), nil
}

func (r *identityRepository) Put(ctx context.Context, mapping *model.IdentityMapping) error {
	if _, err := r.collection().Doc(mapping.AccountID.String()).Set(ctx, r.toDoc(mapping)); err != nil {
		return goerr.Wrap(err, "failed to put identity mapping", goerr.V("account_id", mapping.AccountID))
	}
	return nil
}

func (r *identityRepository) Delete(ctx context.Context, accountID types.AccountID) error {
	ref := r.collection().Doc(accountID.String())
	if _, err := ref.Delete(ctx, firestore.Exists); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "identity mapping not found", goerr.V("account_id", accountID))
		}
		return goerr.Wrap(err, "failed to delete identity mapping", goerr.V("account_id", accountID))
	}
	return nil
}
