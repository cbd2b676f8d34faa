package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"amparo/internal/participant/models"
	"amparo/internal/participant/store"
	id "amparo/pkg/domain"
	"amparo/pkg/platform/sentinel"
)

// Mongo persists identities in a MongoDB collection. Each write touches one
// document, so the substrate gives per-document atomicity only — the service
// layer compensates for multi-record aggregate writes. Uniqueness is enforced
// by named unique indexes; duplicate-key errors are mapped back to the shared
// duplicate-key errors by index name.
type Mongo struct {
	collection *mongo.Collection
}

const (
	idxNationalID = "identities_national_id_key"
	idxLogin      = "identities_login_key"
	idxEmail      = "identities_email_key"
)

// NewMongo constructs a MongoDB-backed identity store and ensures its
// unique indexes exist.
func NewMongo(ctx context.Context, db *mongo.Database) (*Mongo, error) {
	collection := db.Collection("identities")
	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "national_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(idxNationalID),
		},
		{
			Keys:    bson.D{{Key: "login_folded", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(idxLogin),
		},
		{
			Keys: bson.D{{Key: "email_folded", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(idxEmail).
				SetPartialFilterExpression(bson.D{{Key: "email_folded", Value: bson.D{{Key: "$gt", Value: ""}}}}),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ensure identity indexes: %w", err)
	}
	return &Mongo{collection: collection}, nil
}

// identityDoc is the persisted shape. The folded fields back the
// case-insensitive unique indexes on login and email.
type identityDoc struct {
	ID             string    `bson:"_id"`
	NationalID     string    `bson:"national_id"`
	Login          string    `bson:"login"`
	LoginFolded    string    `bson:"login_folded"`
	CredentialHash string    `bson:"credential_hash"`
	Phone          string    `bson:"phone,omitempty"`
	Email          string    `bson:"email,omitempty"`
	EmailFolded    string    `bson:"email_folded,omitempty"`
	GivenName      string    `bson:"given_name"`
	FamilyName     string    `bson:"family_name"`
	Role           string    `bson:"role"`
	RegisteredAt   time.Time `bson:"registered_at"`
	Active         bool      `bson:"active"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

func (s *Mongo) Create(ctx context.Context, identity *models.Identity) error {
	_, err := s.collection.InsertOne(ctx, toIdentityDoc(identity))
	if err != nil {
		if dup := mapMongoDuplicate(err); dup != nil {
			return dup
		}
		return fmt.Errorf("create identity: %w", err)
	}
	return nil
}

func (s *Mongo) FindByID(ctx context.Context, participantID id.ParticipantID) (*models.Identity, error) {
	var doc identityDoc
	err := s.collection.FindOne(ctx, bson.D{{Key: "_id", Value: participantID.String()}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	return fromIdentityDoc(doc)
}

func (s *Mongo) FindByIDs(ctx context.Context, ids []id.ParticipantID) ([]*models.Identity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]string, len(ids))
	for i, participantID := range ids {
		raw[i] = participantID.String()
	}
	cursor, err := s.collection.Find(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: raw}}}})
	if err != nil {
		return nil, fmt.Errorf("find identities: %w", err)
	}
	defer cursor.Close(ctx)

	var identities []*models.Identity
	for cursor.Next(ctx) {
		var doc identityDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode identity: %w", err)
		}
		identity, err := fromIdentityDoc(doc)
		if err != nil {
			return nil, err
		}
		identities = append(identities, identity)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return identities, nil
}

func (s *Mongo) Update(ctx context.Context, identity *models.Identity) error {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "phone", Value: identity.Phone},
		{Key: "email", Value: identity.Email},
		{Key: "email_folded", Value: strings.ToLower(identity.Email)},
		{Key: "given_name", Value: identity.GivenName},
		{Key: "family_name", Value: identity.FamilyName},
		{Key: "active", Value: identity.Active},
		{Key: "updated_at", Value: identity.UpdatedAt},
	}}}
	res, err := s.collection.UpdateOne(ctx, bson.D{{Key: "_id", Value: identity.ID.String()}}, update)
	if err != nil {
		if dup := mapMongoDuplicate(err); dup != nil {
			return dup
		}
		return fmt.Errorf("update identity: %w", err)
	}
	if res.MatchedCount == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Mongo) Delete(ctx context.Context, participantID id.ParticipantID) (bool, error) {
	res, err := s.collection.DeleteOne(ctx, bson.D{{Key: "_id", Value: participantID.String()}})
	if err != nil {
		return false, fmt.Errorf("delete identity: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func toIdentityDoc(identity *models.Identity) identityDoc {
	return identityDoc{
		ID:             identity.ID.String(),
		NationalID:     identity.NationalID.String(),
		Login:          identity.Login,
		LoginFolded:    strings.ToLower(identity.Login),
		CredentialHash: identity.CredentialHash,
		Phone:          identity.Phone,
		Email:          identity.Email,
		EmailFolded:    strings.ToLower(identity.Email),
		GivenName:      identity.GivenName,
		FamilyName:     identity.FamilyName,
		Role:           string(identity.Role),
		RegisteredAt:   identity.RegisteredAt,
		Active:         identity.Active,
		CreatedAt:      identity.CreatedAt,
		UpdatedAt:      identity.UpdatedAt,
	}
}

func fromIdentityDoc(doc identityDoc) (*models.Identity, error) {
	participantID, err := id.ParseParticipantID(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("stored identity id: %w", err)
	}
	return &models.Identity{
		ID:             participantID,
		NationalID:     id.NationalID(doc.NationalID),
		Login:          doc.Login,
		CredentialHash: doc.CredentialHash,
		Phone:          doc.Phone,
		Email:          doc.Email,
		GivenName:      doc.GivenName,
		FamilyName:     doc.FamilyName,
		Role:           models.Role(doc.Role),
		RegisteredAt:   doc.RegisteredAt,
		Active:         doc.Active,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}, nil
}

// mapMongoDuplicate translates a duplicate-key write error into the shared
// duplicate-key error for the violated index, or nil when err is something
// else. Index names appear in the server's error message.
func mapMongoDuplicate(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, idxNationalID):
		return store.ErrDuplicateNationalID
	case strings.Contains(msg, idxLogin):
		return store.ErrDuplicateLogin
	case strings.Contains(msg, idxEmail):
		return store.ErrDuplicateEmail
	}
	return fmt.Errorf("duplicate key: %w", sentinel.ErrAlreadyUsed)
}
