package profile

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

// Mongo persists role profiles in MongoDB, one collection per variant,
// keyed by the owning participant's id so "at most one profile per identity"
// is structural. Per-document atomicity only.
type Mongo struct {
	caregivers *mongo.Collection
	subjects   *mongo.Collection
}

const idxRegistrationNumber = "caregiver_profiles_registration_number_key"

// NewMongo constructs a MongoDB-backed profile store and ensures the
// registration-number unique index exists.
func NewMongo(ctx context.Context, db *mongo.Database) (*Mongo, error) {
	caregivers := db.Collection("caregiver_profiles")
	subjects := db.Collection("subject_profiles")
	_, err := caregivers.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "registration_number_folded", Value: 1}},
		Options: options.Index().SetUnique(true).SetName(idxRegistrationNumber),
	})
	if err != nil {
		return nil, fmt.Errorf("ensure profile indexes: %w", err)
	}
	return &Mongo{caregivers: caregivers, subjects: subjects}, nil
}

type caregiverDoc struct {
	ParticipantID            string `bson:"_id"`
	RegistrationNumber       string `bson:"registration_number"`
	RegistrationNumberFolded string `bson:"registration_number_folded"`
	JobTitle                 string `bson:"job_title,omitempty"`
	Specialty                string `bson:"specialty,omitempty"`
}

type subjectDoc struct {
	ParticipantID  string    `bson:"_id"`
	Address        string    `bson:"address,omitempty"`
	BirthDate      time.Time `bson:"birth_date"`
	Age            int       `bson:"age"`
	EducationLevel string    `bson:"education_level,omitempty"`
	Ethnicity      string    `bson:"ethnicity,omitempty"`
}

func (s *Mongo) Create(ctx context.Context, p models.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	var err error
	switch p.Role {
	case models.RoleCaregiver:
		_, err = s.caregivers.InsertOne(ctx, toCaregiverDoc(p.Caregiver))
	case models.RoleSubject:
		_, err = s.subjects.InsertOne(ctx, toSubjectDoc(p.Subject))
	}
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), idxRegistrationNumber) {
				return store.ErrDuplicateRegistrationNumber
			}
			return fmt.Errorf("duplicate profile: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create %s profile: %w", p.Role, err)
	}
	return nil
}

func (s *Mongo) FindByParticipant(ctx context.Context, participantID id.ParticipantID) (models.Profile, error) {
	filter := bson.D{{Key: "_id", Value: participantID.String()}}

	var cDoc caregiverDoc
	err := s.caregivers.FindOne(ctx, filter).Decode(&cDoc)
	if err == nil {
		caregiver, err := fromCaregiverDoc(cDoc)
		if err != nil {
			return models.Profile{}, err
		}
		return models.Profile{Role: models.RoleCaregiver, Caregiver: caregiver}, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Profile{}, fmt.Errorf("find caregiver profile: %w", err)
	}

	var sDoc subjectDoc
	err = s.subjects.FindOne(ctx, filter).Decode(&sDoc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Profile{}, sentinel.ErrNotFound
		}
		return models.Profile{}, fmt.Errorf("find subject profile: %w", err)
	}
	subject, err := fromSubjectDoc(sDoc)
	if err != nil {
		return models.Profile{}, err
	}
	return models.Profile{Role: models.RoleSubject, Subject: subject}, nil
}

func (s *Mongo) Update(ctx context.Context, p models.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	var res *mongo.UpdateResult
	var err error
	switch p.Role {
	case models.RoleCaregiver:
		res, err = s.caregivers.UpdateOne(ctx,
			bson.D{{Key: "_id", Value: p.Caregiver.ParticipantID.String()}},
			bson.D{{Key: "$set", Value: bson.D{
				{Key: "registration_number", Value: p.Caregiver.RegistrationNumber},
				{Key: "registration_number_folded", Value: strings.ToLower(p.Caregiver.RegistrationNumber)},
				{Key: "job_title", Value: p.Caregiver.JobTitle},
				{Key: "specialty", Value: p.Caregiver.Specialty},
			}}},
		)
	case models.RoleSubject:
		res, err = s.subjects.UpdateOne(ctx,
			bson.D{{Key: "_id", Value: p.Subject.ParticipantID.String()}},
			bson.D{{Key: "$set", Value: bson.D{
				{Key: "address", Value: p.Subject.Address},
				{Key: "birth_date", Value: p.Subject.BirthDate},
				{Key: "age", Value: p.Subject.Age},
				{Key: "education_level", Value: p.Subject.EducationLevel},
				{Key: "ethnicity", Value: p.Subject.Ethnicity},
			}}},
		)
	}
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicateRegistrationNumber
		}
		return fmt.Errorf("update %s profile: %w", p.Role, err)
	}
	if res.MatchedCount == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Mongo) Delete(ctx context.Context, participantID id.ParticipantID) (bool, error) {
	filter := bson.D{{Key: "_id", Value: participantID.String()}}
	res, err := s.caregivers.DeleteOne(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("delete caregiver profile: %w", err)
	}
	if res.DeletedCount > 0 {
		return true, nil
	}
	res, err = s.subjects.DeleteOne(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("delete subject profile: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *Mongo) List(ctx context.Context, roleFilter *models.Role) ([]models.Profile, error) {
	var profiles []models.Profile
	if roleFilter == nil || *roleFilter == models.RoleCaregiver {
		caregivers, err := s.queryCaregivers(ctx, bson.D{})
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, caregivers...)
	}
	if roleFilter == nil || *roleFilter == models.RoleSubject {
		subjects, err := s.querySubjects(ctx)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, subjects...)
	}
	return profiles, nil
}

func (s *Mongo) ListCaregiversBySpecialty(ctx context.Context, specialty string) ([]models.Profile, error) {
	return s.queryCaregivers(ctx, caseInsensitiveEq("specialty", specialty))
}

func (s *Mongo) ListCaregiversByJobTitle(ctx context.Context, jobTitle string) ([]models.Profile, error) {
	return s.queryCaregivers(ctx, caseInsensitiveEq("job_title", jobTitle))
}

func (s *Mongo) queryCaregivers(ctx context.Context, filter bson.D) ([]models.Profile, error) {
	cursor, err := s.caregivers.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list caregiver profiles: %w", err)
	}
	defer cursor.Close(ctx)

	var profiles []models.Profile
	for cursor.Next(ctx) {
		var doc caregiverDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode caregiver profile: %w", err)
		}
		caregiver, err := fromCaregiverDoc(doc)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, models.Profile{Role: models.RoleCaregiver, Caregiver: caregiver})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate caregiver profiles: %w", err)
	}
	return profiles, nil
}

func (s *Mongo) querySubjects(ctx context.Context) ([]models.Profile, error) {
	cursor, err := s.subjects.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list subject profiles: %w", err)
	}
	defer cursor.Close(ctx)

	var profiles []models.Profile
	for cursor.Next(ctx) {
		var doc subjectDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode subject profile: %w", err)
		}
		subject, err := fromSubjectDoc(doc)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, models.Profile{Role: models.RoleSubject, Subject: subject})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate subject profiles: %w", err)
	}
	return profiles, nil
}

func caseInsensitiveEq(field, value string) bson.D {
	return bson.D{{Key: field, Value: bson.D{
		{Key: "$regex", Value: "^" + escapeRegex(value) + "$"},
		{Key: "$options", Value: "i"},
	}}}
}

// escapeRegex quotes regex metacharacters so user-supplied filter values
// match literally.
func escapeRegex(s string) string {
	var b strings.Builder
	for _, c := range s {
		if strings.ContainsRune(`\.+*?()|[]{}^$`, c) {
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

func toCaregiverDoc(c *models.CaregiverProfile) caregiverDoc {
	return caregiverDoc{
		ParticipantID:            c.ParticipantID.String(),
		RegistrationNumber:       c.RegistrationNumber,
		RegistrationNumberFolded: strings.ToLower(c.RegistrationNumber),
		JobTitle:                 c.JobTitle,
		Specialty:                c.Specialty,
	}
}

func toSubjectDoc(s *models.SubjectProfile) subjectDoc {
	return subjectDoc{
		ParticipantID:  s.ParticipantID.String(),
		Address:        s.Address,
		BirthDate:      s.BirthDate,
		Age:            s.Age,
		EducationLevel: s.EducationLevel,
		Ethnicity:      s.Ethnicity,
	}
}

func fromCaregiverDoc(doc caregiverDoc) (*models.CaregiverProfile, error) {
	participantID, err := id.ParseParticipantID(doc.ParticipantID)
	if err != nil {
		return nil, fmt.Errorf("stored caregiver profile id: %w", err)
	}
	return &models.CaregiverProfile{
		ParticipantID:      participantID,
		RegistrationNumber: doc.RegistrationNumber,
		JobTitle:           doc.JobTitle,
		Specialty:          doc.Specialty,
	}, nil
}

func fromSubjectDoc(doc subjectDoc) (*models.SubjectProfile, error) {
	participantID, err := id.ParseParticipantID(doc.ParticipantID)
	if err != nil {
		return nil, fmt.Errorf("stored subject profile id: %w", err)
	}
	return &models.SubjectProfile{
		ParticipantID:  participantID,
		Address:        doc.Address,
		BirthDate:      doc.BirthDate,
		Age:            doc.Age,
		EducationLevel: doc.EducationLevel,
		Ethnicity:      doc.Ethnicity,
	}, nil
}
