package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"amparo/internal/scheduling/models"
	"amparo/internal/scheduling/store"
	id "amparo/pkg/domain"
	"amparo/pkg/platform/sentinel"
)

// Mongo persists appointments in MongoDB. Each document carries a derived
// `active` field kept in sync with status; two partial unique indexes
// filtered on active:true enforce the per-party slot invariant, and
// duplicate-key errors are mapped back by index name. Per-document atomicity
// is all this substrate needs: a booking is one document.
type Mongo struct {
	appointments *mongo.Collection
}

const (
	idxCaregiverSlot = "appointments_caregiver_slot_key"
	idxSubjectSlot   = "appointments_subject_slot_key"
)

// NewMongo constructs a MongoDB-backed appointment store and ensures the
// partial slot indexes exist.
func NewMongo(ctx context.Context, db *mongo.Database) (*Mongo, error) {
	appointments := db.Collection("appointments")
	activeOnly := bson.D{{Key: "active", Value: true}}
	_, err := appointments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "caregiver_id", Value: 1},
				{Key: "date", Value: 1},
				{Key: "time", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName(idxCaregiverSlot).
				SetPartialFilterExpression(activeOnly),
		},
		{
			Keys: bson.D{
				{Key: "subject_id", Value: 1},
				{Key: "date", Value: 1},
				{Key: "time", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName(idxSubjectSlot).
				SetPartialFilterExpression(activeOnly),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ensure appointment indexes: %w", err)
	}
	return &Mongo{appointments: appointments}, nil
}

type appointmentDoc struct {
	ID          string    `bson:"_id"`
	Date        time.Time `bson:"date"`
	Time        string    `bson:"time"`
	CaregiverID string    `bson:"caregiver_id"`
	SubjectID   string    `bson:"subject_id"`
	Status      string    `bson:"status"`
	Active      bool      `bson:"active"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

// CreateIfSlotFree inserts the appointment; the partial indexes reject it
// when either party's slot is held by an active appointment.
func (s *Mongo) CreateIfSlotFree(ctx context.Context, appt *models.Appointment) error {
	_, err := s.appointments.InsertOne(ctx, toAppointmentDoc(appt))
	if err != nil {
		if conflict := mapMongoSlotViolation(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

func (s *Mongo) FindByID(ctx context.Context, appointmentID id.AppointmentID) (*models.Appointment, error) {
	var doc appointmentDoc
	err := s.appointments.FindOne(ctx, bson.D{{Key: "_id", Value: appointmentID.String()}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	return fromAppointmentDoc(doc)
}

// UpdateIfSlotFree replaces the document; a slot move colliding with another
// active appointment trips the same partial indexes as an insert.
func (s *Mongo) UpdateIfSlotFree(ctx context.Context, appt *models.Appointment) error {
	res, err := s.appointments.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: appt.ID.String()}}, toAppointmentDoc(appt))
	if err != nil {
		if conflict := mapMongoSlotViolation(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("update appointment: %w", err)
	}
	if res.MatchedCount == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Mongo) Delete(ctx context.Context, appointmentID id.AppointmentID) (bool, error) {
	res, err := s.appointments.DeleteOne(ctx, bson.D{{Key: "_id", Value: appointmentID.String()}})
	if err != nil {
		return false, fmt.Errorf("delete appointment: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// List returns matching appointments ordered by (date, time) ascending.
func (s *Mongo) List(ctx context.Context, filter models.ListFilter) ([]*models.Appointment, error) {
	query := bson.D{}
	if filter.CaregiverID != nil {
		query = append(query, bson.E{Key: "caregiver_id", Value: filter.CaregiverID.String()})
	}
	if filter.SubjectID != nil {
		query = append(query, bson.E{Key: "subject_id", Value: filter.SubjectID.String()})
	}
	if filter.Date != nil {
		query = append(query, bson.E{Key: "date", Value: models.DateOnly(*filter.Date)})
	}
	if filter.Status != nil {
		query = append(query, bson.E{Key: "status", Value: string(*filter.Status)})
	}

	cursor, err := s.appointments.Find(ctx, query,
		options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer cursor.Close(ctx)

	var appointments []*models.Appointment
	for cursor.Next(ctx) {
		var doc appointmentDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode appointment: %w", err)
		}
		appt, err := fromAppointmentDoc(doc)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, appt)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate appointments: %w", err)
	}
	return appointments, nil
}

func toAppointmentDoc(appt *models.Appointment) appointmentDoc {
	return appointmentDoc{
		ID:          appt.ID.String(),
		Date:        appt.Date,
		Time:        appt.Time.String(),
		CaregiverID: appt.CaregiverID.String(),
		SubjectID:   appt.SubjectID.String(),
		Status:      string(appt.Status),
		Active:      appt.Status.IsActive(),
		CreatedAt:   appt.CreatedAt,
		UpdatedAt:   appt.UpdatedAt,
	}
}

func fromAppointmentDoc(doc appointmentDoc) (*models.Appointment, error) {
	appointmentID, err := id.ParseAppointmentID(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("stored appointment id: %w", err)
	}
	caregiverID, err := id.ParseParticipantID(doc.CaregiverID)
	if err != nil {
		return nil, fmt.Errorf("stored caregiver id: %w", err)
	}
	subjectID, err := id.ParseParticipantID(doc.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("stored subject id: %w", err)
	}
	return &models.Appointment{
		ID:          appointmentID,
		Date:        models.DateOnly(doc.Date),
		Time:        id.ClockTime(doc.Time),
		CaregiverID: caregiverID,
		SubjectID:   subjectID,
		Status:      models.Status(doc.Status),
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}, nil
}

func mapMongoSlotViolation(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, idxCaregiverSlot):
		return store.ErrCaregiverSlotTaken
	case strings.Contains(msg, idxSubjectSlot):
		return store.ErrSubjectSlotTaken
	}
	return fmt.Errorf("duplicate appointment: %w", sentinel.ErrAlreadyUsed)
}
