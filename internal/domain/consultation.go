package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Consultation is a scheduled onboarding session between a staff member and a
// client. Done flips to true once the next consultation is booked.
type Consultation struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ClientID       primitive.ObjectID `bson:"clientId" json:"clientId"`
	UserID         primitive.ObjectID `bson:"userId" json:"userId"`
	ScheduledAt    time.Time          `bson:"scheduledAt" json:"scheduledAt"`
	ConsultationNo int                `bson:"consultationNo" json:"consultationNo"`
	Notes          string             `bson:"notes,omitempty" json:"notes,omitempty"`
	Done           bool               `bson:"done" json:"done"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
}

// TrainerIntake holds what the trainer collected in the intake consultation.
type TrainerIntake struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ClientID     primitive.ObjectID `bson:"clientId" json:"clientId"`
	UserID       primitive.ObjectID `bson:"userId" json:"userId"`
	Goals        string             `bson:"goals,omitempty" json:"goals,omitempty"`
	Injuries     string             `bson:"injuries,omitempty" json:"injuries,omitempty"`
	FitnessLevel string             `bson:"fitnessLevel,omitempty" json:"fitnessLevel,omitempty"`
	Notes        string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
}
