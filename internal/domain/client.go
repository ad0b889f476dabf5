package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ConsultationStage tracks where a client is in the onboarding consultations.
//
//	pending -> scheduled            a consultation is booked
//	scheduled -> first_done         the second consultation is recorded
//	any -> trainer_intake_done      the trainer saves the intake details
type ConsultationStage string

const (
	StagePending           ConsultationStage = "pending"
	StageScheduled         ConsultationStage = "scheduled"
	StageFirstDone         ConsultationStage = "first_done"
	StageTrainerIntakeDone ConsultationStage = "trainer_intake_done"
)

// Client is a coached person. The client record is owned by the intake
// side of the back office; the rotation engine reads it and sets the
// workout start date.
type Client struct {
	ID                primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name              string              `bson:"name" json:"name"`
	Email             string              `bson:"email" json:"email"`
	Phone             string              `bson:"phone,omitempty" json:"phone,omitempty"`
	NewClient         bool                `bson:"newClient" json:"newClient"`
	ConsultationStage ConsultationStage   `bson:"consultationStage" json:"consultationStage"`
	WorkoutStartDate  *time.Time          `bson:"workoutStartDate,omitempty" json:"workoutStartDate,omitempty"`
	ActiveAssignment  *primitive.ObjectID `bson:"activeAssignmentId,omitempty" json:"activeAssignmentId,omitempty"`
	CreatedAt         time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// HasStarted reports whether the client's rotation started on or before day.
func (c *Client) HasStarted(day time.Time) bool {
	return c.WorkoutStartDate != nil && !c.WorkoutStartDate.After(day)
}
