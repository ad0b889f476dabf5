package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssignmentStatus type for program assignment lifecycle
type AssignmentStatus string

const (
	AssignmentActive   AssignmentStatus = "active"
	AssignmentInactive AssignmentStatus = "inactive"
)

// TimeSlot is a preferred [start, end] pair, e.g. ["06:00", "07:00"].
type TimeSlot [2]string

// ProgramAssignment connects a Program to a Client and carries the schedule
// the client chose: which weekdays to train and at what time.
type ProgramAssignment struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ClientID      primitive.ObjectID  `bson:"clientId" json:"clientId"`
	ProgramID     primitive.ObjectID  `bson:"programId" json:"programId"`
	TrainerID     primitive.ObjectID  `bson:"trainerId" json:"trainerId"`
	DietitianID   *primitive.ObjectID `bson:"dietitianId,omitempty" json:"dietitianId,omitempty"`
	WorkoutDays   []string            `bson:"workoutDays" json:"workoutDays"` // lowercase weekday names
	PreferredTime []TimeSlot          `bson:"preferredTime,omitempty" json:"preferredTime,omitempty"`
	Status        AssignmentStatus    `bson:"status" json:"status"`
	AssignedAt    time.Time           `bson:"assignedAt" json:"assignedAt"`
	UpdatedAt     time.Time           `bson:"updatedAt" json:"updatedAt"`
}

func (a *ProgramAssignment) IsActive() bool {
	return a.Status == AssignmentActive
}
