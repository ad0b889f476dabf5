package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DailyEntry is one logged exercise on a workout day of a period. Entries are
// append-only.
type DailyEntry struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PeriodID    primitive.ObjectID `bson:"periodId" json:"periodId"`
	ClientID    primitive.ObjectID `bson:"clientId" json:"clientId"`
	TrainerID   primitive.ObjectID `bson:"trainerId" json:"trainerId"`
	WeekNo      int                `bson:"weekNo" json:"weekNo"`
	DayNo       int                `bson:"dayNo" json:"dayNo"`
	WorkoutDate time.Time          `bson:"workoutDate" json:"workoutDate"`
	WorkoutType string             `bson:"workoutType" json:"workoutType"`
	Sets        int                `bson:"sets" json:"sets"`
	Reps        int                `bson:"reps" json:"reps"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}
