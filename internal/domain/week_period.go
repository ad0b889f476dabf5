package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WeekPeriod is one start-to-Saturday tracking window of a client's rotation.
// WeekEndDate is always the Saturday on or after WeekStartDate.
type WeekPeriod struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ClientID         primitive.ObjectID `bson:"clientId" json:"clientId"`
	TrainerID        primitive.ObjectID `bson:"trainerId" json:"trainerId"`
	WeekNo           int                `bson:"weekNo" json:"weekNo"`
	WeekStartDate    time.Time          `bson:"weekStartDate" json:"weekStartDate"`
	WeekEndDate      time.Time          `bson:"weekEndDate" json:"weekEndDate"`
	TotalProgramDays int                `bson:"totalProgramDays" json:"totalProgramDays"`
	MatchedDayCount  int                `bson:"matchedDayCount" json:"matchedDayCount"`
	MatchedDayNames  []string           `bson:"matchedDayNames" json:"matchedDayNames"`
	MatchedDates     []time.Time        `bson:"matchedDates" json:"matchedDates"`
	Closed           bool               `bson:"closed" json:"closed"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	ClosedAt         *time.Time         `bson:"closedAt,omitempty" json:"closedAt,omitempty"`
}

// NextStartDate is the first day of the successor period.
func (p *WeekPeriod) NextStartDate() time.Time {
	return p.WeekEndDate.AddDate(0, 0, 1)
}
