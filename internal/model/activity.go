package model

import (
	"time"

	"gear-maintenance-backend/internal/usage"
)

// Activity is one recorded use of a gear, e.g. a ride.
type Activity struct {
	ID       int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	UserID   int64     `gorm:"index;not null" json:"user_id"`
	What     TypeID    `gorm:"not null" json:"what"`
	Name     string    `gorm:"size:256" json:"name"`
	Start    time.Time `gorm:"not null;index" json:"start"`
	Gear     *int64    `gorm:"index" json:"gear"`
	Climb    *int64    `json:"climb"`
	Descend  *int64    `json:"descend"`
	Distance *int64    `json:"distance"`
	Time     *int64    `json:"time"`
	Duration *int64    `json:"duration"`
	Energy   *int64    `json:"energy"`
}

// Contribution converts the activity into a usage contributor. An activity
// always counts as exactly one ride.
func (a Activity) Contribution() usage.Contribution {
	one := int64(1)
	return usage.Contribution{
		Count:    &one,
		Climb:    a.Climb,
		Descend:  a.Descend,
		Distance: a.Distance,
		Time:     a.Time,
		Duration: a.Duration,
		Energy:   a.Energy,
	}
}
