package model

import (
	"fmt"
	"strings"
)

// LimitKey names one threshold of a service plan.
type LimitKey string

const (
	LimitDays    LimitKey = "days"
	LimitHours   LimitKey = "hours"
	LimitKm      LimitKey = "km"
	LimitClimb   LimitKey = "climb"
	LimitDescend LimitKey = "descend"
	LimitRides   LimitKey = "rides"
	LimitKJ      LimitKey = "kJ"
)

// LimitKeys lists every threshold in display order.
var LimitKeys = []LimitKey{LimitDays, LimitHours, LimitKm, LimitClimb, LimitDescend, LimitRides, LimitKJ}

// Limits holds one optional value per threshold. For a plan these are the
// thresholds; for a due computation the remaining budget. Nil means the
// metric is not tracked.
type Limits struct {
	// Time until service
	Days *int64 `json:"days"`
	// Usage time in hours
	Hours *int64 `json:"hours"`
	// Usage distance in km
	Km *int64 `json:"km"`
	// Overall climbing in m
	Climb *int64 `json:"climb"`
	// Overall descending in m
	Descend *int64 `json:"descend"`
	// Number of activities
	Rides *int64 `json:"rides"`
	// Energy in kJ
	KJ *int64 `gorm:"column:energy" json:"kJ"`
}

// Get returns the value stored for key.
func (l Limits) Get(key LimitKey) *int64 {
	switch key {
	case LimitDays:
		return l.Days
	case LimitHours:
		return l.Hours
	case LimitKm:
		return l.Km
	case LimitClimb:
		return l.Climb
	case LimitDescend:
		return l.Descend
	case LimitRides:
		return l.Rides
	case LimitKJ:
		return l.KJ
	}
	return nil
}

// Set stores v for key.
func (l *Limits) Set(key LimitKey, v *int64) {
	switch key {
	case LimitDays:
		l.Days = v
	case LimitHours:
		l.Hours = v
	case LimitKm:
		l.Km = v
	case LimitClimb:
		l.Climb = v
	case LimitDescend:
		l.Descend = v
	case LimitRides:
		l.Rides = v
	case LimitKJ:
		l.KJ = v
	}
}

// Any reports whether at least one threshold is set to a positive value.
func (l Limits) Any() bool {
	for _, k := range LimitKeys {
		if v := l.Get(k); v != nil && *v > 0 {
			return true
		}
	}
	return false
}

// ServicePlan defines when a part needs service.
//
// If Hook is nil the plan is for the specific part Part. Otherwise it is a
// generic plan for parts of type What at Hook; with Part set it only applies to
// that gear, with Part nil it is a template for every gear of the user.
type ServicePlan struct {
	ID   string  `gorm:"primaryKey;size:36" json:"id"`
	Part *int64  `gorm:"index" json:"part"`
	What TypeID  `gorm:"not null" json:"what"`
	Hook *TypeID `json:"hook"`
	Name string  `gorm:"size:256;not null" json:"name"`
	// UID owns generic plans.
	UID    *int64 `gorm:"index" json:"uid"`
	Limits `gorm:"embedded"`
}

// Validate rejects plans without a name, without a known part type, or
// without any threshold.
func (p ServicePlan) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPlan)
	}
	if _, ok := p.What.Type(); !ok {
		return fmt.Errorf("%w: unknown part type %d", ErrInvalidPlan, p.What)
	}
	if !p.Limits.Any() {
		return fmt.Errorf("%w: at least one threshold is required", ErrInvalidPlan)
	}
	return nil
}

// IsTemplate reports whether the plan is a generic plan not bound to a part.
func (p ServicePlan) IsTemplate() bool {
	return p.Part == nil
}

// ForPart returns a copy of a generic plan materialised for part id.
func (p ServicePlan) ForPart(id int64) ServicePlan {
	p.Part = &id
	return p
}

// SameHook reports whether both hooks are unset or equal.
func SameHook(a, b *TypeID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// SamePart reports whether both part references are unset or equal.
func SamePart(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
