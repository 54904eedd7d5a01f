package model

import "time"

// Part is an individually tracked piece of equipment. Gear (a bike, a pair of
// skis) is a part whose type is a main type.
type Part struct {
	ID         int64      `gorm:"primaryKey" json:"id"`
	Owner      int64      `gorm:"index;not null" json:"owner"`
	What       TypeID     `gorm:"not null" json:"what"`
	Name       string     `gorm:"size:256;not null" json:"name"`
	Vendor     string     `gorm:"size:256" json:"vendor"`
	Model      string     `gorm:"size:256" json:"model"`
	Purchase   time.Time  `gorm:"not null" json:"purchase"`
	LastUsed   time.Time  `json:"last_used"`
	DisposedAt *time.Time `json:"disposed_at"`
	// UsageID references the current cumulative usage ledger of the part.
	UsageID string `gorm:"column:usage;size:36;not null" json:"usage"`
}

// IsGear reports whether the part is a main gear rather than a spare.
func (p Part) IsGear() bool {
	return p.What.MainType() == p.What
}

// InService reports whether the part has not been disposed of.
func (p Part) InService() bool {
	return p.DisposedAt == nil
}
