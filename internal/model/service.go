package model

import "time"

// GenesisName names the synthetic record that stands for "the part was new".
const GenesisName = "initial"

// Service is a maintenance event on a part. Services form a reverse linked
// list per part: each one knows its successor, never its predecessor.
type Service struct {
	ID     string    `gorm:"primaryKey;size:36" json:"id"`
	PartID int64     `gorm:"index;not null" json:"part_id"`
	Time   time.Time `gorm:"not null" json:"time"`
	Name   string    `gorm:"size:256;not null" json:"name"`
	Notes  string    `json:"notes"`
	// UsageID is the part's usage snapshot at service time. It is empty for
	// the synthetic genesis record.
	UsageID   string   `gorm:"column:usage;size:36" json:"usage"`
	Successor *string  `gorm:"size:36;index" json:"successor"`
	Plans     []string `gorm:"type:text;serializer:json" json:"plans"`
}

// Genesis returns the synthetic record preceding the first service of a part.
func Genesis(partID int64, successor *string, purchase time.Time) Service {
	return Service{
		PartID:    partID,
		Time:      purchase,
		Name:      GenesisName,
		Successor: successor,
	}
}

// IsGenesis reports whether s is a synthetic genesis record.
func (s Service) IsGenesis() bool {
	return s.ID == "" && s.UsageID == ""
}

// Fulfils reports whether the service satisfies the given plan.
func (s Service) Fulfils(planID string) bool {
	for _, p := range s.Plans {
		if p == planID {
			return true
		}
	}
	return false
}
