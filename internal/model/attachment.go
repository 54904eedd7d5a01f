package model

import (
	"fmt"
	"time"
)

// Attachment records that a part was mounted on a gear at a hook during
// the half-open interval [Attached, Detached). An open attachment has
// Detached set to MaxTime.
type Attachment struct {
	PartID   int64     `gorm:"primaryKey;autoIncrement:false" json:"part_id"`
	Attached time.Time `gorm:"primaryKey" json:"attached"`
	Gear     int64     `gorm:"index;not null" json:"gear"`
	Hook     TypeID    `gorm:"not null" json:"hook"`
	Detached time.Time `gorm:"not null" json:"detached"`
	What     TypeID    `gorm:"not null" json:"what"`
	Name     string    `gorm:"size:256" json:"name"`
	// UsageID references the usage accrued while attached.
	UsageID string `gorm:"column:usage;size:36" json:"usage"`
}

// AttachmentKey is the identity of an attachment.
type AttachmentKey struct {
	PartID   int64
	Attached int64 // unix milliseconds
}

func (k AttachmentKey) String() string {
	return fmt.Sprintf("%d/%d", k.PartID, k.Attached)
}

// Key returns the identity of the attachment.
func (a Attachment) Key() AttachmentKey {
	return AttachmentKey{PartID: a.PartID, Attached: a.Attached.UnixMilli()}
}

// IsAttached reports whether t falls into [Attached, Detached).
func (a Attachment) IsAttached(t time.Time) bool {
	return !t.Before(a.Attached) && t.Before(a.Detached)
}

// IsEmpty reports an attach and detach at the same instant.
func (a Attachment) IsEmpty() bool {
	return !a.Attached.Before(a.Detached)
}

// IsOpen reports whether the part is still attached.
func (a Attachment) IsOpen() bool {
	return !a.Detached.Before(MaxTime)
}
