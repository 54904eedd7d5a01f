// Package timeline answers which part occupies which attachment point at a
// given time.
package timeline

import (
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"gear-maintenance-backend/internal/model"
)

// Timeline is an immutable, ordered set of non-empty attachments.
//
// Overlapping intervals on the same gear and hook are a data-integrity
// violation the writer has to prevent. Lookups do not arbitrate between them;
// when several intervals match, the one inserted last wins.
type Timeline struct {
	atts []model.Attachment
}

// New builds a timeline from attachments in insertion order. Empty intervals
// are dropped; a later attachment with the same key replaces an earlier one
// in place.
func New(atts []model.Attachment) *Timeline {
	pos := make(map[model.AttachmentKey]int, len(atts))
	res := make([]model.Attachment, 0, len(atts))
	for _, a := range atts {
		key := a.Key()
		i, seen := pos[key]
		if a.IsEmpty() {
			if seen {
				res[i].Detached = res[i].Attached
			}
			continue
		}
		if seen {
			res[i] = a
			continue
		}
		pos[key] = len(res)
		res = append(res, a)
	}
	pruned := res[:0]
	for _, a := range res {
		if !a.IsEmpty() {
			pruned = append(pruned, a)
		}
	}
	return &Timeline{atts: pruned}
}

// All returns a copy of the attachments in insertion order.
func (t *Timeline) All() []model.Attachment {
	res := make([]model.Attachment, len(t.atts))
	copy(res, t.atts)
	return res
}

// Len returns the number of attachments.
func (t *Timeline) Len() int {
	return len(t.atts)
}

func (t *Timeline) last(match func(model.Attachment) bool) (model.Attachment, bool) {
	var (
		found model.Attachment
		n     int
	)
	for _, a := range t.atts {
		if match(a) {
			found = a
			n++
		}
	}
	if n > 1 {
		log.WithFields(log.Fields{
			"part":    found.PartID,
			"gear":    found.Gear,
			"hook":    found.Hook,
			"matches": n,
		}).Debug("timeline: overlapping attachments, using the last one")
	}
	return found, n > 0
}

// AttachmentAtHook returns the attachment on gear at hook for a part of
// type what that contains at.
func (t *Timeline) AttachmentAtHook(gear int64, what, hook model.TypeID, at time.Time) (model.Attachment, bool) {
	return t.last(func(a model.Attachment) bool {
		return a.Gear == gear && a.What == what && a.Hook == hook && a.IsAttached(at)
	})
}

// ResolveOccupant returns the part attached to gear at hook at the given
// time. An unoccupied hook is occupied by the gear itself.
func (t *Timeline) ResolveOccupant(gear int64, what, hook model.TypeID, at time.Time) int64 {
	if a, ok := t.AttachmentAtHook(gear, what, hook, at); ok {
		return a.PartID
	}
	return gear
}

// AttachmentForPart returns the interval during which part was attached at
// the given time, if any.
func (t *Timeline) AttachmentForPart(part int64, at time.Time) (model.Attachment, bool) {
	return t.last(func(a model.Attachment) bool {
		return a.PartID == part && a.IsAttached(at)
	})
}

// AttachmentsForGear returns every attachment hosted by gear at the given time.
func (t *Timeline) AttachmentsForGear(gear int64, at time.Time) []model.Attachment {
	var res []model.Attachment
	for _, a := range t.atts {
		if a.Gear == gear && a.IsAttached(at) {
			res = append(res, a)
		}
	}
	return res
}

// ForPart returns all attachments of a part, newest first.
func (t *Timeline) ForPart(part int64) []model.Attachment {
	var res []model.Attachment
	for _, a := range t.atts {
		if a.PartID == part {
			res = append(res, a)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Attached.After(res[j].Attached)
	})
	return res
}
