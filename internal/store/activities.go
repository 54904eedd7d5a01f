package store

import (
	"context"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"gear-maintenance-backend/internal/model"
)

// RecordActivities stores activities that are not known yet. Each new
// activity with a gear adds its usage to the gear, to every part attached
// to the gear when the activity started, and to those attachments. Usage is
// only recorded on gear owned by the activity's user.
func (s *gormStore) RecordActivities(ctx context.Context, activities []model.Activity) ([]int64, error) {
	if len(activities) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(activities))
	for _, a := range activities {
		ids = append(ids, a.ID)
	}

	owners := make(map[int64]bool)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []int64
		if err := tx.Model(&model.Activity{}).Where("id IN ?", ids).Pluck("id", &existing).Error; err != nil {
			return fmt.Errorf("failed to load known activities: %w", err)
		}
		known := make(map[int64]bool, len(existing))
		for _, id := range existing {
			known[id] = true
		}

		for _, a := range activities {
			if known[a.ID] {
				continue
			}
			known[a.ID] = true
			if err := tx.Create(&a).Error; err != nil {
				return fmt.Errorf("failed to create activity %d: %w", a.ID, err)
			}
			if a.Gear == nil {
				continue
			}
			owner, ok, err := recordUsage(tx, a)
			if err != nil {
				return err
			}
			if ok {
				owners[owner] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := make([]int64, 0, len(owners))
	for o := range owners {
		res = append(res, o)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res, nil
}

// recordUsage accrues the activity on its gear and reports the gear's owner.
// ok is false when nothing was recorded.
func recordUsage(tx *gorm.DB, a model.Activity) (owner int64, ok bool, err error) {
	delta := a.Contribution().Ledger()

	var gear model.Part
	if err := tx.First(&gear, *a.Gear).Error; err != nil {
		log.WithFields(log.Fields{"activity": a.ID, "gear": *a.Gear}).
			Warn("store: activity references an unknown gear, usage not recorded")
		return 0, false, nil
	}
	if gear.Owner != a.UserID {
		log.WithFields(log.Fields{"activity": a.ID, "gear": gear.ID, "user": a.UserID}).
			Warn("store: activity references gear of another user, usage not recorded")
		return 0, false, nil
	}
	if err := touchPart(tx, &gear, a); err != nil {
		return 0, false, err
	}
	if err := accrue(tx, gear.UsageID, delta); err != nil {
		return 0, false, err
	}

	var atts []model.Attachment
	if err := tx.Where("gear = ? AND attached <= ? AND detached > ?", gear.ID, a.Start, a.Start).
		Find(&atts).Error; err != nil {
		return 0, false, fmt.Errorf("failed to load attachments of gear %d: %w", gear.ID, err)
	}
	for _, att := range atts {
		if att.UsageID == "" {
			att.UsageID = newID()
			if err := tx.Model(&model.Attachment{}).
				Where("part_id = ? AND attached = ?", att.PartID, att.Attached).
				Update("usage", att.UsageID).Error; err != nil {
				return 0, false, fmt.Errorf("failed to link usage to attachment %s: %w", att.Key(), err)
			}
		}
		if err := accrue(tx, att.UsageID, delta); err != nil {
			return 0, false, err
		}

		var part model.Part
		if err := tx.First(&part, att.PartID).Error; err != nil {
			log.WithField("part", att.PartID).Debug("store: attachment references an unknown part")
			continue
		}
		if err := touchPart(tx, &part, a); err != nil {
			return 0, false, err
		}
		if err := accrue(tx, part.UsageID, delta); err != nil {
			return 0, false, err
		}
	}
	return gear.Owner, true, nil
}

// touchPart makes sure the part has a usage ledger and advances last_used.
func touchPart(tx *gorm.DB, p *model.Part, a model.Activity) error {
	updates := map[string]any{}
	if p.UsageID == "" {
		p.UsageID = newID()
		updates["usage"] = p.UsageID
	}
	if a.Start.After(p.LastUsed) {
		p.LastUsed = a.Start
		updates["last_used"] = a.Start
	}
	if len(updates) == 0 {
		return nil
	}
	if err := tx.Model(&model.Part{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update part %d: %w", p.ID, err)
	}
	return nil
}
