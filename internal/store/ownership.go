package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"gear-maintenance-backend/internal/model"
	"gear-maintenance-backend/internal/snapshot"
	"gear-maintenance-backend/internal/usage"
)

// CheckOwnership rejects a bundle that would write to records of another
// user. Attachments, services and plans must hang off parts owned by owner,
// either stored already or created by the bundle. Record ids already taken
// by another user are refused, and a usage ledger is accepted only when a
// record of the user references it.
func (s *gormStore) CheckOwnership(ctx context.Context, owner int64, sum snapshot.Summary) error {
	db := s.db.WithContext(ctx)

	if err := checkParts(db, owner, sum); err != nil {
		return err
	}

	existing, err := s.Summary(ctx, owner)
	if err != nil {
		return err
	}

	mine := make(map[string]bool)
	for _, sv := range existing.Services {
		mine[sv.ID] = true
	}
	var services []string
	for _, sv := range sum.Services {
		if !mine[sv.ID] {
			services = append(services, sv.ID)
		}
	}
	if err := checkTaken(db, &model.Service{}, "service", services); err != nil {
		return err
	}

	mine = make(map[string]bool)
	for _, pl := range existing.Plans {
		mine[pl.ID] = true
	}
	var plans []string
	for _, pl := range sum.Plans {
		if !mine[pl.ID] {
			plans = append(plans, pl.ID)
		}
	}
	if err := checkTaken(db, &model.ServicePlan{}, "plan", plans); err != nil {
		return err
	}

	var activities []int64
	for _, a := range sum.Activities {
		if a.UserID != owner {
			return fmt.Errorf("activity %d: %w", a.ID, ErrForbidden)
		}
		activities = append(activities, a.ID)
	}
	if len(activities) > 0 {
		var taken []int64
		if err := db.Model(&model.Activity{}).Where("id IN ? AND user_id <> ?", activities, owner).
			Pluck("id", &taken).Error; err != nil {
			return fmt.Errorf("failed to check activity ids: %w", err)
		}
		if len(taken) > 0 {
			return fmt.Errorf("activity %d: %w", taken[0], ErrForbidden)
		}
	}

	return checkUsages(db, existing, sum)
}

// checkParts makes sure every part the bundle creates or references is
// owned by owner.
func checkParts(db *gorm.DB, owner int64, sum snapshot.Summary) error {
	created := make(map[int64]bool, len(sum.Parts))
	var refs []int64
	for _, p := range sum.Parts {
		if p.Owner != owner {
			return fmt.Errorf("part %d: %w", p.ID, ErrForbidden)
		}
		created[p.ID] = true
		refs = append(refs, p.ID)
	}
	for _, a := range sum.Attachments {
		refs = append(refs, a.PartID, a.Gear)
	}
	for _, sv := range sum.Services {
		refs = append(refs, sv.PartID)
	}
	for _, pl := range sum.Plans {
		switch {
		case pl.Part != nil:
			refs = append(refs, *pl.Part)
		case pl.UID == nil || *pl.UID != owner:
			return fmt.Errorf("plan %s: %w", pl.ID, ErrForbidden)
		}
	}
	if len(refs) == 0 {
		return nil
	}

	var parts []model.Part
	if err := db.Select("id", "owner").Where("id IN ?", refs).Find(&parts).Error; err != nil {
		return fmt.Errorf("failed to load part owners: %w", err)
	}
	stored := make(map[int64]int64, len(parts))
	for _, p := range parts {
		stored[p.ID] = p.Owner
	}
	for _, id := range refs {
		o, ok := stored[id]
		switch {
		case ok && o != owner:
			return fmt.Errorf("part %d: %w", id, ErrForbidden)
		case !ok && !created[id]:
			return fmt.Errorf("part %d: %w", id, ErrNotFound)
		}
	}
	return nil
}

// checkTaken fails if any of ids is already stored in the table of m.
func checkTaken(db *gorm.DB, m any, kind string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	var taken []string
	if err := db.Model(m).Where("id IN ?", ids).Pluck("id", &taken).Error; err != nil {
		return fmt.Errorf("failed to check %s ids: %w", kind, err)
	}
	if len(taken) > 0 {
		return fmt.Errorf("%s %s: %w", kind, taken[0], ErrForbidden)
	}
	return nil
}

// checkUsages accepts ledgers the user already references and new ledgers
// referenced by the bundle. A stored ledger of another user is refused, both
// as an upload and as a reference.
func checkUsages(db *gorm.DB, existing, sum snapshot.Summary) error {
	mine := make(map[string]bool)
	for _, id := range collectUsageIDs(existing) {
		mine[id] = true
	}
	referenced := make(map[string]bool)
	for _, id := range collectUsageIDs(sum) {
		referenced[id] = true
	}

	var unknown []string
	for _, l := range sum.Usages {
		if !mine[l.ID] && !referenced[l.ID] {
			return fmt.Errorf("usage %s is not referenced by any record: %w", l.ID, ErrForbidden)
		}
	}
	for id := range referenced {
		if !mine[id] {
			unknown = append(unknown, id)
		}
	}
	return checkTaken(db, &usage.Ledger{}, "usage", unknown)
}
