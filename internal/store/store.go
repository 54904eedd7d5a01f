package store

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gear-maintenance-backend/internal/model"
	"gear-maintenance-backend/internal/snapshot"
	"gear-maintenance-backend/internal/usage"
)

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying connection.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// Summary loads the parts of owner and everything that hangs off them.
func (s *gormStore) Summary(ctx context.Context, owner int64) (snapshot.Summary, error) {
	var sum snapshot.Summary
	db := s.db.WithContext(ctx)

	if err := db.Where("owner = ?", owner).Order("id").Find(&sum.Parts).Error; err != nil {
		return sum, fmt.Errorf("failed to load parts of user %d: %w", owner, err)
	}
	partIDs := make([]int64, 0, len(sum.Parts))
	for _, p := range sum.Parts {
		partIDs = append(partIDs, p.ID)
	}

	if err := db.Where("part_id IN ? OR gear IN ?", partIDs, partIDs).
		Order("attached").Find(&sum.Attachments).Error; err != nil {
		return sum, fmt.Errorf("failed to load attachments of user %d: %w", owner, err)
	}
	if err := db.Where("user_id = ?", owner).Order("start").Find(&sum.Activities).Error; err != nil {
		return sum, fmt.Errorf("failed to load activities of user %d: %w", owner, err)
	}
	if err := db.Where("part_id IN ?", partIDs).Order("time").Find(&sum.Services).Error; err != nil {
		return sum, fmt.Errorf("failed to load services of user %d: %w", owner, err)
	}
	if err := db.Where("uid = ? OR part IN ?", owner, partIDs).Order("id").Find(&sum.Plans).Error; err != nil {
		return sum, fmt.Errorf("failed to load plans of user %d: %w", owner, err)
	}

	usageIDs := collectUsageIDs(sum)
	if len(usageIDs) > 0 {
		if err := db.Where("id IN ?", usageIDs).Find(&sum.Usages).Error; err != nil {
			return sum, fmt.Errorf("failed to load usages of user %d: %w", owner, err)
		}
	}
	return sum, nil
}

func collectUsageIDs(sum snapshot.Summary) []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, p := range sum.Parts {
		add(p.UsageID)
	}
	for _, a := range sum.Attachments {
		add(a.UsageID)
	}
	for _, sv := range sum.Services {
		add(sv.UsageID)
	}
	return ids
}

// SaveSummary upserts every collection of the bundle in one transaction.
func (s *gormStore) SaveSummary(ctx context.Context, sum snapshot.Summary) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsert(tx, sum.Usages); err != nil {
			return fmt.Errorf("failed to save usages: %w", err)
		}
		if err := upsert(tx, sum.Parts); err != nil {
			return fmt.Errorf("failed to save parts: %w", err)
		}

		var keep []model.Attachment
		for _, a := range sum.Attachments {
			if !a.IsEmpty() {
				keep = append(keep, a)
				continue
			}
			if err := tx.Where("part_id = ? AND attached = ?", a.PartID, a.Attached).
				Delete(&model.Attachment{}).Error; err != nil {
				return fmt.Errorf("failed to delete attachment %s: %w", a.Key(), err)
			}
		}
		if err := upsert(tx, keep); err != nil {
			return fmt.Errorf("failed to save attachments: %w", err)
		}

		if err := upsert(tx, sum.Activities); err != nil {
			return fmt.Errorf("failed to save activities: %w", err)
		}
		if err := upsert(tx, sum.Services); err != nil {
			return fmt.Errorf("failed to save services: %w", err)
		}
		for _, p := range sum.Plans {
			if err := p.Validate(); err != nil {
				return err
			}
		}
		if err := upsert(tx, sum.Plans); err != nil {
			return fmt.Errorf("failed to save plans: %w", err)
		}
		return nil
	})
}

func upsert[T any](tx *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
}

// Owners lists every user that owns at least one part.
func (s *gormStore) Owners(ctx context.Context) ([]int64, error) {
	var owners []int64
	if err := s.db.WithContext(ctx).Model(&model.Part{}).
		Distinct("owner").Order("owner").Pluck("owner", &owners).Error; err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	return owners, nil
}

// accrue adds delta to the ledger id, creating it if needed.
func accrue(tx *gorm.DB, id string, delta usage.Ledger) error {
	var found []usage.Ledger
	if err := tx.Where("id = ?", id).Limit(1).Find(&found).Error; err != nil {
		return fmt.Errorf("failed to load usage %s: %w", id, err)
	}
	l := usage.New(id)
	if len(found) > 0 {
		l = found[0]
	} else {
		log.WithField("usage", id).Debug("store: creating usage ledger")
	}
	l = l.Add(delta)
	return upsert(tx, []usage.Ledger{l})
}
