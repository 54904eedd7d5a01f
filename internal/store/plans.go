package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"gear-maintenance-backend/internal/model"
)

// newID returns a time-ordered id, so ordering by id keeps insertion order.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// CreatePlan validates and stores a new service plan.
func (s *gormStore) CreatePlan(ctx context.Context, plan model.ServicePlan) (model.ServicePlan, error) {
	if err := plan.Validate(); err != nil {
		return model.ServicePlan{}, err
	}
	plan.ID = newID()
	if err := s.db.WithContext(ctx).Create(&plan).Error; err != nil {
		return model.ServicePlan{}, fmt.Errorf("failed to create plan %q: %w", plan.Name, err)
	}
	return plan, nil
}

// DeletePlan removes a plan and unlinks it from the services that fulfilled it.
func (s *gormStore) DeletePlan(ctx context.Context, id string) ([]model.Service, error) {
	var updated []model.Service
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var plan model.ServicePlan
		if err := tx.First(&plan, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load plan %s: %w", id, err)
		}

		var services []model.Service
		if err := tx.Where("plans LIKE ?", "%"+strconv.Quote(id)+"%").Find(&services).Error; err != nil {
			return fmt.Errorf("failed to find services of plan %s: %w", id, err)
		}
		for _, sv := range services {
			plans := sv.Plans[:0]
			for _, p := range sv.Plans {
				if p != id {
					plans = append(plans, p)
				}
			}
			sv.Plans = plans
			if err := tx.Save(&sv).Error; err != nil {
				return fmt.Errorf("failed to unlink plan %s from service %s: %w", id, sv.ID, err)
			}
			updated = append(updated, sv)
		}

		if err := tx.Delete(&plan).Error; err != nil {
			return fmt.Errorf("failed to delete plan %s: %w", id, err)
		}
		log.Printf("Deleted plan %s, unlinked from %d services", id, len(updated))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
