package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"gear-maintenance-backend/internal/model"
	"gear-maintenance-backend/internal/snapshot"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrForbidden is returned when a bundle touches records of another user.
var ErrForbidden = errors.New("store: record belongs to another user")

// Store defines the interface for all database operations.
type Store interface {
	// Summary loads every record owned by a user.
	Summary(ctx context.Context, owner int64) (snapshot.Summary, error)
	// SaveSummary upserts a bundle. Empty attachments delete the stored
	// attachment with the same key.
	SaveSummary(ctx context.Context, sum snapshot.Summary) error
	// CheckOwnership verifies that every record of the bundle belongs to
	// owner before it is saved.
	CheckOwnership(ctx context.Context, owner int64, sum snapshot.Summary) error

	CreatePlan(ctx context.Context, plan model.ServicePlan) (model.ServicePlan, error)
	// DeletePlan removes a plan and unlinks it from the services that
	// fulfilled it. The updated services are returned.
	DeletePlan(ctx context.Context, id string) ([]model.Service, error)

	// RecordActivities stores new activities and accrues their usage. It
	// returns the owners whose usage changed.
	RecordActivities(ctx context.Context, activities []model.Activity) ([]int64, error)

	// Owners lists every user that owns at least one part.
	Owners(ctx context.Context) ([]int64, error)

	SaveSubscription(ctx context.Context, sub model.PushSubscription) error
	Subscription(ctx context.Context, endpoint string) (model.PushSubscription, error)
	Subscriptions(ctx context.Context, owner int64) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error

	DB() *gorm.DB
}
