package notification

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"gear-maintenance-backend/internal/store"
)

// cronParser accepts standard 5-field expressions and descriptors like @daily.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Sweeper periodically dispatches every user to the worker pool.
type Sweeper struct {
	store    store.Store
	pool     *WorkerPool
	cron     *cron.Cron
	schedule string
}

// NewSweeper schedules a sweep according to the cron expression schedule.
func NewSweeper(s store.Store, pool *WorkerPool, schedule string) (*Sweeper, error) {
	if _, err := cronParser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("notification: invalid schedule %q: %w", schedule, err)
	}
	return &Sweeper{
		store:    s,
		pool:     pool,
		cron:     cron.New(cron.WithParser(cronParser)),
		schedule: schedule,
	}, nil
}

// Run starts the schedule and blocks until ctx is done.
func (sw *Sweeper) Run(ctx context.Context) error {
	if _, err := sw.cron.AddFunc(sw.schedule, func() {
		if err := sw.SweepOnce(ctx); err != nil {
			log.WithError(err).Error("Alert sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("notification: schedule sweep: %w", err)
	}
	sw.cron.Start()
	log.Infof("Alert sweep scheduled (%s)", sw.schedule)

	<-ctx.Done()
	<-sw.cron.Stop().Done()
	log.Info("Alert sweep stopped")
	return nil
}

// SweepOnce dispatches every user that owns parts.
func (sw *Sweeper) SweepOnce(ctx context.Context) error {
	owners, err := sw.store.Owners(ctx)
	if err != nil {
		return err
	}
	log.Debugf("Sweeping %d users", len(owners))
	for _, o := range owners {
		if err := sw.pool.DispatchContext(ctx, o); err != nil {
			return err
		}
	}
	return nil
}
