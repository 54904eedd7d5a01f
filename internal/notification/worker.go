package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	log "github.com/sirupsen/logrus"

	"gear-maintenance-backend/internal/model"
	"gear-maintenance-backend/internal/plan"
	"gear-maintenance-backend/internal/snapshot"
	"gear-maintenance-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Option configures a WorkerPool.
type Option func(*WorkerPool)

// WithPublisher adds an MQTT-style publisher to the delivery channels.
func WithPublisher(p Publisher) Option {
	return func(wp *WorkerPool) { wp.publisher = p }
}

// WithPoster adds a chat digest poster to the delivery channels.
func WithPoster(p Poster) Option {
	return func(wp *WorkerPool) { wp.poster = p }
}

// WithWarnRatio sets the warn ratio used when evaluating plans.
func WithWarnRatio(r float64) Option {
	return func(wp *WorkerPool) { wp.warnRatio = r }
}

// WorkerPool evaluates the service plans of users and delivers alerts for
// plans that are due. Jobs are user ids.
type WorkerPool struct {
	size      int
	jobs      chan int64
	store     store.Store
	webpush   *webpush.Options
	sender    NotificationSender
	publisher Publisher
	poster    Poster
	warnRatio float64
	now       func() time.Time
}

// NewWorkerPool creates a new worker pool. Web push is skipped when
// webpushOptions is nil.
func NewWorkerPool(size int, s store.Store, webpushOptions *webpush.Options, opts ...Option) *WorkerPool {
	wp := &WorkerPool{
		size:      size,
		jobs:      make(chan int64, size), // Buffered channel
		store:     s,
		webpush:   webpushOptions,
		sender:    &WebPushSender{}, // Use the real sender by default
		warnRatio: plan.DefaultWarnRatio,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(wp)
	}
	return wp
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Debugf("Worker %d started", id)
	for {
		select {
		case owner := <-wp.jobs:
			log.WithFields(log.Fields{"worker": id, "user": owner}).Debug("Checking service plans")
			wp.notifyOwner(ctx, owner)
		case <-ctx.Done():
			log.Debugf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch sends a job to the worker pool.
func (wp *WorkerPool) Dispatch(owner int64) {
	wp.jobs <- owner
}

// DispatchContext is Dispatch that gives up when ctx is done.
func (wp *WorkerPool) DispatchContext(ctx context.Context, owner int64) error {
	select {
	case wp.jobs <- owner:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan int64 {
	return wp.jobs
}

// Alert lists the plans of one user that warn or alert.
type Alert struct {
	Owner   int64         `json:"owner"`
	Time    time.Time     `json:"time"`
	Counts  plan.Counts   `json:"counts"`
	Reports []plan.Report `json:"reports"`
}

// Empty reports whether no plan needs attention.
func (a Alert) Empty() bool {
	return len(a.Reports) == 0
}

// CheckOwner evaluates every plan of owner and returns those that are due.
func (wp *WorkerPool) CheckOwner(ctx context.Context, owner int64) (Alert, error) {
	sum, err := wp.store.Summary(ctx, owner)
	if err != nil {
		return Alert{}, err
	}
	snap := snapshot.New(sum)
	ev := plan.New(snap, plan.WithNow(wp.now()), plan.WithWarnRatio(wp.warnRatio))

	a := Alert{Owner: owner, Time: ev.Now()}
	for _, r := range ev.Evaluate(snap.Plans()) {
		switch r.Status {
		case plan.StatusWarn:
			a.Counts.Warn++
		case plan.StatusAlert:
			a.Counts.Alert++
		default:
			continue
		}
		a.Reports = append(a.Reports, r)
	}
	return a, nil
}

// notifyOwner checks the plans of owner and delivers an alert on every
// configured channel.
func (wp *WorkerPool) notifyOwner(ctx context.Context, owner int64) {
	alert, err := wp.CheckOwner(ctx, owner)
	if err != nil {
		log.WithError(err).WithField("user", owner).Error("Error checking service plans")
		return
	}
	if alert.Empty() {
		return
	}

	payload, err := json.Marshal(pushMessage{Title: alert.Title(), Body: alert.Body()})
	if err != nil {
		log.WithError(err).Error("Error encoding push message")
		return
	}

	if wp.webpush != nil {
		subscriptions, err := wp.store.Subscriptions(ctx, owner)
		if err != nil {
			log.WithError(err).WithField("user", owner).Error("Error fetching subscriptions")
		}
		log.Infof("Sending %d notifications for user %d", len(subscriptions), owner)
		for _, sub := range subscriptions {
			wp.sendNotification(ctx, sub, payload)
		}
	}

	if wp.publisher != nil {
		body, err := json.Marshal(alert)
		if err == nil {
			err = wp.publisher.Publish(ctx, owner, body)
		}
		if err != nil {
			log.WithError(err).WithField("user", owner).Error("Error publishing alert")
		}
	}

	if wp.poster != nil {
		if err := wp.poster.Post(ctx, alert); err != nil {
			log.WithError(err).WithField("user", owner).Error("Error posting alert digest")
		}
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	// Manually construct the webpush.Subscription object
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.WithError(err).WithField("endpoint", sub.Endpoint).Error("Error sending notification")
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Infof("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.WithError(err).Errorf("Failed to delete expired subscription %s", sub.Endpoint)
		}
	}
}
