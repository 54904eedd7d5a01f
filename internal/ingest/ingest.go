package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"

	"gear-maintenance-backend/config"
	"gear-maintenance-backend/internal/model"
	"gear-maintenance-backend/internal/parse"
	"gear-maintenance-backend/internal/store"
)

// timestampLayout is the layout of the feed's start timestamps.
const timestampLayout = "2006-01-02 15:04:05"

// Dispatcher receives users whose usage changed. DispatchContext gives up
// when ctx is done.
type Dispatcher interface {
	DispatchContext(ctx context.Context, owner int64) error
}

// Service polls the activity feed and records new activities.
type Service struct {
	cfg    config.IngestConfig
	store  store.Store
	client *http.Client
	loc    *time.Location
	pool   Dispatcher
}

// NewService creates and initializes a new ingest service.
func NewService(cfg config.IngestConfig, s store.Store, pool Dispatcher) *Service {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Warnf("Invalid proxy URL %q: %v. Ingest will not use a proxy.", cfg.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warnf("Unknown timezone %q: %v. Falling back to UTC.", cfg.Timezone, err)
		loc = time.UTC
	}

	return &Service{
		cfg:   cfg,
		store: s,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		loc:  loc,
		pool: pool,
	}
}

// Run starts the ingest process in a loop.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Info("Ingest is disabled. Not starting.")
		return
	}
	log.Info("Starting ingest service...")

	s.IngestOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Ingest service shutting down.")
			return
		case <-timer.C:
			s.IngestOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// IngestOnce fetches every page of the feed, records new activities and
// dispatches the users whose gear was used.
func (s *Service) IngestOnce(ctx context.Context) {
	log.Debug("Executing ingest cycle...")

	var items []FeedItem
	total := 1
	pageSize := s.cfg.Request.PageSize
	var fetchErr error
	for page := 1; (page-1)*pageSize < total; page++ {
		resp, err := s.fetchPage(ctx, page)
		if err != nil {
			log.Errorf("Error fetching page %d: %v", page, err)
			fetchErr = err
			break
		}
		if resp.Data.Total == 0 || len(resp.Data.Items) == 0 {
			break
		}
		total = resp.Data.Total
		items = append(items, resp.Data.Items...)
		log.Debugf("Fetched page %d, total items so far: %d/%d", page, len(items), total)
	}

	if fetchErr != nil && len(items) == 0 {
		log.Warn("Ingest cycle aborted due to fetch error with no items retrieved.")
		return
	}

	activities := make([]model.Activity, 0, len(items))
	for _, item := range items {
		a, err := s.toActivity(item)
		if err != nil {
			log.WithField("activity", item.ID).Warnf("Skipping activity: %v", err)
			continue
		}
		activities = append(activities, a)
	}
	if len(activities) == 0 {
		log.Debug("Ingest cycle finished: no activities to process.")
		return
	}

	owners, err := s.store.RecordActivities(ctx, activities)
	if err != nil {
		log.Errorf("Error recording activities: %v", err)
		return
	}

	if len(owners) > 0 {
		log.Infof("Dispatching plan checks for %d users", len(owners))
		for _, owner := range owners {
			if err := s.pool.DispatchContext(ctx, owner); err != nil {
				log.Warnf("Stopped dispatching plan checks: %v", err)
				return
			}
		}
	}

	log.Debug("Ingest cycle finished.")
}

// toActivity converts a feed item, parsing its timestamp in the configured
// timezone and its measurements into base units.
func (s *Service) toActivity(item FeedItem) (model.Activity, error) {
	start, err := time.ParseInLocation(timestampLayout, item.Start, s.loc)
	if err != nil {
		return model.Activity{}, fmt.Errorf("failed to parse start %q: %w", item.Start, err)
	}
	a := model.Activity{
		ID:      item.ID,
		UserID:  item.UserID,
		What:    item.What,
		Name:    item.Name,
		Start:   start.UTC(),
		Gear:    item.Gear,
		Climb:   item.Climb,
		Descend: item.Descend,
	}
	if a.Distance, err = parse.Distance(item.Distance); err != nil {
		return model.Activity{}, err
	}
	if a.Time, err = parse.Duration(item.Time); err != nil {
		return model.Activity{}, err
	}
	if a.Duration, err = parse.Duration(item.Duration); err != nil {
		return model.Activity{}, err
	}
	if a.Energy, err = parse.Energy(item.Energy); err != nil {
		return model.Activity{}, err
	}
	return a, nil
}

// fetchPage fetches a single page of activities from the feed.
func (s *Service) fetchPage(ctx context.Context, page int) (*ApiResponse, error) {
	payload := make(map[string]any)
	for k, v := range s.cfg.Request.Payload {
		payload[k] = v
	}
	payload["page"] = page
	payload["pageSize"] = s.cfg.Request.PageSize

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Request.URL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range s.cfg.Request.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp ApiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal api response: %w", err)
	}

	if apiResp.Code != 0 {
		return nil, fmt.Errorf("API returned non-zero application code: %d", apiResp.Code)
	}

	return &apiResp, nil
}
