// Package snapshot holds one user's records as an immutable, indexed value.
//
// Every engine query runs against a Snapshot. Updates never touch an existing
// Snapshot; Apply and the Without helpers return a new one.
package snapshot

import (
	log "github.com/sirupsen/logrus"

	"gear-maintenance-backend/internal/history"
	"gear-maintenance-backend/internal/model"
	"gear-maintenance-backend/internal/timeline"
	"gear-maintenance-backend/internal/usage"
)

// Summary is the bundle of collections exchanged with the host layer.
type Summary struct {
	Parts       []model.Part        `json:"parts"`
	Attachments []model.Attachment  `json:"attachments"`
	Activities  []model.Activity    `json:"activities"`
	Usages      []usage.Ledger      `json:"usages"`
	Services    []model.Service     `json:"services"`
	Plans       []model.ServicePlan `json:"serviceplans"`
}

// Snapshot is a consistent, read-only view of a Summary.
type Snapshot struct {
	sum      Summary
	parts    map[int64]int
	usages   map[string]int
	plans    map[string]int
	timeline *timeline.Timeline
	chain    *history.Chain
}

// New indexes a summary. Later records replace earlier ones with the same key.
func New(s Summary) *Snapshot {
	return build(Summary{}, s)
}

func build(base, delta Summary) *Snapshot {
	sum := Summary{
		Parts:      merge(base.Parts, delta.Parts, func(p model.Part) int64 { return p.ID }),
		Activities: merge(base.Activities, delta.Activities, func(a model.Activity) int64 { return a.ID }),
		Usages:     merge(base.Usages, delta.Usages, func(u usage.Ledger) string { return u.ID }),
		Services:   merge(base.Services, delta.Services, func(s model.Service) string { return s.ID }),
		Plans:      merge(base.Plans, delta.Plans, func(p model.ServicePlan) string { return p.ID }),
	}
	tl := timeline.New(append(append([]model.Attachment(nil), base.Attachments...), delta.Attachments...))
	sum.Attachments = tl.All()

	return &Snapshot{
		sum:      sum,
		parts:    index(sum.Parts, func(p model.Part) int64 { return p.ID }),
		usages:   index(sum.Usages, func(u usage.Ledger) string { return u.ID }),
		plans:    index(sum.Plans, func(p model.ServicePlan) string { return p.ID }),
		timeline: tl,
		chain:    history.NewChain(sum.Services),
	}
}

func merge[T any, K comparable](base, delta []T, key func(T) K) []T {
	res := make([]T, 0, len(base)+len(delta))
	pos := make(map[K]int, len(base)+len(delta))
	for _, list := range [][]T{base, delta} {
		for _, v := range list {
			k := key(v)
			if i, ok := pos[k]; ok {
				res[i] = v
				continue
			}
			pos[k] = len(res)
			res = append(res, v)
		}
	}
	return res
}

func index[T any, K comparable](list []T, key func(T) K) map[K]int {
	m := make(map[K]int, len(list))
	for i, v := range list {
		m[key(v)] = i
	}
	return m
}

func without[T any](list []T, drop func(T) bool) []T {
	res := make([]T, 0, len(list))
	for _, v := range list {
		if !drop(v) {
			res = append(res, v)
		}
	}
	return res
}

// Apply returns a new snapshot with delta upserted by key. Empty attachments
// in delta remove the attachment with the same key.
func (s *Snapshot) Apply(delta Summary) *Snapshot {
	return build(s.sum, delta)
}

// WithoutService returns a new snapshot with the service removed.
func (s *Snapshot) WithoutService(id string) *Snapshot {
	sum := s.Summary()
	sum.Services = without(sum.Services, func(v model.Service) bool { return v.ID == id })
	return New(sum)
}

// WithoutPlan returns a new snapshot with the plan removed.
func (s *Snapshot) WithoutPlan(id string) *Snapshot {
	sum := s.Summary()
	sum.Plans = without(sum.Plans, func(v model.ServicePlan) bool { return v.ID == id })
	return New(sum)
}

// Summary returns a copy of the underlying collections.
func (s *Snapshot) Summary() Summary {
	return Summary{
		Parts:       append([]model.Part(nil), s.sum.Parts...),
		Attachments: append([]model.Attachment(nil), s.sum.Attachments...),
		Activities:  append([]model.Activity(nil), s.sum.Activities...),
		Usages:      append([]usage.Ledger(nil), s.sum.Usages...),
		Services:    append([]model.Service(nil), s.sum.Services...),
		Plans:       append([]model.ServicePlan(nil), s.sum.Plans...),
	}
}

// Timeline returns the attachment timeline.
func (s *Snapshot) Timeline() *timeline.Timeline { return s.timeline }

// Chain returns the service history index.
func (s *Snapshot) Chain() *history.Chain { return s.chain }

// Part looks up a part or gear.
func (s *Snapshot) Part(id int64) (model.Part, bool) {
	i, ok := s.parts[id]
	if !ok {
		return model.Part{}, false
	}
	return s.sum.Parts[i], true
}

// Parts returns all parts in natural order.
func (s *Snapshot) Parts() []model.Part {
	return append([]model.Part(nil), s.sum.Parts...)
}

// Plan looks up a service plan.
func (s *Snapshot) Plan(id string) (model.ServicePlan, bool) {
	i, ok := s.plans[id]
	if !ok {
		return model.ServicePlan{}, false
	}
	return s.sum.Plans[i], true
}

// Plans returns all service plans in natural order.
func (s *Snapshot) Plans() []model.ServicePlan {
	return append([]model.ServicePlan(nil), s.sum.Plans...)
}

// Ledger resolves a usage id. A missing ledger is a stale reference and
// resolves to zero usage.
func (s *Snapshot) Ledger(id string) usage.Ledger {
	if i, ok := s.usages[id]; ok {
		return s.sum.Usages[i]
	}
	if id != "" {
		log.WithField("usage", id).Debug("snapshot: unknown usage reference")
	}
	return usage.New(id)
}
