// Package plan evaluates service plans against a snapshot: which part a plan
// applies to, how much budget is left and whether service is due.
package plan

import (
	"time"

	log "github.com/sirupsen/logrus"

	"gear-maintenance-backend/internal/model"
	"gear-maintenance-backend/internal/snapshot"
)

// Status is the aggregate state of a plan.
type Status string

const (
	StatusOK    Status = "ok"
	StatusWarn  Status = "warn"
	StatusAlert Status = "alert"
)

func (s Status) rank() int {
	switch s {
	case StatusAlert:
		return 2
	case StatusWarn:
		return 1
	}
	return 0
}

// Worse returns the more severe of both states.
func (s Status) Worse(o Status) Status {
	if o.rank() > s.rank() {
		return o
	}
	return s
}

// DefaultWarnRatio is the share of a threshold below which a plan warns.
const DefaultWarnRatio = 0.05

// Counts tallies plans by status. Plans that are ok are not counted.
type Counts struct {
	Warn  int `json:"warn"`
	Alert int `json:"alert"`
}

// Report is the evaluation of one plan for one part.
type Report struct {
	Plan    model.ServicePlan `json:"plan"`
	Gear    int64             `json:"gear"`
	Part    model.Part        `json:"part"`
	Service *model.Service    `json:"service"`
	Due     model.Limits      `json:"due"`
	Status  Status            `json:"status"`
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithNow fixes the reference time. It defaults to time.Now at construction.
func WithNow(t time.Time) Option {
	return func(e *Evaluator) { e.now = t }
}

// WithWarnRatio overrides DefaultWarnRatio.
func WithWarnRatio(r float64) Option {
	return func(e *Evaluator) {
		if r > 0 {
			e.warnRatio = r
		}
	}
}

// Evaluator answers plan queries against one snapshot at one point in time.
// It holds no mutable state and is safe for concurrent use.
type Evaluator struct {
	snap      *snapshot.Snapshot
	now       time.Time
	warnRatio float64
}

// New returns an evaluator over snap.
func New(snap *snapshot.Snapshot, opts ...Option) *Evaluator {
	e := &Evaluator{snap: snap, now: time.Now(), warnRatio: DefaultWarnRatio}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the reference time of the evaluator.
func (e *Evaluator) Now() time.Time { return e.now }

// ResolvePart returns the part a plan applies to on the given gear, or on
// the plan's own part when gear is nil. A plan without hook applies to that
// part itself; otherwise the occupant of the plan's hook is used.
func (e *Evaluator) ResolvePart(p model.ServicePlan, gear *int64) (model.Part, bool) {
	host := p.Part
	if gear != nil {
		host = gear
	}
	if host == nil {
		return model.Part{}, false
	}
	id := *host
	if p.Hook != nil {
		id = e.snap.Timeline().ResolveOccupant(id, p.What, *p.Hook, e.now)
	}
	part, ok := e.snap.Part(id)
	if !ok {
		log.WithFields(log.Fields{"plan": p.ID, "part": id}).Debug("plan: unknown part")
	}
	return part, ok
}

// Services returns the services of part that fulfil the plan, newest first.
func (e *Evaluator) Services(p model.ServicePlan, part model.Part) []model.Service {
	var res []model.Service
	for _, s := range e.snap.Chain().ForPart(part.ID) {
		if s.Fulfils(p.ID) {
			res = append(res, s)
		}
	}
	return res
}

// LatestService returns the newest service of part that fulfils the plan
// and sits at the open end of its chain.
func (e *Evaluator) LatestService(p model.ServicePlan, part model.Part) (model.Service, bool) {
	for _, s := range e.Services(p, part) {
		if _, ok := e.snap.Chain().Successor(s); !ok {
			return s, true
		}
	}
	return model.Service{}, false
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}

func threshold(v *int64) (int64, bool) {
	if v == nil || *v <= 0 {
		return 0, false
	}
	return *v, true
}

// Due returns the remaining budget per threshold of the plan. Usage and time
// are counted since svc, or since purchase when svc is nil. Untracked
// thresholds stay nil; zero or negative means due or overdue.
func (e *Evaluator) Due(p model.ServicePlan, part model.Part, svc *model.Service) model.Limits {
	since := part.Purchase
	u := e.snap.Ledger(part.UsageID)
	if svc != nil {
		since = svc.Time
		u = u.Sub(e.snap.Ledger(svc.UsageID))
	}

	observed := map[model.LimitKey]int64{
		model.LimitDays:    model.Days(since, e.now),
		model.LimitHours:   floorDiv(u.Time, 3600),
		model.LimitKm:      floorDiv(u.Distance, 1000),
		model.LimitClimb:   u.Climb,
		model.LimitDescend: u.Descend,
		model.LimitRides:   u.Count,
		model.LimitKJ:      u.Energy,
	}
	var res model.Limits
	for _, k := range model.LimitKeys {
		th, ok := threshold(p.Limits.Get(k))
		if !ok {
			continue
		}
		remaining := th - observed[k]
		res.Set(k, &remaining)
	}
	return res
}

// Alert folds the remaining budgets of the plan into a status. Any negative
// value is an alert; any value below the warn ratio of its threshold warns.
func (e *Evaluator) Alert(p model.ServicePlan, part model.Part, svc *model.Service) Status {
	return e.status(p, e.Due(p, part, svc))
}

func (e *Evaluator) status(p model.ServicePlan, due model.Limits) Status {
	res := StatusOK
	for _, k := range model.LimitKeys {
		rem := due.Get(k)
		if rem == nil {
			continue
		}
		th, _ := threshold(p.Limits.Get(k))
		switch {
		case *rem < 0:
			res = res.Worse(StatusAlert)
		case float64(*rem) < float64(th)*e.warnRatio:
			res = res.Worse(StatusWarn)
		}
	}
	return res
}

// Report evaluates the plan for the part it resolves to on gear.
func (e *Evaluator) Report(p model.ServicePlan, gear *int64) (Report, bool) {
	part, ok := e.ResolvePart(p, gear)
	if !ok {
		return Report{}, false
	}
	r := Report{Plan: p, Part: part}
	if gear != nil {
		r.Gear = *gear
	} else if p.Part != nil {
		r.Gear = *p.Part
	}
	if s, ok := e.LatestService(p, part); ok {
		r.Service = &s
	}
	r.Due = e.Due(p, part, r.Service)
	r.Status = e.status(p, r.Due)
	return r, true
}

// Gears returns the gears a plan is evaluated on. A plan bound to a part
// only covers that part. A template covers every in-service gear of its
// main type that has no gear-specific plan for the same type and hook.
func (e *Evaluator) Gears(p model.ServicePlan, plans []model.ServicePlan) []model.Part {
	if p.Part != nil {
		if part, ok := e.snap.Part(*p.Part); ok {
			return []model.Part{part}
		}
		return nil
	}
	main := p.What.MainType()
	var res []model.Part
	for _, part := range e.snap.Parts() {
		if !part.InService() || part.What != main {
			continue
		}
		if overridden(p, part.ID, plans) {
			continue
		}
		res = append(res, part)
	}
	return res
}

func overridden(p model.ServicePlan, gear int64, plans []model.ServicePlan) bool {
	for _, o := range plans {
		if o.Part != nil && *o.Part == gear && model.SameHook(o.Hook, p.Hook) && o.What == p.What {
			return true
		}
	}
	return false
}

// Evaluate reports every plan on every gear it covers.
func (e *Evaluator) Evaluate(plans []model.ServicePlan) []Report {
	var res []Report
	for _, p := range plans {
		for _, gear := range e.Gears(p, plans) {
			id := gear.ID
			if r, ok := e.Report(p, &id); ok {
				res = append(res, r)
			}
		}
	}
	return res
}

// AlertsForPlans counts the plan evaluations that warn or alert.
func (e *Evaluator) AlertsForPlans(plans []model.ServicePlan) Counts {
	var c Counts
	for _, r := range e.Evaluate(plans) {
		switch r.Status {
		case StatusWarn:
			c.Warn++
		case StatusAlert:
			c.Alert++
		}
	}
	return c
}
