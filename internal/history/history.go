// Package history threads the services of a part into an ordered chain.
//
// Services are stored as a reverse linked list: every service names its
// successor. A Chain indexes the predecessors once so walking back from any
// service never rescans the whole set.
package history

import (
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"gear-maintenance-backend/internal/model"
	"gear-maintenance-backend/internal/usage"
)

// Ledgers resolves usage snapshot ids. Unknown ids resolve to a zero ledger.
type Ledgers interface {
	Ledger(id string) usage.Ledger
}

// Entry is one step of a depth-annotated history walk.
type Entry struct {
	Depth     int           `json:"depth"`
	Service   model.Service `json:"service"`
	Successor model.Service `json:"successor"`
}

// Window is the open usage window of a part: everything accrued since the
// last service, or since purchase if there is none.
type Window struct {
	Since      model.Service `json:"since"`
	Start      time.Time     `json:"start"`
	UsageStart string        `json:"usage_start"`
	UsageEnd   string        `json:"usage_end"`
}

// Row is a history entry with the usage and days of its service window.
type Row struct {
	Depth   int           `json:"depth"`
	Service model.Service `json:"service"`
	Days    int64         `json:"days"`
	Usage   usage.Ledger  `json:"usage"`
}

// Chain is an immutable index over a set of services.
type Chain struct {
	services []model.Service
	byID     map[string]int
	preds    map[string][]int
}

// NewChain indexes services in their natural order. Successor links that
// cross parts are ignored.
func NewChain(services []model.Service) *Chain {
	c := &Chain{
		services: make([]model.Service, 0, len(services)),
		byID:     make(map[string]int, len(services)),
		preds:    make(map[string][]int),
	}
	for _, s := range services {
		if i, ok := c.byID[s.ID]; ok {
			c.services[i] = s
			continue
		}
		c.byID[s.ID] = len(c.services)
		c.services = append(c.services, s)
	}
	for i, s := range c.services {
		if s.Successor == nil {
			continue
		}
		if j, ok := c.byID[*s.Successor]; ok && c.services[j].PartID != s.PartID {
			log.WithFields(log.Fields{
				"service":   s.ID,
				"successor": *s.Successor,
			}).Debug("history: successor belongs to another part, ignoring link")
			continue
		}
		c.preds[*s.Successor] = append(c.preds[*s.Successor], i)
	}
	return c
}

// Services returns all indexed services in natural order.
func (c *Chain) Services() []model.Service {
	res := make([]model.Service, len(c.services))
	copy(res, c.services)
	return res
}

// Service looks up a service by id.
func (c *Chain) Service(id string) (model.Service, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.Service{}, false
	}
	return c.services[i], true
}

// Successor resolves the successor of s. A dangling or cross-part reference
// counts as no successor.
func (c *Chain) Successor(s model.Service) (model.Service, bool) {
	if s.Successor == nil {
		return model.Service{}, false
	}
	next, ok := c.Service(*s.Successor)
	if !ok {
		log.WithFields(log.Fields{
			"service":   s.ID,
			"successor": *s.Successor,
		}).Debug("history: dangling successor")
		return model.Service{}, false
	}
	if next.PartID != s.PartID {
		return model.Service{}, false
	}
	return next, true
}

func (c *Chain) directPredecessors(s model.Service) []model.Service {
	if s.IsGenesis() {
		return nil
	}
	idx := c.preds[s.ID]
	res := make([]model.Service, 0, len(idx))
	for _, i := range idx {
		res = append(res, c.services[i])
	}
	return res
}

// Predecessors walks back from s in pre-order: each direct predecessor is
// followed by its own predecessors. Where the walk ends, a genesis record
// with s's successor link stands in for the part being new, so the result
// is never empty.
func (c *Chain) Predecessors(s model.Service) []model.Service {
	var res []model.Service
	for _, e := range c.History(0, s) {
		res = append(res, e.Service)
	}
	return res
}

// History walks back from s like Predecessors and annotates every entry
// with a display depth. Direct predecessors are one level deeper than their
// successor; when several predecessors fan in, the earlier ones in natural
// order get the higher depth. A genesis entry has the zero Time; Rows
// anchors it at the purchase date.
func (c *Chain) History(depth int, s model.Service) []Entry {
	visited := map[string]bool{s.ID: true}
	return c.history(depth, s, visited)
}

func (c *Chain) history(depth int, s model.Service, visited map[string]bool) []Entry {
	var preds []model.Service
	for _, p := range c.directPredecessors(s) {
		if visited[p.ID] {
			log.WithFields(log.Fields{
				"service": p.ID,
				"part":    p.PartID,
			}).Warn("history: successor cycle detected")
			continue
		}
		preds = append(preds, p)
	}
	if len(preds) == 0 {
		succ := s.ID
		return []Entry{{Depth: depth, Service: model.Genesis(s.PartID, &succ, time.Time{}), Successor: s}}
	}

	var res []Entry
	for i, p := range preds {
		visited[p.ID] = true
		d := depth + len(preds) - (i + 1)
		res = append(res, Entry{Depth: d, Service: p, Successor: s})
		res = append(res, c.history(d+1, p, visited)...)
	}
	return res
}

// ForPart returns the services of a part, newest first.
func (c *Chain) ForPart(part int64) []model.Service {
	var res []model.Service
	for _, s := range c.services {
		if s.PartID == part {
			res = append(res, s)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Time.After(res[j].Time)
	})
	return res
}

// Open returns the service at the open end of the part's chain: the newest
// service without a resolvable successor.
func (c *Chain) Open(part int64) (model.Service, bool) {
	for _, s := range c.ForPart(part) {
		if _, ok := c.Successor(s); !ok {
			return s, true
		}
	}
	return model.Service{}, false
}

// CurrentWindow returns the open usage window of p.
func (c *Chain) CurrentWindow(p model.Part) Window {
	if s, ok := c.Open(p.ID); ok {
		return Window{Since: s, Start: s.Time, UsageStart: s.UsageID, UsageEnd: p.UsageID}
	}
	return Window{
		Since:    model.Genesis(p.ID, nil, p.Purchase),
		Start:    p.Purchase,
		UsageEnd: p.UsageID,
	}
}

// Rows lists the service windows of p, newest first, each with the usage
// accrued and days elapsed until its successor, or until now for the open
// window.
func (c *Chain) Rows(p model.Part, ledgers Ledgers, now time.Time) []Row {
	open, ok := c.Open(p.ID)
	if !ok {
		return []Row{row(0, model.Genesis(p.ID, nil, p.Purchase), nil, p, ledgers, now)}
	}
	res := []Row{row(0, open, nil, p, ledgers, now)}
	for _, e := range c.History(1, open) {
		succ := e.Successor
		res = append(res, row(e.Depth, e.Service, &succ, p, ledgers, now))
	}
	return res
}

func row(depth int, s model.Service, successor *model.Service, p model.Part, ledgers Ledgers, now time.Time) Row {
	next, end := p.UsageID, now
	if successor != nil {
		next, end = successor.UsageID, successor.Time
	}
	u := ledgers.Ledger(next)
	if s.IsGenesis() {
		s.Time = p.Purchase
	} else {
		u = u.Sub(ledgers.Ledger(s.UsageID))
	}
	return Row{Depth: depth, Service: s, Days: model.Days(s.Time, end), Usage: u}
}
