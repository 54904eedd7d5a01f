package plan

import (
	"time"

	"gear-maintenance-backend/internal/model"
)

func hookIs(h *model.TypeID, want model.TypeID) bool {
	return h != nil && *h == want
}

func partIs(p *int64, want int64) bool {
	return p != nil && *p == want
}

// PlansForPart returns the plans relevant to a part at the given time. An
// attached part gets its own plans, the plans its gear defines for the
// hook, and templates for the hook materialised to the part unless a plan
// for the same type and hook already exists. A detached part only gets its
// own part-specific plans.
func (e *Evaluator) PlansForPart(part int64, at time.Time) []model.ServicePlan {
	if att, ok := e.snap.Timeline().AttachmentForPart(part, at); ok {
		return e.plansForAttachee(att)
	}
	var res []model.ServicePlan
	for _, p := range e.snap.Plans() {
		if partIs(p.Part, part) && p.Hook == nil {
			res = append(res, p)
		}
	}
	return res
}

func (e *Evaluator) plansForAttachee(att model.Attachment) []model.ServicePlan {
	plans := e.snap.Plans()
	var res []model.ServicePlan
	for _, p := range plans {
		if partIs(p.Part, att.PartID) ||
			(partIs(p.Part, att.Gear) && hookIs(p.Hook, att.Hook) && p.What == att.What) {
			res = append(res, p)
		}
	}
	covered := func(p model.ServicePlan) bool {
		for _, r := range res {
			if model.SameHook(r.Hook, p.Hook) && r.What == p.What {
				return true
			}
		}
		return false
	}
	var templates []model.ServicePlan
	for _, p := range plans {
		if p.IsTemplate() && hookIs(p.Hook, att.Hook) && p.What == att.What && !covered(p) {
			templates = append(templates, p.ForPart(att.PartID))
		}
	}
	return append(res, templates...)
}

// plansAtHook returns the plans for parts of type typ at hook on part.
func (e *Evaluator) plansAtHook(part model.Part, typ model.TypeID, hook model.TypeID) []model.ServicePlan {
	if att, ok := e.snap.Timeline().AttachmentAtHook(part.ID, typ, hook, e.now); ok {
		return e.plansForAttachee(att)
	}
	plans := e.snap.Plans()
	var res []model.ServicePlan
	for _, p := range plans {
		if partIs(p.Part, part.ID) && p.What == typ && hookIs(p.Hook, hook) {
			res = append(res, p)
		}
	}
	if len(res) > 0 {
		return res
	}
	for _, p := range plans {
		if p.IsTemplate() && p.What == typ && hookIs(p.Hook, hook) {
			res = append(res, p.ForPart(part.ID))
		}
	}
	return res
}

// PlansForPartAndSubtypes returns the plans of a part together with the
// plans of everything that can be attached to it, directly or through other
// parts. Each plan appears once per part it is materialised for.
func (e *Evaluator) PlansForPartAndSubtypes(part model.Part) []model.ServicePlan {
	res := e.PlansForPart(part.ID, e.now)
	for _, typ := range part.What.Subtypes() {
		for _, hook := range typ.Hooks {
			res = append(res, e.plansAtHook(part, typ.ID, hook)...)
		}
	}
	return dedupe(res)
}

func dedupe(plans []model.ServicePlan) []model.ServicePlan {
	type key struct {
		id   string
		part int64
	}
	seen := make(map[key]bool, len(plans))
	res := plans[:0]
	for _, p := range plans {
		k := key{id: p.ID}
		if p.Part != nil {
			k.part = *p.Part
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		res = append(res, p)
	}
	return res
}
