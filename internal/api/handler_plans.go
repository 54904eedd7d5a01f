package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"gear-maintenance-backend/internal/model"
	"gear-maintenance-backend/internal/plan"
	"gear-maintenance-backend/internal/snapshot"
)

// planFor resolves the :plan path parameter and the optional gear query.
func planFor(c *gin.Context, snap *snapshot.Snapshot) (model.ServicePlan, *int64, bool) {
	p, ok := snap.Plan(c.Param("plan"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "plan not found"})
		return model.ServicePlan{}, nil, false
	}
	raw := c.Query("gear")
	if raw == "" {
		return p, nil, true
	}
	gear, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid gear"})
		return model.ServicePlan{}, nil, false
	}
	return p, &gear, true
}

// GetPlanDue handles GET /api/user/:uid/plan/:plan/due?gear=. It reports the
// remaining budget and status of the plan for the part it resolves to.
func (h *Handler) GetPlanDue(c *gin.Context) {
	_, snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	p, gear, ok := planFor(c, snap)
	if !ok {
		return
	}
	r, ok := h.evaluator(snap).Report(p, gear)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "plan does not apply to any part"})
		return
	}
	c.JSON(http.StatusOK, r)
}

// GetPlanServices handles GET /api/user/:uid/plan/:plan/services?gear=.
func (h *Handler) GetPlanServices(c *gin.Context) {
	_, snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	p, gear, ok := planFor(c, snap)
	if !ok {
		return
	}
	ev := h.evaluator(snap)
	target, ok := ev.ResolvePart(p, gear)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "plan does not apply to any part"})
		return
	}
	services := ev.Services(p, target)
	if services == nil {
		services = []model.Service{}
	}
	c.JSON(http.StatusOK, services)
}

// GetAlerts handles GET /api/user/:uid/alerts.
func (h *Handler) GetAlerts(c *gin.Context) {
	_, snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	ev := h.evaluator(snap)
	plans := snap.Plans()

	due := []plan.Report{}
	for _, r := range ev.Evaluate(plans) {
		if r.Status != plan.StatusOK {
			due = append(due, r)
		}
	}
	counts := ev.AlertsForPlans(plans)
	c.JSON(http.StatusOK, gin.H{"counts": counts, "reports": due})
}

// CreatePlan handles POST /api/user/:uid/plan. A plan bound to a part must
// reference a part of the user; a template is owned by the user.
func (h *Handler) CreatePlan(c *gin.Context) {
	uid, snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	var req model.ServicePlan
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.Part != nil {
		if _, ok := snap.Part(*req.Part); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "part not found"})
			return
		}
		req.UID = nil
	} else {
		req.UID = &uid
	}

	created, err := h.store.CreatePlan(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// DeletePlan handles DELETE /api/plan/:id. The response lists the services
// the plan was unlinked from.
func (h *Handler) DeletePlan(c *gin.Context) {
	services, err := h.store.DeletePlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	log.WithField("plan", c.Param("id")).Info("api: plan deleted")
	if services == nil {
		services = []model.Service{}
	}
	c.JSON(http.StatusOK, gin.H{"services": services})
}
