package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gear-maintenance-backend/internal/model"
	"gear-maintenance-backend/internal/snapshot"
)

// GetSummary handles GET /api/user/:uid/summary.
func (h *Handler) GetSummary(c *gin.Context) {
	_, snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, snap.Summary())
}

// PutSummary handles PUT /api/user/:uid/summary. Every record in the bundle
// must belong to the user; templates without an owner are given the user.
func (h *Handler) PutSummary(c *gin.Context) {
	uid, ok := int64Param(c, "uid")
	if !ok {
		return
	}
	var sum snapshot.Summary
	if err := c.ShouldBindJSON(&sum); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	for i := range sum.Plans {
		if sum.Plans[i].Part == nil && sum.Plans[i].UID == nil {
			sum.Plans[i].UID = &uid
		}
	}
	if err := h.store.CheckOwnership(c.Request.Context(), uid, sum); err != nil {
		respondError(c, err)
		return
	}
	if err := h.store.SaveSummary(c.Request.Context(), sum); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetOccupant handles GET /api/user/:uid/gear/:gear/occupant?what=&hook=&at=.
// It answers which part fills a hook of the gear at the given time; the gear
// itself is returned when the hook is empty.
func (h *Handler) GetOccupant(c *gin.Context) {
	_, snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	gear, ok := int64Param(c, "gear")
	if !ok {
		return
	}
	what, err1 := strconv.ParseInt(c.Query("what"), 10, 32)
	hook, err2 := strconv.ParseInt(c.Query("hook"), 10, 32)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "what and hook are required"})
		return
	}
	at, ok := h.timeQuery(c, "at")
	if !ok {
		return
	}

	tl := snap.Timeline()
	resp := gin.H{"part": tl.ResolveOccupant(gear, model.TypeID(what), model.TypeID(hook), at)}
	if att, ok := tl.AttachmentAtHook(gear, model.TypeID(what), model.TypeID(hook), at); ok {
		resp["attachment"] = att
	} else {
		resp["attachment"] = nil
	}
	c.JSON(http.StatusOK, resp)
}

// GetGearAttachments handles GET /api/user/:uid/gear/:gear/attachments?at=.
func (h *Handler) GetGearAttachments(c *gin.Context) {
	_, snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	gear, ok := int64Param(c, "gear")
	if !ok {
		return
	}
	at, ok := h.timeQuery(c, "at")
	if !ok {
		return
	}
	atts := snap.Timeline().AttachmentsForGear(gear, at)
	if atts == nil {
		atts = []model.Attachment{}
	}
	c.JSON(http.StatusOK, atts)
}

// part resolves the :part path parameter within snap.
func part(c *gin.Context, snap *snapshot.Snapshot) (model.Part, bool) {
	id, ok := int64Param(c, "part")
	if !ok {
		return model.Part{}, false
	}
	p, ok := snap.Part(id)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "part not found"})
		return model.Part{}, false
	}
	return p, true
}

// GetPartAttachments handles GET /api/user/:uid/part/:part/attachments.
func (h *Handler) GetPartAttachments(c *gin.Context) {
	_, snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	p, ok := part(c, snap)
	if !ok {
		return
	}
	atts := snap.Timeline().ForPart(p.ID)
	if atts == nil {
		atts = []model.Attachment{}
	}
	c.JSON(http.StatusOK, atts)
}

// GetPartHistory handles GET /api/user/:uid/part/:part/history.
func (h *Handler) GetPartHistory(c *gin.Context) {
	_, snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	p, ok := part(c, snap)
	if !ok {
		return
	}
	chain := snap.Chain()
	c.JSON(http.StatusOK, gin.H{
		"window": chain.CurrentWindow(p),
		"rows":   chain.Rows(p, snap, h.now()),
	})
}

// GetPartPlans handles GET /api/user/:uid/part/:part/plans?at=&subtypes=.
// With subtypes=true the plans of every part type that can hang below the
// part are included.
func (h *Handler) GetPartPlans(c *gin.Context) {
	_, snap, ok := h.snapshot(c)
	if !ok {
		return
	}
	p, ok := part(c, snap)
	if !ok {
		return
	}
	ev := h.evaluator(snap)

	var plans []model.ServicePlan
	if c.Query("subtypes") == "true" {
		plans = ev.PlansForPartAndSubtypes(p)
	} else {
		at, ok := h.timeQuery(c, "at")
		if !ok {
			return
		}
		plans = ev.PlansForPart(p.ID, at)
	}
	if plans == nil {
		plans = []model.ServicePlan{}
	}
	c.JSON(http.StatusOK, plans)
}
