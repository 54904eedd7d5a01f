package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"gear-maintenance-backend/internal/model"
	"gear-maintenance-backend/internal/plan"
	"gear-maintenance-backend/internal/snapshot"
	"gear-maintenance-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	webpush   *webpush.Options
	warnRatio float64
	now       func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, webpushOptions *webpush.Options, warnRatio float64) *Handler {
	return &Handler{
		store:     s,
		webpush:   webpushOptions,
		warnRatio: warnRatio,
		now:       time.Now,
	}
}

// int64Param parses a numeric path parameter, answering 400 on failure.
func int64Param(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}

// timeQuery parses an optional RFC 3339 query parameter, defaulting to now.
func (h *Handler) timeQuery(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return h.now(), true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return time.Time{}, false
	}
	return t, true
}

// snapshot loads the records of the user named by the :uid path parameter.
func (h *Handler) snapshot(c *gin.Context) (int64, *snapshot.Snapshot, bool) {
	uid, ok := int64Param(c, "uid")
	if !ok {
		return 0, nil, false
	}
	sum, err := h.store.Summary(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return 0, nil, false
	}
	return uid, snapshot.New(sum), true
}

// evaluator returns a plan evaluator over snap at the current time.
func (h *Handler) evaluator(snap *snapshot.Snapshot) *plan.Evaluator {
	return plan.New(snap, plan.WithNow(h.now()), plan.WithWarnRatio(h.warnRatio))
}

// respondError maps store and model errors to HTTP status codes.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrInvalidPlan):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.WithError(err).WithField("path", c.FullPath()).Error("api: request failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
