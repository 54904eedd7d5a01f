package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"gear-maintenance-backend/config"
	"gear-maintenance-backend/internal/mw"
	"gear-maintenance-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, webpushOptions *webpush.Options, cfg *config.Config) *gin.Engine {
	r := gin.Default()
	if cfg.Server.RequestIPHeader != "" {
		r.TrustedPlatform = cfg.Server.RequestIPHeader
	}

	handler := NewHandler(s, webpushOptions, cfg.Alerts.WarnRatio)

	// Rate limit per client IP; the burst is half a second's worth, at least 1.
	limit := cfg.Server.RateLimitPerSec
	if limit <= 0 {
		limit = 10
	}
	burst := int(limit / 2)
	if burst < 1 {
		burst = 1
	}
	rateLimiter := mw.RateLimiter(rate.Limit(limit), burst)

	// GET responses are cached only when a TTL is configured. Writes drop
	// the cached responses of the user they touch.
	c := caching{read: next, userWrite: next, globalWrite: next}
	if cfg.Server.CacheTTLSeconds > 0 {
		ttl := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
		cacheStore := cache.New(ttl, 2*ttl)
		c.read = mw.Cache(cacheStore, ttl)
		c.userWrite = mw.Invalidate(cacheStore, func(ctx *gin.Context) string {
			return "/api/user/" + ctx.Param("uid") + "/"
		})
		c.globalWrite = mw.Invalidate(cacheStore, func(*gin.Context) string { return "" })
	}

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter)
	registerRoutes(api, handler, c)

	return r
}

// caching holds the cache middlewares for reads and writes.
type caching struct {
	read        gin.HandlerFunc
	userWrite   gin.HandlerFunc
	globalWrite gin.HandlerFunc
}

func next(c *gin.Context) { c.Next() }

func registerRoutes(api *gin.RouterGroup, handler *Handler, c caching) {
	user := api.Group("/user/:uid")
	user.GET("/summary", c.read, handler.GetSummary)
	user.PUT("/summary", c.userWrite, handler.PutSummary)
	user.GET("/gear/:gear/occupant", c.read, handler.GetOccupant)
	user.GET("/gear/:gear/attachments", c.read, handler.GetGearAttachments)
	user.GET("/part/:part/attachments", c.read, handler.GetPartAttachments)
	user.GET("/part/:part/history", c.read, handler.GetPartHistory)
	user.GET("/part/:part/plans", c.read, handler.GetPartPlans)
	user.GET("/plan/:plan/due", c.read, handler.GetPlanDue)
	user.GET("/plan/:plan/services", c.read, handler.GetPlanServices)
	user.GET("/alerts", c.read, handler.GetAlerts)
	user.POST("/plan", c.userWrite, handler.CreatePlan)

	api.DELETE("/plan/:id", c.globalWrite, handler.DeletePlan)

	api.GET("/subscriptions", handler.GetSubscription)
	api.PUT("/subscriptions", handler.PutSubscription)
	api.DELETE("/subscriptions", handler.DeleteSubscription)
	api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
}
