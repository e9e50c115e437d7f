package http

import (
	"context"
	"net/http"

	"github.com/dkeye/Membership/internal/adapters/stream"
	"github.com/dkeye/Membership/internal/app"
	"github.com/dkeye/Membership/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// SetupRouter wires the REST API under /api and the per-room event stream.
func SetupRouter(ctx context.Context, cfg *config.Config, svc *app.Service) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(ClientTokenMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := &Handlers{Svc: svc}
	limiter := NewClientRateLimiter(cfg.AppendRate, cfg.AppendBurst)
	streams := &stream.Controller{
		Hub:        svc.Hub,
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		Buffer:     cfg.StreamBuffer,
	}

	api := r.Group("/api")
	api.PUT("/rooms/:room/members/:member", limiter.Middleware(), h.appendMembership)
	api.GET("/rooms/:room/members/:member", h.getMembership)
	api.GET("/rooms/:room/members", h.listMembers)
	api.GET("/rooms/:room/domains", h.listJoinedDomains)
	api.GET("/members/:member/rooms", h.listMemberRooms)
	api.GET("/rooms/:room/stream", func(c *gin.Context) {
		streams.HandleStream(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
