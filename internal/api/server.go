// Package api is the minimum HTTP surface spec.md §6.1 requires over the
// Run Execution Core: create+enqueue a run, read its snapshot, read or
// stream its events, request cancellation, retry, and list artifacts.
// Identity/RBAC and tenant bootstrap are explicitly out of scope (spec.md
// §1); this package reads a pre-authenticated tenant id off a header the
// way pkg/api/handlers.go reads a pre-built session off the request,
// leaving real authentication to a reverse proxy or gateway in front of
// it.
package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/researchops/runcore/internal/runstate"
	"github.com/researchops/runcore/internal/sse"
	"github.com/researchops/runcore/internal/store"
)

// Server wires the HTTP surface to the stores and queue it fronts,
// grounded on pkg/api/handlers.go's Server struct.
type Server struct {
	pool      *pgxpool.Pool
	sink      runstate.EventSink
	runs      *store.RunRepo
	jobs      *store.JobRepo
	events    *store.EventRepo
	artifacts *store.ArtifactRepo
	streamer  *sse.Streamer
}

func NewServer(pool *pgxpool.Pool, sink runstate.EventSink) *Server {
	return &Server{
		pool:      pool,
		sink:      sink,
		runs:      store.NewRunRepo(),
		jobs:      store.NewJobRepo(),
		events:    store.NewEventRepo(),
		artifacts: store.NewArtifactRepo(),
		streamer:  sse.New(pool),
	}
}

// Router builds the gin engine with every route spec.md §6.1 names,
// grounded on pkg/api/server.go's route table.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), securityHeaders())

	r.POST("/projects/:project_id/runs", s.CreateRun)
	r.GET("/runs/:id", s.GetRun)
	r.GET("/runs/:id/events", s.GetEvents)
	r.POST("/runs/:id/cancel", s.CancelRun)
	r.POST("/runs/:id/retry", s.RetryRun)
	r.GET("/runs/:id/artifacts", s.ListArtifacts)

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	}
}

// securityHeaders mirrors pkg/api/middleware.go's securityHeaders,
// translated from an echo.MiddlewareFunc to a gin.HandlerFunc.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		c.Next()
	}
}
