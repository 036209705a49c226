package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"execution-core/internal/events"
	"execution-core/internal/journal"
	"execution-core/internal/monitor"
	"execution-core/internal/order"
)

// Server wires HTTP endpoints around the execution orchestrator.
type Server struct {
	Router    *gin.Engine
	Orch      *order.Orchestrator
	Bus       *events.Bus
	Journal   *journal.Store // optional
	Metrics   *monitor.ExecutionMetrics
	JWTSecret string
	APIKey    string
	Meta      SystemMeta
}

// SystemMeta describes runtime status exposed to clients.
type SystemMeta struct {
	Venue   string `json:"venue"`
	DryRun  bool   `json:"dry_run"`
	Version string `json:"version"`
}

// NewServer builds the router with the full middleware chain.
func NewServer(orch *order.Orchestrator, bus *events.Bus, store *journal.Store, meta SystemMeta, jwtSecret, apiKey string) *Server {
	r := gin.New()

	// order matters: recovery first, request id before logging
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(orch.Metrics()))
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Orch:      orch,
		Bus:       bus,
		Journal:   store,
		Metrics:   orch.Metrics(),
		JWTSecret: jwtSecret,
		APIKey:    apiKey,
		Meta:      meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/metrics", s.getMetrics)
		api.POST("/auth/token", s.issueToken)

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.POST("/orders/buy", s.executeBuy)
			protected.POST("/orders/sell", s.executeSell)
			protected.GET("/orders", s.getActiveOrders)
			protected.GET("/orders/:id", s.getOrder)
			protected.DELETE("/orders/:id", s.cancelOrder)
			protected.GET("/stats", s.getStats)
			protected.GET("/degradation", s.getDegradation)
			protected.GET("/price-strategy/:asset", s.getPriceStrategy)
			protected.GET("/executions", s.getExecutions)
			protected.POST("/cleanup", s.runCleanup)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "venue": s.Meta.Venue, "version": s.Meta.Version})
}

// Start runs the HTTP server on addr.
func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
