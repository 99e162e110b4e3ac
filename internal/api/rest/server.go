package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/KevinKickass/ParamBridge/internal/api/websocket"
	"github.com/KevinKickass/ParamBridge/internal/auth"
	"github.com/KevinKickass/ParamBridge/internal/config"
	"github.com/KevinKickass/ParamBridge/internal/interfaces"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
	lm     interfaces.LifecycleManager
	authn  *auth.Authenticator
	logger *zap.Logger
	server *http.Server
	wsHub  *websocket.Hub
}

func NewServer(cfg *config.Config, lm interfaces.LifecycleManager, authn *auth.Authenticator, wsHub *websocket.Hub, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router: gin.New(),
		lm:     lm,
		authn:  authn,
		logger: logger,
		wsHub:  wsHub,
	}

	s.router.Use(gin.Recovery())
	s.setupRoutes(cfg.Server.CORSOrigins)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("REST server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes(corsOrigins []string) {
	// Middleware
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware(corsOrigins))

	// Public routes (no auth required)
	s.router.GET("/health", s.healthCheck)

	// API v1
	v1 := s.router.Group("/api/v1")
	v1.Use(s.authn.Middleware())
	{
		// ==================== SYSTEM ====================
		v1.GET("/system/status", auth.RequirePermission(auth.PermParametersRead), s.getSystemStatus)

		// ==================== PARAMETERS ====================
		params := v1.Group("/parameters")
		{
			params.GET("", auth.RequirePermission(auth.PermParametersRead), s.listParameters)
			params.GET("/export", auth.RequirePermission(auth.PermParametersRead), s.exportParameters)
			params.GET("/:name", auth.RequirePermission(auth.PermParametersRead), s.getParameter)
			params.PUT("/:name", auth.RequirePermission(auth.PermParametersWrite), s.setParameter)
		}

		// ==================== SYNC ====================
		sync := v1.Group("/sync")
		{
			sync.GET("/status", auth.RequirePermission(auth.PermParametersRead), s.getSyncStatus)
			sync.POST("/reset", auth.RequirePermission(auth.PermSyncControl), s.resetSync)
			sync.POST("/refresh", auth.RequirePermission(auth.PermSyncControl), s.refreshSync)
			sync.POST("/restarting", auth.RequirePermission(auth.PermSyncControl), s.setRestarting)
		}

		// ==================== SNAPSHOTS ====================
		snapshots := v1.Group("/snapshots")
		snapshots.Use(auth.RequirePermission(auth.PermParametersRead))
		{
			snapshots.GET("", s.listSnapshots)
			snapshots.GET("/:id", s.getSnapshot)
		}

		// ==================== WEBSOCKET ====================
		ws := v1.Group("/ws")
		ws.Use(auth.RequirePermission(auth.PermParametersRead))
		{
			ws.GET("/live", s.wsLiveConnection)
			ws.GET("/status", s.wsStatus)
		}
	}
}

// WebSocket handlers
func (s *Server) wsLiveConnection(c *gin.Context) {
	websocket.ServeWs(s.wsHub, c.Writer, c.Request)
}

func (s *Server) wsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": s.wsHub.GetClientCount(),
	})
}

// Health check (public)
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// GET /api/v1/system/status
func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.lm.GetCurrentStatus())
}
