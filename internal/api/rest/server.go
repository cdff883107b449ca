package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/optiqlab/scopecore/internal/auth"
	"github.com/optiqlab/scopecore/internal/config"
	"github.com/optiqlab/scopecore/internal/interfaces"
	"github.com/optiqlab/scopecore/internal/types"
	"go.uber.org/zap"
)

type Server struct {
	router      *gin.Engine
	lm          interfaces.LifecycleManager
	logger      *zap.Logger
	server      *http.Server
	authService *auth.AuthService
}

func NewServer(cfg *config.Config, lm interfaces.LifecycleManager, logger *zap.Logger, authService *auth.AuthService) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:      gin.New(),
		lm:          lm,
		logger:      logger,
		authService: authService,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("API server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(gin.Recovery())
	s.router.Use(CORSMiddleware())

	// Public routes
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/auth/login", s.login)

		protected := v1.Group("")
		protected.Use(s.authService.Middleware())
		{
			protected.GET("/devices", s.listDevices)
			protected.GET("/devices/:name", s.getDevice)

			protected.POST("/devices/:name/arm", s.armDevice)
			protected.POST("/devices/:name/trigger", s.triggerDevice)
			protected.POST("/devices/:name/stop", s.stopDevice)
			protected.POST("/devices/:name/abort", s.abortDevice)
			protected.POST("/devices/:name/reset", s.resetDevice)

			protected.GET("/devices/:name/properties", s.listProperties)
			protected.GET("/devices/:name/properties/:prop", s.getProperty)
			protected.PUT("/devices/:name/properties/:prop", s.setProperty)

			protected.GET("/sessions", s.listSessions)
			protected.GET("/system/status", s.getSystemStatus)

			protected.POST("/tokens", s.createAPIToken)
			protected.GET("/tokens", s.listAPITokens)
			protected.DELETE("/tokens/:name", s.revokeAPIToken)
		}

		// The stream endpoint authenticates in-band: the websocket
		// handshake cannot carry an Authorization header from browser
		// clients, so the first socket message holds the token.
		v1.GET("/devices/:name/stream", s.streamDevice)
	}
}

// respondError maps a domain error onto a status code and a stable
// error payload.
func (s *Server) respondError(c *gin.Context, err error) {
	code := types.Code(err)

	status := http.StatusInternalServerError
	switch code {
	case types.CodeUnknownDevice:
		status = http.StatusNotFound
	case types.CodeInvalidConfiguration, types.CodeUnsupportedOperation:
		status = http.StatusBadRequest
	case types.CodeWrongTriggerMode, types.CodeDeviceBusy, types.CodeAlreadySubscribed:
		status = http.StatusConflict
	case types.CodeDeviceFault:
		status = http.StatusServiceUnavailable
	case "":
		code = "internal_error"
	}

	c.JSON(status, types.NewErrorResponse(code, err.Error(), nil))
}
