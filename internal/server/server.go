package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	callbackdomain "github.com/smallbiznis/payrelay/internal/callback/domain"
	"github.com/smallbiznis/payrelay/internal/clock"
	"github.com/smallbiznis/payrelay/internal/config"
	directorydomain "github.com/smallbiznis/payrelay/internal/directory/domain"
	"github.com/smallbiznis/payrelay/internal/observability"
	obsmiddleware "github.com/smallbiznis/payrelay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/payrelay/internal/observability/metrics"
	obstracing "github.com/smallbiznis/payrelay/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log = log.Named("http.server")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine    *gin.Engine
	cfg       config.Config
	callbacks callbackdomain.Service
	directory directorydomain.Service
	clock     clock.Clock
	log       *zap.Logger
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	Callbacks callbackdomain.Service
	Directory directorydomain.Service
	Clock     clock.Clock
	Log       *zap.Logger
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:    p.Gin,
		cfg:       p.Cfg,
		callbacks: p.Callbacks,
		directory: p.Directory,
		clock:     p.Clock,
		log:       p.Log.Named("http.handler"),
	}

	svc.registerGatewayRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerGatewayRoutes() {
	s.engine.POST("/callback", s.HandleCallback)
	s.engine.POST("/validate", s.HandleValidate)

	daraja := s.engine.Group("/api/daraja")
	daraja.POST("/c2b/", s.HandleCallback)
	daraja.POST("/validation/", s.HandleValidate)

	if !s.cfg.IsProduction() {
		s.engine.POST("/debug/ledger-write", s.DebugLedgerWrite)
		daraja.POST("/test-sheet-write/", s.DebugLedgerWrite)
	}
}

func (s *Server) registerAdminRoutes() {
	s.engine.GET("/config/status", s.ConfigStatus)
	s.engine.GET("/api/config/status/", s.ConfigStatus)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
