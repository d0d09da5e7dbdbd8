package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/loadmarket/credits/internal/obs"
	"github.com/loadmarket/credits/pkg/credits"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter assembles the gin engine for the credits API.
func NewRouter(cfg Config, service *credits.Service, logger *zap.Logger, metrics *obs.Metrics) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))
	}

	handler := &apiHandler{service: service, logger: logger}

	api := router.Group("/api/v1")
	api.Use(authMiddleware([]byte(cfg.JWTSigningKey), cfg.JWTIssuer))

	api.POST("/account", handler.handleEnsureAccount)
	api.GET("/balance", handler.handleBalance)
	api.GET("/history", handler.handleHistory)
	api.GET("/settings/:key", handler.handleSetting)
	api.POST("/recharge", handler.handleRecharge)

	api.GET("/posts", handler.handleUserPosts)
	api.POST("/posts/:kind/:id/charge", handler.handleChargeForPost)
	api.POST("/posts/:kind/:id/premium", handler.handleMakePremium)
	api.PATCH("/posts/:kind/:id/status", handler.handleUpdateStatus)
	api.DELETE("/posts/:kind/:id", handler.handleDeletePost)

	admin := api.Group("/admin")
	admin.Use(requireAdmin())
	admin.POST("/adjust", handler.handleAdminAdjust)

	return router
}

// Run serves the API until ctx is cancelled.
func Run(ctx context.Context, cfg Config, service *credits.Service, logger *zap.Logger, metrics *obs.Metrics) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	router := NewRouter(cfg, service, logger, metrics)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("credits api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
