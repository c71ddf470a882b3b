package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterConfig holds HTTP router settings.
type RouterConfig struct {
	CORSOrigins  []string
	RateLimitRPS int          // 0 disables rate limiting
	Healthz      http.Handler // serves GET /healthz; nil serves a static ok
}

// NewRouter builds the Gin engine with middleware, ledger routes, /metrics
// and /healthz. Background work started by middleware stops when ctx is done.
func NewRouter(ctx context.Context, cfg RouterConfig, ledgerHandler *LedgerHandler, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())

	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", headerRequestID},
			ExposeHeaders:    []string{"Content-Length", headerRequestID},
			AllowCredentials: !containsWildcard(cfg.CORSOrigins),
			MaxAge:           12 * time.Hour,
		}))
	}

	router.Use(SecurityHeaders())
	router.Use(BodyLimit())
	if cfg.RateLimitRPS > 0 {
		router.Use(RateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitRPS*2))
	}
	router.Use(PrometheusMiddleware())
	router.Use(RequestLogger(logger))

	if cfg.Healthz != nil {
		router.GET("/healthz", gin.WrapH(cfg.Healthz))
	} else {
		router.GET("/healthz", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "SERVING"})
		})
	}
	router.GET("/metrics", MetricsHandler())

	v1 := router.Group("/api/v1")
	ledgerHandler.Register(v1)
	return router
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}
