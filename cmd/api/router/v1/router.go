package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-mentorchat/internal/config"
	"go-mentorchat/internal/infrastructure/realtime"
	"go-mentorchat/internal/pkg/chat/application/usecase"
	"go-mentorchat/internal/pkg/chat/presentation/controller"
	httpHandler "go-mentorchat/internal/pkg/chat/presentation/http"
)

// RegisterRoutes mounts all version 1 API routes under /api/v1
func RegisterRoutes(r *gin.Engine, svc *usecase.Service, router *realtime.Router, cfg config.ServerConfig, logger *zap.Logger) {
	v1 := r.Group("/api/v1")
	v1.Use(AccessLog(logger))
	httpHandler.RegisterRoutes(v1, svc, router, controller.HeaderIdentity{}, controller.SocketOptions{
		Options:     controller.Options{RequestTimeout: cfg.RequestTimeout, Logger: logger},
		ReadTimeout: cfg.WSReadTimeout,
		InboundRate: cfg.WSInboundRate,
	})
}

// AccessLog writes one line per request through zap.
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if uid := c.GetHeader(controller.HeaderUserID); uid != "" {
			fields = append(fields, zap.String("user", uid))
		}
		switch {
		case c.Writer.Status() >= 500:
			log.Error("request", fields...)
		case c.Writer.Status() >= 400:
			log.Info("request", fields...)
		default:
			log.Debug("request", fields...)
		}
	}
}
