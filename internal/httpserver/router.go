package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mailtriage/pkg/otel"
	"mailtriage/pkg/rbac"
)

// ReadyCheck 就绪探针检查的一个依赖，例如数据库 Ping
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Options struct {
	Service   TriageAPI
	Replayer  Replayer // nil 时不注册 /admin 路由
	JWTSecret string
	Ready     []ReadyCheck
	Logger    *zap.Logger
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(opts Options) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), otel.GinMiddleware(), MetricsMiddleware())

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		for _, rc := range opts.Ready {
			if err := rc.Check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": rc.Name + "_not_ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	runs := NewRunHandler(opts.Service, opts.Logger)

	// Protected
	authed := r.Group("/")
	authed.Use(AuthMiddleware(opts.JWTSecret))
	{
		authed.POST("/emails", RequirePermission(rbac.PermissionSubmitRun), runs.SubmitEmail)
		authed.POST("/emails/batch", RequirePermission(rbac.PermissionSubmitRun), runs.SubmitBatch)
		authed.POST("/agent/run", RequirePermission(rbac.PermissionSubmitRun), runs.AgentRun)

		authed.GET("/runs", RequirePermission(rbac.PermissionReadRun), runs.ListRuns)
		authed.GET("/runs/:id", RequirePermission(rbac.PermissionReadRun), runs.GetRun)
		authed.POST("/runs/:id/decision", RequirePermission(rbac.PermissionDecideRun), runs.Decide)
		authed.POST("/runs/:id/cancel", RequirePermission(rbac.PermissionCancelRun), runs.Cancel)

		if opts.Replayer != nil {
			admin := NewAdminHandler(opts.Replayer, opts.Logger)
			authed.POST("/admin/outbox/replay", RequirePermission(rbac.PermissionReplayOutbox), admin.ReplayOutboxEvent)
			authed.POST("/admin/outbox/replay-failed", RequirePermission(rbac.PermissionReplayOutbox), admin.ReplayFailedEvents)
		}
	}

	return &Router{Engine: r}
}

// Server wraps the router in an http.Server so callers can shut it down.
func (r *Router) Server(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
