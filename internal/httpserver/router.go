package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"bdos/internal/handler"
	"bdos/pkg/otel"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnChecker is satisfied by *mq.Publisher.
type ConnChecker interface {
	IsConnected() bool
}

type Handlers struct {
	Auth     *handler.AuthHandler
	Accounts *handler.AccountHandler
	Projects *handler.ProjectHandler
	Stages   *handler.StageHandler
	Tasks    *handler.TaskHandler
	Admin    *handler.AdminHandler // nil when the outbox is disabled
}

type Deps struct {
	Handlers   Handlers
	Auth       SessionAuthenticator
	CookieName string
	DB         Pinger
	Broker     ConnChecker // optional
	Logger     *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otel.GinMiddleware())
	r.Use(TraceMiddleware())
	r.Use(LoggingMiddleware(d.Logger))
	r.Use(MetricsMiddleware())

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := d.DB.Ping(ctx); err != nil {
			c.JSON(503, gin.H{"status": "db_not_ready"})
			return
		}

		if d.Broker != nil && !d.Broker.IsConnected() {
			c.JSON(503, gin.H{"status": "mq_not_ready"})
			return
		}

		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := d.Handlers

	// Public
	r.POST("/login", h.Auth.Login)
	r.POST("/logout", h.Auth.Logout)

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(d.Auth, d.CookieName))
	{
		auth.GET("/", h.Accounts.Dashboard)

		auth.GET("/accounts", h.Accounts.ListAccounts)
		auth.POST("/accounts", h.Accounts.CreateAccount)
		auth.GET("/accounts/:id", h.Accounts.GetAccount)
		auth.POST("/accounts/:id/contacts", h.Accounts.AddContact)
		auth.POST("/accounts/:id/projects", h.Projects.CreateProject)

		auth.GET("/projects/:id", h.Projects.GetProject)
		auth.POST("/projects/:id/instantiate", h.Projects.Instantiate)

		auth.GET("/projects/:id/stages/:sid", h.Stages.GetStage)
		auth.POST("/projects/:id/stages/:sid/checklist/:cid/toggle", h.Stages.ToggleChecklist)
		auth.POST("/projects/:id/stages/:sid/deliverables/:did", h.Stages.UpdateDeliverable)
		auth.POST("/projects/:id/stages/:sid/decision", h.Stages.Decide)

		auth.GET("/projects/:id/tasks", h.Tasks.ListTasks)
		auth.POST("/projects/:id/tasks", h.Tasks.CreateTask)
		auth.POST("/tasks/:id/status", h.Tasks.SetTaskStatus)

		auth.GET("/projects/:id/opportunities", h.Tasks.ListOpportunities)
		auth.POST("/projects/:id/opportunities", h.Tasks.CreateOpportunity)
	}

	if h.Admin != nil {
		admin := auth.Group("/admin")
		admin.Use(AdminOnly())
		{
			admin.GET("/outbox/failed", h.Admin.FailedEvents)
			admin.POST("/outbox/replay", h.Admin.ReplayOutboxEvent)
			admin.POST("/outbox/replay-failed", h.Admin.ReplayFailedEvents)
		}
	}

	return r
}
