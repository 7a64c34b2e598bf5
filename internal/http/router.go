package httpapi

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/allocai/backend/internal/config"
	"github.com/allocai/backend/internal/http/handlers"
	"github.com/allocai/backend/internal/http/middleware"
	"github.com/allocai/backend/internal/models"

	_ "github.com/allocai/backend/docs"
)

var (
	employeeReaders = []string{models.RoleAdmin, models.RoleResourceManager, models.RoleProjectManager}
	employeeWriters = []string{models.RoleAdmin, models.RoleResourceManager}
	projectOwners   = []string{models.RoleAdmin, models.RoleProjectManager}
	allocators      = []string{models.RoleAdmin, models.RoleResourceManager}
)

func Router(cfg config.Config, h *handlers.Handler, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = strings.Split(cfg.CORSAllowed, ",")
	}
	r.Use(cors.New(corsCfg))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/health", h.Health)

	authn := middleware.Authenticate(h.Auth)
	api.GET("/realtime", middleware.QueryToken(), authn, h.Realtime)

	bounded := api.Group("", middleware.Timeout(cfg.RequestTimeout))

	a := bounded.Group("/auth")
	{
		a.POST("/register", h.Register)
		a.POST("/login", h.Login)
		a.POST("/refresh", h.Refresh)
		a.POST("/logout", h.Logout)
		a.GET("/me", authn, h.Me)
	}

	emp := bounded.Group("/employees", authn)
	{
		emp.GET("", middleware.Authorize(employeeReaders...), h.EmployeesList)
		emp.POST("", middleware.Authorize(employeeWriters...), h.EmployeeCreate)
		emp.GET("/:id", middleware.Authorize(employeeReaders...), h.EmployeeGet)
		emp.PUT("/:id", middleware.Authorize(employeeWriters...), h.EmployeeUpdate)
		emp.DELETE("/:id", middleware.Authorize(employeeWriters...), h.EmployeeDelete)
	}

	proj := bounded.Group("/projects", authn)
	{
		proj.GET("", h.ProjectsList)
		proj.POST("", middleware.Authorize(projectOwners...), h.ProjectCreate)
		proj.GET("/:id", h.ProjectGet)
		proj.PUT("/:id", middleware.Authorize(projectOwners...), h.ProjectUpdate)
		proj.DELETE("/:id", middleware.Authorize(projectOwners...), h.ProjectDelete)
	}

	alloc := bounded.Group("/allocations", authn)
	{
		alloc.GET("", h.AllocationsList)
		alloc.POST("", middleware.Authorize(allocators...), h.AllocationCreate)
		alloc.PUT("/:id", middleware.Authorize(allocators...), h.AllocationUpdate)
		alloc.DELETE("/:id", middleware.Authorize(allocators...), h.AllocationDelete)
	}

	ai := bounded.Group("/ai", authn)
	{
		ai.GET("/insights", h.AIInsights)
		ai.GET("/conflicts", h.AIConflicts)
		ai.GET("/conflicts/history", h.AIConflictHistory)
	}

	hooks := bounded.Group("/webhooks", authn, middleware.Authorize(models.RoleAdmin))
	{
		hooks.GET("", h.WebhooksList)
		hooks.POST("", h.WebhookCreate)
		hooks.DELETE("/:id", h.WebhookDelete)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
