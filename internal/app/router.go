package app

import (
	"time"

	"teamtasks/backend/internal/handlers"
	"teamtasks/backend/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func (a *App) routes() *gin.Engine {
	if a.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		middleware.RecoveryWithLog(),
		middleware.RequestLogger(a.log),
		a.monitor.Middleware(),
	)

	// Without configured origins no cross-origin access is granted.
	if len(a.config.Server.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     a.config.Server.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	} else {
		a.log.Warn("no CORS origins configured, cross-origin requests are not allowed")
	}

	a.monitor.RegisterRoutes(r)

	api := r.Group("/api")
	if a.limiter != nil {
		api.Use(a.limiter.Middleware())
	}

	tasks := api.Group("/tasks", middleware.Identity(middleware.IdentityConfig{
		Secret:     a.config.Auth.JWTSecret,
		CookieName: a.config.Auth.CookieName,
		Users:      a.users,
	}))
	handlers.NewTaskHandler(a.tasks, a.log).RegisterRoutes(tasks)

	return r
}
