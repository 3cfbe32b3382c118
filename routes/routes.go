package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/phillip/buildtogether-go/auth"
	"github.com/phillip/buildtogether-go/controllers"
	"github.com/phillip/buildtogether-go/metrics"
	"github.com/phillip/buildtogether-go/middleware"
	"github.com/redis/go-redis/v9"
)

// Limits holds the fixed-window limits on the auth endpoints. A nil Redis
// client disables them. Chat is limited through App.ChatLimit.
type Limits struct {
	Redis  *redis.Client
	Auth   int
	Window time.Duration
}

func (l Limits) handler(limit int, resource string) gin.HandlerFunc {
	if l.Redis == nil || limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.RateLimit(l.Redis, limit, l.Window, resource)
}

func chatLimit(app *controllers.App) gin.HandlerFunc {
	if app.ChatLimit == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return app.ChatLimit.Handler()
}

func SetupRoutes(r *gin.Engine, app *controllers.App, tokens *auth.Issuer, limits Limits) {
	// ops
	r.GET("/healthz", controllers.Health(app))
	r.GET("/metrics", metrics.Handler())

	// public
	r.POST("/register", limits.handler(limits.Auth, "register"), controllers.Register(app))
	r.POST("/auth/login", limits.handler(limits.Auth, "login"), controllers.Login(app))
	r.POST("/auth/logout", controllers.Logout(app))

	r.GET("/properties", controllers.ListProperties(app))
	r.GET("/properties/:id", controllers.GetProperty(app))
	r.GET("/properties/:id/messages", controllers.PropertyMessages(app))

	// protected
	authed := middleware.RequireAuth(tokens)

	r.GET("/auth/me", authed, controllers.Me(app))
	r.GET("/my-projects", authed, controllers.MyProjects(app))

	props := r.Group("/properties")
	props.Use(authed)
	{
		props.POST("", controllers.CreateProperty(app))
		props.POST("/:id/join", controllers.JoinProperty(app))
	}

	r.POST("/uploads/images", authed, controllers.UploadImages(app))

	// chat
	r.POST("/chat", authed, chatLimit(app), controllers.PostChat(app))
	r.POST("/pusher/auth", authed, controllers.AuthorizeChannel(app))
	r.GET("/chat/:id/ws",
		middleware.RequireAuth(tokens, middleware.AuthOptions{AllowQueryToken: true}),
		controllers.ChatSocket(app))
}
