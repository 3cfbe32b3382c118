package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/phillip/buildtogether-go/auth"
	"github.com/phillip/buildtogether-go/config"
	"github.com/phillip/buildtogether-go/controllers"
	"github.com/phillip/buildtogether-go/logger"
	"github.com/phillip/buildtogether-go/metrics"
	"github.com/phillip/buildtogether-go/middleware"
	"github.com/phillip/buildtogether-go/pubsub"
	"github.com/phillip/buildtogether-go/routes"
	"github.com/phillip/buildtogether-go/services"
	"github.com/phillip/buildtogether-go/store"
	"github.com/phillip/buildtogether-go/utils"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	// --- Connect Mongo + Redis ---
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := cfg.Connect(ctx); err != nil {
		cancel()
		log.Fatal("connect backing services", zap.Error(err))
	}
	if err := store.EnsureIndexes(ctx, cfg.DB()); err != nil {
		cancel()
		log.Fatal("ensure indexes", zap.Error(err))
	}
	cancel()

	// --- Wire stores and services ---
	db := cfg.DB()
	props := store.NewProperties(db)
	users := store.NewUsers(db)
	broker := pubsub.NewBroker(cfg.Redis)
	tokens := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)

	var mailer services.WelcomeMailer
	if m := utils.NewMailer(cfg.ZeptoAPIURL, cfg.ZeptoAPIKey, cfg.EmailFrom); m != nil {
		mailer = m
	} else {
		log.Warn("welcome mail disabled: ZEPTO_API_URL, ZEPTO_API_KEY or EMAIL_FROM missing")
	}

	app := &controllers.App{
		Config:     cfg,
		Accounts:   services.NewAccountService(users, tokens, mailer),
		Properties: services.NewPropertyService(props),
		Membership: services.NewMembershipService(props),
		Chat:       services.NewChatRelay(props, broker),
		Channels:   pubsub.NewChannelAuthorizer(cfg.PusherKey, cfg.PusherSecret),
		Subscriber: broker,
		Health: []controllers.HealthCheck{
			{Name: "mongo", Ping: func(ctx context.Context) error { return cfg.MongoClient.Ping(ctx, readpref.Primary()) }},
			{Name: "redis", Ping: broker.Ping},
		},
	}
	if up, err := utils.NewImageUploader(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret); err == nil {
		app.Uploader = up
	} else {
		log.Warn("image uploads disabled", zap.Error(err))
	}

	// --- Router ---
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.ClientURL))
	router.Use(metrics.Middleware())

	limits := routes.Limits{Auth: cfg.RateLimitAuth, Window: cfg.RateLimitWindow}
	if !cfg.IsDevelopment() {
		limits.Redis = cfg.Redis
		if cfg.RateLimitChat > 0 {
			app.ChatLimit = middleware.NewLimiter(cfg.Redis, cfg.RateLimitChat, cfg.RateLimitWindow, "chat")
		}
	}
	routes.SetupRoutes(router, app, tokens, limits)

	// --- Serve ---
	// Shutdown does not track hijacked websocket connections; stopConns ends them.
	baseCtx, stopConns := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	stopConns()
	if err := cfg.Close(shutdownCtx); err != nil {
		log.Error("close backing services", zap.Error(err))
	}
	log.Info("server stopped")
}
