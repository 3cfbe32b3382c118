package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/phillip/buildtogether-go/apperr"
	"github.com/phillip/buildtogether-go/config"
	"github.com/phillip/buildtogether-go/middleware"
	"github.com/phillip/buildtogether-go/pubsub"
	"github.com/phillip/buildtogether-go/services"
	"go.uber.org/zap"
)

// Subscriber streams the events published on a channel until ctx ends.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan pubsub.Event, error)
}

// ImageUploader stores uploaded images and returns their public URLs.
type ImageUploader interface {
	Upload(ctx context.Context, file io.Reader, filename string) (string, error)
	Delete(ctx context.Context, imageURL string) error
}

// HealthCheck is one dependency probed by /healthz.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// App is everything the handlers need. Uploader may be nil, which disables
// image uploads. ChatLimit may be nil, which disables chat rate limiting on
// both /chat and the chat socket.
type App struct {
	Config     *config.Config
	Accounts   *services.AccountService
	Properties *services.PropertyService
	Membership *services.MembershipService
	Chat       *services.ChatRelay
	Channels   *pubsub.ChannelAuthorizer
	Subscriber Subscriber
	Uploader   ImageUploader
	Health     []HealthCheck
	ChatLimit  *middleware.Limiter
}

// respondError writes err as {"error": message}. Internal causes are logged
// and never sent to the client.
func respondError(c *gin.Context, err error) {
	ae := apperr.From(err)
	if ae.Kind == apperr.KindInternal {
		zap.L().Error(ae.Message,
			zap.String("request_id", c.GetString("request_id")),
			zap.String("path", c.FullPath()),
			zap.Error(ae.Err))
		_ = c.Error(err)
	}
	c.JSON(ae.Status(), gin.H{"error": ae.Message})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
