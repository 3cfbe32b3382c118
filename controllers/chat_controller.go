package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/phillip/buildtogether-go/apperr"
	"github.com/phillip/buildtogether-go/middleware"
	"github.com/phillip/buildtogether-go/models"
	"github.com/phillip/buildtogether-go/pubsub"
	"go.uber.org/zap"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 8 << 10
)

// ---------------- POST MESSAGE ----------------
func PostChat(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, _ := middleware.CurrentUser(c)

		var input struct {
			Message string `json:"message"`
			Channel string `json:"channel"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, "Invalid request body.")
			return
		}

		msg, err := app.Chat.Post(c.Request.Context(), user, input.Channel, input.Message)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Message sent", "chat": msg})
	}
}

// ---------------- CHANNEL AUTH ----------------

// AuthorizeChannel signs a realtime client's subscription to a property
// channel. The caller's identity becomes the presence member data.
func AuthorizeChannel(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, _ := middleware.CurrentUser(c)

		socketID := strings.TrimSpace(c.PostForm("socket_id"))
		channel := strings.TrimSpace(c.PostForm("channel_name"))
		if socketID == "" || channel == "" {
			badRequest(c, "socket_id and channel_name are required")
			return
		}

		if err := app.Chat.ChannelExists(c.Request.Context(), channel); err != nil {
			respondError(c, err)
			return
		}

		auth, err := app.Channels.Authorize(socketID, channel, pubsub.PresenceData{
			UserID:   user.ID,
			UserInfo: pubsub.PresenceInfo{Name: user.Name, Email: user.Email},
		})
		if err != nil {
			respondError(c, apperr.Internal("Error authorizing channel", err))
			return
		}
		c.JSON(http.StatusOK, auth)
	}
}

// ---------------- WEBSOCKET ----------------

// ChatSocket bridges one websocket client to a property channel. Published
// events are forwarded as {"event","data"} frames; inbound {"message"} frames
// are posted as the caller. The caller's own messages are not echoed back.
func ChatSocket(app *App) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(app.Config.ClientURL, r.Header.Get("Origin"))
		},
	}

	return func(c *gin.Context) {
		user, _ := middleware.CurrentUser(c)
		channel := pubsub.PropertyChannel(c.Param("id"))

		if err := app.Chat.ChannelExists(c.Request.Context(), channel); err != nil {
			respondError(c, err)
			return
		}

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		events, err := app.Subscriber.Subscribe(ctx, channel)
		if err != nil {
			respondError(c, apperr.Internal("Could not subscribe to chat", err))
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade has already written the HTTP error
			zap.L().Warn("websocket upgrade failed", zap.String("channel", channel), zap.Error(err))
			return
		}

		s := &chatSession{
			conn:    conn,
			echo:    pubsub.NewEchoFilter(app.Config.ChatDedupWindow),
			replies: make(chan any, 8),
		}

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer cancel()
			s.writeLoop(ctx, events)
		}()

		zap.L().Info("chat socket opened", zap.String("channel", channel), zap.String("user_id", user.ID))

		conn.SetReadLimit(wsMaxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})

		for {
			var in struct {
				Message string `json:"message"`
			}
			if err := conn.ReadJSON(&in); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					zap.L().Debug("chat socket read", zap.String("channel", channel), zap.Error(err))
				}
				break
			}

			if app.ChatLimit != nil && !app.ChatLimit.Allow(ctx, middleware.UserKey(user.ID)) {
				s.reply(ctx, gin.H{"error": middleware.TooManyRequests})
				continue
			}

			text := app.Chat.Clean(in.Message)
			s.echo.Remember(user.Name, text)
			if _, err := app.Chat.Post(ctx, user, channel, in.Message); err != nil {
				s.echo.Forget(user.Name, text)
				ae := apperr.From(err)
				if ae.Kind == apperr.KindInternal {
					zap.L().Error(ae.Message, zap.String("channel", channel), zap.Error(ae.Err))
				}
				s.reply(ctx, gin.H{"error": ae.Message})
			}
		}

		cancel()
		wg.Wait()
		_ = conn.Close()
		zap.L().Info("chat socket closed", zap.String("channel", channel), zap.String("user_id", user.ID))
	}
}

type chatSession struct {
	conn    *websocket.Conn
	echo    *pubsub.EchoFilter
	replies chan any
}

func (s *chatSession) reply(ctx context.Context, v any) {
	select {
	case s.replies <- v:
	case <-ctx.Done():
	}
}

// writeLoop owns every write to the connection.
func (s *chatSession) writeLoop(ctx context.Context, events <-chan pubsub.Event) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	defer func() {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		// unblocks the reader
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if s.isOwnEcho(ev) {
				continue
			}
			if err := s.write(ev); err != nil {
				return
			}
		case v := <-s.replies:
			if err := s.write(v); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *chatSession) isOwnEcho(ev pubsub.Event) bool {
	if ev.Name != pubsub.ChatEvent {
		return false
	}
	var msg models.ChatMessage
	if err := json.Unmarshal(ev.Data, &msg); err != nil {
		return false
	}
	return s.echo.Suppress(msg.User, msg.Message)
}

func (s *chatSession) write(v any) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	err := s.conn.WriteJSON(v)
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		zap.L().Debug("chat socket write", zap.Error(err))
	}
	return err
}

// originAllowed accepts requests without an Origin header (non-browser
// clients) and the configured client origins.
func originAllowed(clientURL, origin string) bool {
	if origin == "" {
		return true
	}
	for _, o := range strings.Split(clientURL, ",") {
		if strings.EqualFold(strings.TrimSpace(o), origin) {
			return true
		}
	}
	return false
}
