package services

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/phillip/buildtogether-go/apperr"
	"github.com/phillip/buildtogether-go/auth"
	"github.com/phillip/buildtogether-go/metrics"
	"github.com/phillip/buildtogether-go/models"
	"github.com/phillip/buildtogether-go/pubsub"
	"github.com/phillip/buildtogether-go/store"
	"go.uber.org/zap"
)

const MaxChatMessageLen = 2000

// ChatRelay persists a chat message onto its property and then broadcasts
// it on the property channel. The two steps are not atomic: a message can be
// stored and not delivered; it is never retried or rolled back.
type ChatRelay struct {
	props     PropertyStore
	publisher Publisher
	policy    *bluemonday.Policy
	now       func() time.Time
}

func NewChatRelay(props PropertyStore, publisher Publisher) *ChatRelay {
	return &ChatRelay{
		props:     props,
		publisher: publisher,
		policy:    bluemonday.StrictPolicy(),
		now:       time.Now,
	}
}

const maxCleanPasses = 5

// Clean strips markup and surrounding space from a chat message. Entities
// are decoded and the result sanitized again until nothing changes, so
// escaped markup cannot come back as live HTML.
func (r *ChatRelay) Clean(message string) string {
	text := message
	for i := 0; i < maxCleanPasses; i++ {
		next := html.UnescapeString(r.policy.Sanitize(text))
		if next == text {
			return strings.TrimSpace(text)
		}
		text = next
	}
	return strings.TrimSpace(r.policy.Sanitize(text))
}

// Post appends message from user to the property behind channel and
// publishes the stored record to the channel's subscribers.
func (r *ChatRelay) Post(ctx context.Context, user auth.Identity, channel, message string) (models.ChatMessage, error) {
	if user.Name == "" {
		return models.ChatMessage{}, apperr.Unauthorized("Unauthorized")
	}

	rawID, ok := pubsub.PropertyIDFromChannel(channel)
	if !ok {
		return models.ChatMessage{}, apperr.Validation("Invalid channel.")
	}
	id, err := ParsePropertyID(rawID)
	if err != nil {
		return models.ChatMessage{}, err
	}

	text := r.Clean(message)
	if text == "" {
		return models.ChatMessage{}, apperr.Validation("Message cannot be empty.")
	}
	if utf8.RuneCountInString(text) > MaxChatMessageLen {
		return models.ChatMessage{}, apperr.Validation("Message is too long.")
	}

	msg := models.ChatMessage{
		User:      user.Name,
		Message:   text,
		Timestamp: r.now().UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := r.props.AppendChatMessage(ctx, id, msg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.ChatMessage{}, apperr.NotFound("Project not found.")
		}
		zap.L().Error("persist chat message", zap.String("project_id", rawID), zap.Error(err))
		return models.ChatMessage{}, apperr.Internal("Error sending message", err)
	}

	if err := r.publisher.Publish(ctx, pubsub.PropertyChannel(rawID), pubsub.ChatEvent, msg); err != nil {
		metrics.ChatPublishFailures.Inc()
		zap.L().Error("publish chat message",
			zap.String("project_id", rawID),
			zap.String("user", user.Name),
			zap.Error(err))
		return msg, apperr.Internal("Message saved but not delivered", err)
	}

	metrics.ChatMessages.Inc()
	return msg, nil
}

// History returns the stored chat log; limit > 0 keeps the newest entries.
func (r *ChatRelay) History(ctx context.Context, rawID string, limit int) ([]models.ChatMessage, error) {
	id, err := ParsePropertyID(rawID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	msgs, err := r.props.ChatMessages(ctx, id, limit)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Project not found.")
	}
	if err != nil {
		zap.L().Error("load chat history", zap.String("project_id", rawID), zap.Error(err))
		return nil, apperr.Internal("Failed to load messages.", err)
	}
	return msgs, nil
}

// ChannelExists reports whether channel maps to an existing property.
func (r *ChatRelay) ChannelExists(ctx context.Context, channel string) error {
	rawID, ok := pubsub.PropertyIDFromChannel(channel)
	if !ok {
		return apperr.Validation("Invalid channel.")
	}
	id, err := ParsePropertyID(rawID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	exists, err := r.props.Exists(ctx, id)
	if err != nil {
		return apperr.Internal("Error authorizing channel", err)
	}
	if !exists {
		return apperr.NotFound("Project not found.")
	}
	return nil
}
