// Package services implements the account, property, membership and chat
// operations on top of the stores and the broker.
package services

import (
	"context"
	"time"

	"github.com/phillip/buildtogether-go/apperr"
	"github.com/phillip/buildtogether-go/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	writeTimeout = 5 * time.Second
	listTimeout  = 10 * time.Second
)

type PropertyStore interface {
	Insert(ctx context.Context, p *models.Property) error
	List(ctx context.Context, titleQuery string) ([]models.Property, error)
	ListForUser(ctx context.Context, userID string) ([]models.Property, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Property, error)
	Exists(ctx context.Context, id primitive.ObjectID) (bool, error)
	AddMember(ctx context.Context, id primitive.ObjectID, m models.Member) error
	AppendChatMessage(ctx context.Context, id primitive.ObjectID, msg models.ChatMessage) error
	ChatMessages(ctx context.Context, id primitive.ObjectID, limit int) ([]models.ChatMessage, error)
}

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
}

// Publisher broadcasts an event to the subscribers of a channel.
type Publisher interface {
	Publish(ctx context.Context, channel, name string, data any) error
}

// ParsePropertyID validates a hex ObjectID coming from a path or channel.
func ParsePropertyID(raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("Invalid Project ID.")
	}
	return id, nil
}
