package store

import (
	"context"
	"errors"
	"strings"

	"github.com/phillip/buildtogether-go/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Users struct {
	c *mongo.Collection
}

func NewUsers(db *mongo.Database) *Users {
	return &Users{c: db.Collection(usersCollection)}
}

// Create inserts u, assigning an id when missing. The unique email index
// turns a concurrent duplicate registration into ErrEmailTaken.
func (s *Users) Create(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.Email = normalizeEmail(u.Email)
	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if isDup(err) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (s *Users) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{"email": normalizeEmail(email)}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, ErrNotFound
	}
	return u, err
}

func (s *Users) FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, ErrNotFound
	}
	return u, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
