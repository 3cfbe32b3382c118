package store

import (
	"context"
	"errors"
	"regexp"

	"github.com/phillip/buildtogether-go/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Properties struct {
	c *mongo.Collection
}

func NewProperties(db *mongo.Database) *Properties {
	return &Properties{c: db.Collection(propertiesCollection)}
}

// Insert stores p, assigning an id when missing. Nil slices are written as
// empty arrays so later $push updates always find an array.
func (s *Properties) Insert(ctx context.Context, p *models.Property) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.Admins == nil {
		p.Admins = []models.ProjectUser{}
	}
	if p.Members == nil {
		p.Members = []models.Member{}
	}
	if p.ChatMessages == nil {
		p.ChatMessages = []models.ChatMessage{}
	}
	_, err := s.c.InsertOne(ctx, p)
	return err
}

// List returns all properties newest first. A non-empty titleQuery filters
// titles case-insensitively as a literal substring.
func (s *Properties) List(ctx context.Context, titleQuery string) ([]models.Property, error) {
	filter := bson.M{}
	if titleQuery != "" {
		filter["title"] = bson.M{"$regex": regexp.QuoteMeta(titleQuery), "$options": "i"}
	}
	return s.find(ctx, filter)
}

// ListForUser returns the properties where userID is an admin or member.
func (s *Properties) ListForUser(ctx context.Context, userID string) ([]models.Property, error) {
	return s.find(ctx, bson.M{"$or": bson.A{
		bson.M{"admins.id": userID},
		bson.M{"members.id": userID},
	}})
}

func (s *Properties) find(ctx context.Context, filter bson.M) ([]models.Property, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	props := []models.Property{}
	if err := cur.All(ctx, &props); err != nil {
		return nil, err
	}
	return props, nil
}

func (s *Properties) FindByID(ctx context.Context, id primitive.ObjectID) (models.Property, error) {
	var p models.Property
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Property{}, ErrNotFound
	}
	return p, err
}

func (s *Properties) Exists(ctx context.Context, id primitive.ObjectID) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AddMember appends m to members in a single conditional update: the filter
// only matches while m.ID is absent from both admins and members, so two
// concurrent joins by the same user cannot both land.
func (s *Properties) AddMember(ctx context.Context, id primitive.ObjectID, m models.Member) error {
	filter := bson.M{
		"_id":        id,
		"admins.id":  bson.M{"$ne": m.ID},
		"members.id": bson.M{"$ne": m.ID},
	}
	res, err := s.c.UpdateOne(ctx, filter, bson.M{"$push": bson.M{"members": m}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}

	ok, err := s.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return ErrAlreadyMember
}

// AppendChatMessage pushes msg onto the end of the property's chat log.
func (s *Properties) AppendChatMessage(ctx context.Context, id primitive.ObjectID, msg models.ChatMessage) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$push": bson.M{"chat_messages": msg}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ChatMessages returns the chat log in stored order; limit > 0 keeps only
// the most recent limit entries.
func (s *Properties) ChatMessages(ctx context.Context, id primitive.ObjectID, limit int) ([]models.ChatMessage, error) {
	proj := bson.M{"chat_messages": 1}
	if limit > 0 {
		proj = bson.M{"chat_messages": bson.M{"$slice": -limit}}
	}

	var doc struct {
		ChatMessages []models.ChatMessage `bson:"chat_messages"`
	}
	err := s.c.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(proj)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if doc.ChatMessages == nil {
		doc.ChatMessages = []models.ChatMessage{}
	}
	return doc.ChatMessages, nil
}
