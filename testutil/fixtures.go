package testutil

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/phillip/buildtogether-go/auth"
	"github.com/phillip/buildtogether-go/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewIdentity returns a random authenticated caller with a valid ObjectID hex id.
func NewIdentity() auth.Identity {
	return auth.Identity{
		ID:    primitive.NewObjectID().Hex(),
		Name:  gofakeit.Name(),
		Email: gofakeit.Email(),
	}
}

// NewProperty builds a FUNDING property created by creator with no members.
func NewProperty(creator auth.Identity) models.Property {
	owner := models.ProjectUser{ID: creator.ID, Name: creator.Name}
	return models.Property{
		ID:              primitive.NewObjectID(),
		Title:           gofakeit.Street() + " duplex",
		Description:     gofakeit.Sentence(12),
		Location:        gofakeit.City(),
		Images:          []string{"https://res.cloudinary.com/demo/image/upload/v1/properties/" + gofakeit.UUID() + ".jpg"},
		CreatedAt:       time.Now().UTC().Truncate(time.Millisecond),
		CreatedBy:       owner,
		Admins:          []models.ProjectUser{owner},
		Members:         []models.Member{},
		ExpectedMembers: 10,
		PerMemberCost:   2500,
		TargetAmount:    25000,
		Status:          models.StatusFunding,
		ChatMessages:    []models.ChatMessage{},
	}
}
