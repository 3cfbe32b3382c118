package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Status string

// Status is written once at creation; nothing advances it yet.
const (
	StatusFunding   Status = "FUNDING"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
)

// ProjectUser is the {id, name} pair stored for creators and admins.
type ProjectUser struct {
	ID   string `bson:"id" json:"id"`
	Name string `bson:"name" json:"name"`
}

type Member struct {
	ID       string    `bson:"id" json:"id"`
	Name     string    `bson:"name" json:"name"`
	JoinedAt time.Time `bson:"joined_at" json:"joined_at"`
}

type Property struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Location    string             `bson:"location" json:"location"`
	Images      []string           `bson:"images" json:"images"`

	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
	CreatedBy ProjectUser `bson:"created_by" json:"created_by"`

	Admins  []ProjectUser `bson:"admins" json:"admins"`
	Members []Member      `bson:"members" json:"members"`

	ExpectedMembers int     `bson:"expected_members" json:"expected_members"`
	PerMemberCost   float64 `bson:"per_member_cost" json:"per_member_cost"`
	TargetAmount    float64 `bson:"target_amount" json:"target_amount"` // expected_members * per_member_cost, fixed at creation

	Status Status `bson:"status" json:"status"`

	ChatMessages []ChatMessage `bson:"chat_messages" json:"chat_messages"`
}

// HasBacker reports whether userID is already an admin or member.
func (p *Property) HasBacker(userID string) bool {
	for _, a := range p.Admins {
		if a.ID == userID {
			return true
		}
	}
	for _, m := range p.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

// Backers counts admins and members toward expected_members.
func (p *Property) Backers() int {
	return len(p.Admins) + len(p.Members)
}
