package models

import "time"

// ChatMessage is one entry of a property's append-only chat log.
type ChatMessage struct {
	User      string    `bson:"user" json:"user"`
	Message   string    `bson:"message" json:"message"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}
