// Package store holds the MongoDB-backed user and property collections.
package store

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyMember = errors.New("user is already part of this project")
	ErrEmailTaken    = errors.New("email already registered")
)

const (
	usersCollection      = "users"
	propertiesCollection = "properties"
)

func isDup(err error) bool {
	return err != nil && mongo.IsDuplicateKeyError(err)
}
