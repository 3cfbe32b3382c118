package store

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureIndexes is called at startup. CreateMany is idempotent for identical
specs; problems from each collection are collected so startup fails with the
whole picture.
*/
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	var problems []string

	users := []mongo.IndexModel{{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("uniq_email").SetUnique(true),
	}}
	if err := ensure(ctx, db.Collection(usersCollection), users); err != nil {
		problems = append(problems, usersCollection+": "+err.Error())
	}

	props := []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}, Options: options.Index().SetName("created_at_desc")},
		{Keys: bson.D{{Key: "admins.id", Value: 1}}, Options: options.Index().SetName("admins_id")},
		{Keys: bson.D{{Key: "members.id", Value: 1}}, Options: options.Index().SetName("members_id")},
	}
	if err := ensure(ctx, db.Collection(propertiesCollection), props); err != nil {
		problems = append(problems, propertiesCollection+": "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func ensure(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	names, err := coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return err
	}
	zap.L().Info("indexes ensured",
		zap.String("collection", coll.Name()),
		zap.Strings("indexes", names))
	return nil
}
