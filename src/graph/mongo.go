package graph

import (
	"context"
	"errors"

	"github.com/Udit004/alumni-networking-sub003/src/lib"
	"github.com/Udit004/alumni-networking-sub003/src/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps one document per user in the users collection
type MongoStore struct {
	users *mongo.Collection
}

// NewMongoStore creates a profile store on the given database
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{users: db.Collection("users")}
}

// ReadUser fetches a user document by ID
func (s *MongoStore) ReadUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, lib.ErrUserNotFound
	}
	if err != nil {
		return nil, lib.Transient("read user", err)
	}
	return &user, nil
}

// MutateUserSets runs one update with $addToSet and $pull on the user document
func (s *MongoStore) MutateUserSets(ctx context.Context, id string, add, remove []SetOp) error {
	if err := checkOps(add, remove); err != nil {
		return err
	}

	update := bson.M{}
	if len(add) > 0 {
		addToSet := bson.M{}
		for set, members := range groupOps(add) {
			addToSet[string(set)] = bson.M{"$each": members}
		}
		update["$addToSet"] = addToSet
	}
	if len(remove) > 0 {
		pull := bson.M{}
		for set, members := range groupOps(remove) {
			pull[string(set)] = bson.M{"$in": members}
		}
		update["$pull"] = pull
	}
	if len(update) == 0 {
		return nil
	}

	res, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return lib.Transient("mutate user", err)
	}
	if res.MatchedCount == 0 {
		return lib.ErrUserNotFound
	}
	return nil
}

// ListUsers returns users filtered by role when given, in _id order
func (s *MongoStore) ListUsers(ctx context.Context, roles ...models.Role) ([]models.User, error) {
	filter := bson.M{}
	if len(roles) > 0 {
		filter["role"] = bson.M{"$in": roles}
	}

	cursor, err := s.users.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, lib.Transient("list users", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, lib.Transient("decode users", err)
	}
	return users, nil
}

// Upsert writes the whole user document, creating it if missing
func (s *MongoStore) Upsert(ctx context.Context, user models.User) error {
	// $addToSet fails on a null field, so sets are always stored as arrays
	for _, set := range []*[]string{&user.Connections, &user.PendingIncoming, &user.PendingOutgoing} {
		if *set == nil {
			*set = []string{}
		}
	}
	_, err := s.users.ReplaceOne(ctx, bson.M{"_id": user.Id}, user, options.Replace().SetUpsert(true))
	if err != nil {
		return lib.Transient("upsert user", err)
	}
	return nil
}
