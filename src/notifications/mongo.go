package notifications

import (
	"context"
	"errors"

	"github.com/Udit004/alumni-networking-sub003/src/lib"
	"github.com/Udit004/alumni-networking-sub003/src/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Server error codes returned when a sort cannot use an index
const (
	codeSortOverflow         = 96
	codeQueryExceededMemory  = 292
	codeIndexNotFoundInQuery = 27
)

// MongoStore keeps notifications in the notifications collection
type MongoStore struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

// NewMongoStore creates a notification store on the given database
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		coll:   db.Collection("notifications"),
		logger: lib.Log(),
	}
}

// EnsureIndexes creates the recipient/createdAt index ordered queries rely on
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	return err
}

func (s *MongoStore) Insert(ctx context.Context, n models.Notification) error {
	_, err := s.coll.InsertOne(ctx, n)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if err != nil {
		return lib.Transient("insert notification", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, lib.ErrNotificationNotFound
	}
	if err != nil {
		return nil, lib.Transient("get notification", err)
	}
	return &n, nil
}

func (s *MongoStore) SetRead(ctx context.Context, id string) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return lib.Transient("mark notification read", err)
	}
	if res.MatchedCount == 0 {
		return lib.ErrNotificationNotFound
	}
	return nil
}

func (s *MongoStore) SetReadForRecipient(ctx context.Context, recipient string) (int64, error) {
	res, err := s.coll.UpdateMany(ctx,
		bson.M{"recipient": recipient, "read": false},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, lib.Transient("mark all notifications read", err)
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) FindRecent(ctx context.Context, recipient string, limit int) ([]models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.coll.Find(ctx, bson.M{"recipient": recipient}, opts)
	if err != nil {
		return nil, s.classify(err)
	}
	defer cursor.Close(ctx)

	var list []models.Notification
	if err := cursor.All(ctx, &list); err != nil {
		return nil, s.classify(err)
	}
	return list, nil
}

func (s *MongoStore) FindByRecipient(ctx context.Context, recipient string) ([]models.Notification, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"recipient": recipient})
	if err != nil {
		return nil, lib.Transient("find notifications", err)
	}
	defer cursor.Close(ctx)

	var list []models.Notification
	if err := cursor.All(ctx, &list); err != nil {
		return nil, lib.Transient("decode notifications", err)
	}
	return list, nil
}

func (s *MongoStore) CountUnread(ctx context.Context, recipient string) (int64, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{"recipient": recipient, "read": false})
	if err != nil {
		return 0, lib.Transient("count unread notifications", err)
	}
	return count, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return lib.Transient("delete notification", err)
	}
	if res.DeletedCount == 0 {
		return lib.ErrNotificationNotFound
	}
	return nil
}

// Watch opens a change stream over the recipient's notifications
func (s *MongoStore) Watch(ctx context.Context, recipient string) (<-chan models.Notification, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"operationType":          bson.M{"$in": bson.A{"insert", "update", "replace"}},
			"fullDocument.recipient": recipient,
		}}},
	}
	stream, err := s.coll.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, lib.Transient("open change stream", err)
	}

	ch := make(chan models.Notification, watchBuffer)
	go func() {
		defer close(ch)
		defer stream.Close(context.Background())

		for stream.Next(ctx) {
			var event struct {
				FullDocument models.Notification `bson:"fullDocument"`
			}
			if err := stream.Decode(&event); err != nil {
				s.logger.Warn("Skipping undecodable change event", zap.Error(err))
				continue
			}
			select {
			case ch <- event.FullDocument:
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			s.logger.Warn("Notification change stream ended", zap.String("recipient", recipient), zap.Error(err))
		}
	}()
	return ch, nil
}

// classify maps sort and index failures to lib.ErrIndexUnavailable
func (s *MongoStore) classify(err error) error {
	var se mongo.ServerError
	if errors.As(err, &se) {
		for _, code := range []int{codeSortOverflow, codeQueryExceededMemory, codeIndexNotFoundInQuery} {
			if se.HasErrorCode(code) {
				return lib.ErrIndexUnavailable
			}
		}
	}
	return lib.Transient("find recent notifications", err)
}
