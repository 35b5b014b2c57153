package repository

import (
	"context"
	"errors"
	"time"

	"civichero-be/apperr"
	"civichero-be/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrUserNotFound = apperr.NotFound("User not found")
	ErrEmailTaken   = apperr.Conflict("User with this email already exists")
)

// UserRepository stores accounts in the users collection.
type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection("users")}
}

// EnsureIndexes creates the unique email index and the leaderboard index
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "type", Value: 1}, {Key: "xpPoints", Value: -1}},
		},
	})
	return err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := r.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, apperr.Network("Failed to retrieve user", err)
	}
	return &user, nil
}

// Insert stores a new user and fills in its ID.
func (r *UserRepository) Insert(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return apperr.Network("Failed to create user", err)
	}
	return nil
}

// Delete removes an account. Missing accounts are not an error.
func (r *UserRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return apperr.Network("Failed to delete user", err)
	}
	return nil
}

// SetXP overwrites a user's experience points
func (r *UserRepository) SetXP(ctx context.Context, id primitive.ObjectID, xp int) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"xpPoints": xp, "updatedAt": time.Now()}},
	)
	if err != nil {
		return apperr.Network("Failed to update experience points", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

// AddXP increments a user's experience points and returns the new total
func (r *UserRepository) AddXP(ctx context.Context, id primitive.ObjectID, delta int) (int, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"xpPoints": 1})

	var updated struct {
		XPPoints int `bson:"xpPoints"`
	}
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"xpPoints": delta}, "$set": bson.M{"updatedAt": time.Now()}},
		opts,
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, ErrUserNotFound
		}
		return 0, apperr.Network("Failed to update experience points", err)
	}
	return updated.XPPoints, nil
}

// TopByXP returns the highest scoring users of one type, best first
func (r *UserRepository) TopByXP(ctx context.Context, typ models.ProfileType, limit int) ([]models.User, error) {
	findOptions := options.Find().
		SetSort(bson.D{{Key: "xpPoints", Value: -1}, {Key: "createdAt", Value: 1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"password": 0})

	cursor, err := r.coll.Find(ctx, bson.M{"type": typ}, findOptions)
	if err != nil {
		return nil, apperr.Network("Failed to retrieve leaderboard", err)
	}
	defer cursor.Close(ctx)

	users := make([]models.User, 0, limit)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, apperr.Network("Failed to decode leaderboard", err)
	}
	return users, nil
}
