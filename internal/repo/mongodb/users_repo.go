package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trailhead/tours-api/internal/domain"
	"github.com/trailhead/tours-api/internal/query"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error)
	List(ctx context.Context, opts *query.Options) ([]domain.User, error)
	UpdateFields(ctx context.Context, id primitive.ObjectID, set bson.M) (*domain.User, error)
	UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string, changedAt time.Time) error
	SetResetToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expires time.Time) error
	ClearResetToken(ctx context.Context, id primitive.ObjectID) error
	Deactivate(ctx context.Context, id primitive.ObjectID) error
	Delete(ctx context.Context, id primitive.ObjectID) (bool, error)
}

type userRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) UserRepository {
	return &userRepository{coll: db.Collection(usersCollection)}
}

// activeFilter is the soft-delete predicate applied to every default
// lookup: deactivated accounts behave as if they do not exist.
func activeFilter() bson.M {
	return bson.M{"active": bson.M{"$ne": false}}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	user.CreatedAt = time.Now()
	user.Active = true

	res, err := r.coll.InsertOne(ctx, user)
	if err != nil {
		return nil, err
	}
	user.ID = res.InsertedID.(primitive.ObjectID)
	return user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	filter := activeFilter()
	filter["email"] = email
	return r.findOne(ctx, filter)
}

func (r *userRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	filter := activeFilter()
	filter["_id"] = id
	return r.findOne(ctx, filter)
}

func (r *userRepository) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	filter := activeFilter()
	filter["passwordResetToken"] = tokenHash
	filter["passwordResetExpires"] = bson.M{"$gt": now}
	return r.findOne(ctx, filter)
}

func (r *userRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var u domain.User
	err := r.coll.FindOne(ctx, filter).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) List(ctx context.Context, opts *query.Options) ([]domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := query.Merge(activeFilter(), opts.Filter)
	cursor, err := r.coll.Find(ctx, filter, opts.Find())
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []domain.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) UpdateFields(ctx context.Context, id primitive.ObjectID, set bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := activeFilter()
	filter["_id"] = id

	var u domain.User
	err := r.coll.FindOneAndUpdate(ctx, filter,
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string, changedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.coll.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"password":          passwordHash,
			"passwordChangedAt": changedAt,
		},
		"$unset": bson.M{
			"passwordResetToken":   "",
			"passwordResetExpires": "",
		},
	})
	return err
}

func (r *userRepository) SetResetToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expires time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.coll.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"passwordResetToken":   tokenHash,
			"passwordResetExpires": expires,
		},
	})
	return err
}

func (r *userRepository) ClearResetToken(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.coll.UpdateByID(ctx, id, bson.M{
		"$unset": bson.M{
			"passwordResetToken":   "",
			"passwordResetExpires": "",
		},
	})
	return err
}

func (r *userRepository) Deactivate(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"active": false}})
	return err
}

func (r *userRepository) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
