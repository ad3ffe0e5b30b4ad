// Package mongodb implements the resource repositories over MongoDB
// collections. Lookups that find nothing return (nil, nil); duplicate-key
// and other driver errors pass through raw for the service layer to
// translate.
package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const opTimeout = 3 * time.Second

// Collection names
const (
	usersCollection    = "users"
	toursCollection    = "tours"
	reviewsCollection  = "reviews"
	bookingsCollection = "bookings"
)

// EnsureIndexes creates the unique indexes the domain invariants rely on:
// one account per email, one tour per name, one review per (tour, user).
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(toursCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "slug", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "price", Value: 1}, {Key: "ratingsAverage", Value: -1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(reviewsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tour", Value: 1}, {Key: "user", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
