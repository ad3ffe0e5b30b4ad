package domain

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Review is authored by exactly one user against exactly one tour; the
// (tour, user) pair is unique.
type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Review    string             `bson:"review" json:"review"`
	Rating    float64            `bson:"rating" json:"rating"`
	Tour      primitive.ObjectID `bson:"tour" json:"tour"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// RatingStats is the derived aggregate a tour carries over its reviews.
type RatingStats struct {
	Quantity int64   `bson:"nRating"`
	Average  float64 `bson:"avgRating"`
}

type ReviewInput struct {
	Review *string  `json:"review,omitempty"`
	Rating *float64 `json:"rating,omitempty"`
	Tour   string   `json:"tour,omitempty"`
}

func (in *ReviewInput) ValidateCreate() error {
	if in.Review == nil || strings.TrimSpace(*in.Review) == "" {
		return fmt.Errorf("a review cannot be empty")
	}
	if in.Rating == nil {
		return fmt.Errorf("a review must have a rating")
	}
	return in.Validate()
}

func (in *ReviewInput) Validate() error {
	if in.Rating != nil && (*in.Rating < 1 || *in.Rating > 5) {
		return fmt.Errorf("rating must be between 1 and 5")
	}
	if in.Review != nil && strings.TrimSpace(*in.Review) == "" {
		return fmt.Errorf("a review cannot be empty")
	}
	return nil
}
