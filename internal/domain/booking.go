package domain

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Booking links a user, a tour and the price paid. Created either
// administratively or as a side effect of a completed checkout session.
type Booking struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Tour      primitive.ObjectID `bson:"tour" json:"tour"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	Price     float64            `bson:"price" json:"price"`
	Paid      bool               `bson:"paid" json:"paid"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type BookingInput struct {
	Tour  string   `json:"tour,omitempty"`
	User  string   `json:"user,omitempty"`
	Price *float64 `json:"price,omitempty"`
	Paid  *bool    `json:"paid,omitempty"`
}

func (in *BookingInput) ValidateCreate() error {
	if in.Tour == "" {
		return fmt.Errorf("a booking must belong to a tour")
	}
	if in.User == "" {
		return fmt.Errorf("a booking must belong to a user")
	}
	if in.Price == nil || *in.Price <= 0 {
		return fmt.Errorf("a booking must have a price")
	}
	return nil
}
