package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Tour difficulties
const (
	DifficultyEasy      = "easy"
	DifficultyMedium    = "medium"
	DifficultyDifficult = "difficult"
)

var validDifficulties = map[string]bool{
	DifficultyEasy:      true,
	DifficultyMedium:    true,
	DifficultyDifficult: true,
}

// DefaultRatingsAverage is the rating a tour carries before any review
// exists, and the value the aggregate resets to when the last review is
// deleted.
const DefaultRatingsAverage = 4.5

type Tour struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name            string               `bson:"name" json:"name"`
	Slug            string               `bson:"slug" json:"slug"`
	Duration        float64              `bson:"duration" json:"duration"`
	MaxGroupSize    int                  `bson:"maxGroupSize" json:"maxGroupSize"`
	Difficulty      string               `bson:"difficulty" json:"difficulty"`
	RatingsAverage  float64              `bson:"ratingsAverage" json:"ratingsAverage"`
	RatingsQuantity int64                `bson:"ratingsQuantity" json:"ratingsQuantity"`
	Price           float64              `bson:"price" json:"price"`
	PriceDiscount   float64              `bson:"priceDiscount,omitempty" json:"priceDiscount,omitempty"`
	Summary         string               `bson:"summary" json:"summary"`
	Description     string               `bson:"description,omitempty" json:"description,omitempty"`
	ImageCover      string               `bson:"imageCover" json:"imageCover"`
	Images          []string             `bson:"images,omitempty" json:"images,omitempty"`
	StartDates      []time.Time          `bson:"startDates,omitempty" json:"startDates,omitempty"`
	StartLocation   *Location            `bson:"startLocation,omitempty" json:"startLocation,omitempty"`
	Locations       []Location           `bson:"locations,omitempty" json:"locations,omitempty"`
	Guides          []primitive.ObjectID `bson:"guides,omitempty" json:"guides,omitempty"`
	Secret          bool                 `bson:"secretTour" json:"-"`
	CreatedAt       time.Time            `bson:"createdAt" json:"createdAt"`
}

// DurationWeeks is the derived duration in weeks; computed at read time,
// never stored.
func (t *Tour) DurationWeeks() float64 {
	return t.Duration / 7
}

// Location is a GeoJSON point with tour-specific metadata.
type Location struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
	Address     string    `bson:"address,omitempty" json:"address,omitempty"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Day         int       `bson:"day,omitempty" json:"day,omitempty"`
}

// TourInput covers both create (all required fields present) and patch
// (any subset) semantics.
type TourInput struct {
	Name          *string      `json:"name,omitempty"`
	Duration      *float64     `json:"duration,omitempty"`
	MaxGroupSize  *int         `json:"maxGroupSize,omitempty"`
	Difficulty    *string      `json:"difficulty,omitempty"`
	Price         *float64     `json:"price,omitempty"`
	PriceDiscount *float64     `json:"priceDiscount,omitempty"`
	Summary       *string      `json:"summary,omitempty"`
	Description   *string      `json:"description,omitempty"`
	ImageCover    *string      `json:"imageCover,omitempty"`
	Images        *[]string    `json:"images,omitempty"`
	StartDates    *[]time.Time `json:"startDates,omitempty"`
	StartLocation *Location    `json:"startLocation,omitempty"`
	Locations     *[]Location  `json:"locations,omitempty"`
	Guides        *[]string    `json:"guides,omitempty"`
	Secret        *bool        `json:"secretTour,omitempty"`
}

func (in *TourInput) ValidateCreate() error {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return fmt.Errorf("a tour must have a name")
	}
	if in.Duration == nil || *in.Duration <= 0 {
		return fmt.Errorf("a tour must have a duration")
	}
	if in.MaxGroupSize == nil || *in.MaxGroupSize <= 0 {
		return fmt.Errorf("a tour must have a group size")
	}
	if in.Price == nil || *in.Price <= 0 {
		return fmt.Errorf("a tour must have a price")
	}
	if in.Summary == nil || strings.TrimSpace(*in.Summary) == "" {
		return fmt.Errorf("a tour must have a summary")
	}
	if in.ImageCover == nil || *in.ImageCover == "" {
		return fmt.Errorf("a tour must have a cover image")
	}
	if in.Difficulty == nil {
		return fmt.Errorf("a tour must have a difficulty")
	}
	return in.Validate()
}

func (in *TourInput) Validate() error {
	if in.Difficulty != nil && !validDifficulties[*in.Difficulty] {
		return fmt.Errorf("difficulty must be easy, medium or difficult")
	}
	if in.Duration != nil && *in.Duration <= 0 {
		return fmt.Errorf("duration must be positive")
	}
	if in.MaxGroupSize != nil && *in.MaxGroupSize <= 0 {
		return fmt.Errorf("group size must be positive")
	}
	if in.Price != nil && *in.Price <= 0 {
		return fmt.Errorf("price must be positive")
	}
	if in.PriceDiscount != nil && in.Price != nil && *in.PriceDiscount >= *in.Price {
		return fmt.Errorf("discount must be below the regular price")
	}
	return nil
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives the URL slug from a tour name.
func Slugify(name string) string {
	slug := slugStrip.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
