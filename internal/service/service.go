// Package service holds the application logic between HTTP handlers and
// the document store. Services validate input, enforce access rules and
// translate store failures into operational errors.
package service

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/trailhead/tours-api/internal/apperror"
)

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperror.BadRequest("Invalid ID: " + id)
	}
	return oid, nil
}
