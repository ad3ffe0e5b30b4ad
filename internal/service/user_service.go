package service

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/trailhead/tours-api/internal/apperror"
	"github.com/trailhead/tours-api/internal/domain"
	"github.com/trailhead/tours-api/internal/query"
	"github.com/trailhead/tours-api/internal/repo/mongodb"
)

type UserService interface {
	List(ctx context.Context, opts *query.Options) ([]domain.User, error)
	Get(ctx context.Context, id string) (*domain.User, error)
	Update(ctx context.Context, id string, req *domain.UpdateUserRequest) (*domain.User, error)
	Delete(ctx context.Context, id string) error
	UpdateMe(ctx context.Context, userID primitive.ObjectID, req *domain.UpdateMeRequest) (*domain.User, error)
	DeleteMe(ctx context.Context, userID primitive.ObjectID) error
}

type userService struct {
	users mongodb.UserRepository
}

func NewUserService(users mongodb.UserRepository) UserService {
	return &userService{users: users}
}

func (s *userService) List(ctx context.Context, opts *query.Options) ([]domain.User, error) {
	users, err := s.users.List(ctx, opts)
	if err != nil {
		return nil, apperror.FromStore(err)
	}
	return users, nil
}

func (s *userService) Get(ctx context.Context, id string) (*domain.User, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.NotFound("No user found with that ID")
	}
	return user, nil
}

// Update is the admin route. It never touches passwords; those only move
// through the auth flows.
func (s *userService) Update(ctx context.Context, id string, req *domain.UpdateUserRequest) (*domain.User, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	set := bson.M{}
	if req.Name != nil {
		set["name"] = *req.Name
	}
	if req.Email != nil {
		set["email"] = *req.Email
	}
	if req.Role != nil {
		set["role"] = *req.Role
	}
	if len(set) == 0 {
		return nil, apperror.BadRequest("Nothing to update")
	}

	user, err := s.users.UpdateFields(ctx, oid, set)
	if err != nil {
		return nil, apperror.FromStore(err)
	}
	if user == nil {
		return nil, apperror.NotFound("No user found with that ID")
	}
	return user, nil
}

func (s *userService) Delete(ctx context.Context, id string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}

	deleted, err := s.users.Delete(ctx, oid)
	if err != nil {
		return err
	}
	if !deleted {
		return apperror.NotFound("No user found with that ID")
	}
	return nil
}

func (s *userService) UpdateMe(ctx context.Context, userID primitive.ObjectID, req *domain.UpdateMeRequest) (*domain.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	set := bson.M{}
	if req.Name != nil {
		set["name"] = *req.Name
	}
	if req.Email != nil {
		set["email"] = *req.Email
	}
	if len(set) == 0 {
		return nil, apperror.BadRequest("Nothing to update")
	}

	user, err := s.users.UpdateFields(ctx, userID, set)
	if err != nil {
		return nil, apperror.FromStore(err)
	}
	if user == nil {
		return nil, apperror.NotFound("No user found with that ID")
	}
	return user, nil
}

// DeleteMe deactivates the account instead of removing it. The record
// survives but every default lookup treats it as gone.
func (s *userService) DeleteMe(ctx context.Context, userID primitive.ObjectID) error {
	return s.users.Deactivate(ctx, userID)
}
