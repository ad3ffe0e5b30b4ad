package service

import (
	"context"
	"net/http"
	"time"

	"github.com/alexedwards/argon2id"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/trailhead/tours-api/internal/apperror"
	"github.com/trailhead/tours-api/internal/domain"
	"github.com/trailhead/tours-api/internal/platform/mailer"
	"github.com/trailhead/tours-api/internal/repo/mongodb"
	"github.com/trailhead/tours-api/pkg/auth"
	"github.com/trailhead/tours-api/pkg/config"
	"github.com/trailhead/tours-api/pkg/events"
	"github.com/trailhead/tours-api/pkg/logger"
)

type AuthService interface {
	Signup(ctx context.Context, req *domain.SignupRequest) (*domain.User, string, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.User, string, error)
	Authenticate(ctx context.Context, tokenString string) (*domain.User, error)
	ForgotPassword(ctx context.Context, email, resetURL string) error
	ResetPassword(ctx context.Context, token string, req *domain.ResetPasswordRequest) (*domain.User, string, error)
	UpdatePassword(ctx context.Context, userID primitive.ObjectID, req *domain.UpdatePasswordRequest) (*domain.User, string, error)
}

type authService struct {
	users    mongodb.UserRepository
	mailer   mailer.Service
	eventBus events.Publisher
	cfg      *config.Config
	hashing  *argon2id.Params
}

func NewAuthService(users mongodb.UserRepository, mail mailer.Service, bus events.Publisher, cfg *config.Config) AuthService {
	return &authService{
		users:    users,
		mailer:   mail,
		eventBus: bus,
		cfg:      cfg,
		hashing: &argon2id.Params{
			Memory:      cfg.Auth.Argon2Memory,
			Iterations:  cfg.Auth.Argon2Time,
			Parallelism: cfg.Auth.Argon2Threads,
			SaltLength:  16,
			KeyLength:   32,
		},
	}
}

func (s *authService) Signup(ctx context.Context, req *domain.SignupRequest) (*domain.User, string, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, "", apperror.BadRequest(err.Error())
	}

	hash, err := argon2id.CreateHash(req.Password, s.hashing)
	if err != nil {
		return nil, "", err
	}

	// Only name, email and password come from the request. Role is always
	// "user" on signup; anything else in the body is ignored.
	user := &domain.User{
		Name:     req.Name,
		Email:    req.Email,
		Role:     domain.RoleUser,
		Password: hash,
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, "", apperror.FromStore(err)
	}

	token, err := s.issueToken(created)
	if err != nil {
		return nil, "", err
	}

	if err := s.eventBus.Publish(ctx, events.UserRegistered, events.UserRegisteredEvent{
		UserID:    created.ID.Hex(),
		Email:     created.Email,
		Name:      created.Name,
		CreatedAt: created.CreatedAt,
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish user registered event", "error", err)
	}

	if err := s.mailer.SendWelcome(created.Email, created.Name); err != nil {
		logger.ErrorContext(ctx, "Failed to send welcome email", "error", err, "user_id", created.ID.Hex())
	}

	return created, token, nil
}

func (s *authService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.User, string, error) {
	req.Normalize()
	if req.Email == "" || req.Password == "" {
		return nil, "", apperror.BadRequest("Please provide email and password")
	}

	// Unknown email and wrong password get the same answer.
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", apperror.Unauthorized("Incorrect email or password")
	}

	match, err := argon2id.ComparePasswordAndHash(req.Password, user.Password)
	if err != nil {
		return nil, "", err
	}
	if !match {
		return nil, "", apperror.Unauthorized("Incorrect email or password")
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Authenticate resolves a bearer token to a live user. The user must still
// exist, still be active and must not have changed their password after
// the token was issued.
func (s *authService) Authenticate(ctx context.Context, tokenString string) (*domain.User, error) {
	claims, err := auth.Parse(tokenString, s.cfg.Auth.JWTSecret)
	if err != nil {
		return nil, apperror.FromToken(err)
	}

	id, err := primitive.ObjectIDFromHex(claims.Sub)
	if err != nil {
		return nil, apperror.Unauthorized("Invalid token. Please log in again")
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.Unauthorized("The user belonging to this token no longer exists")
	}

	if claims.IssuedAt != nil && user.ChangedPasswordAfter(claims.IssuedAt.Time) {
		return nil, apperror.Unauthorized("User recently changed password. Please log in again")
	}

	return user, nil
}

func (s *authService) ForgotPassword(ctx context.Context, email, resetURL string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return apperror.NotFound("There is no user with that email address")
	}

	token, digest, err := auth.NewResetToken()
	if err != nil {
		return err
	}

	expires := time.Now().Add(s.cfg.Auth.ResetTokenTTL)
	if err := s.users.SetResetToken(ctx, user.ID, digest, expires); err != nil {
		return err
	}

	// If the mail cannot go out, the stored token is useless to the user;
	// roll it back so the account holds no dangling reset state.
	if err := s.mailer.SendPasswordReset(user.Email, user.Name, resetURL+"/"+token); err != nil {
		logger.ErrorContext(ctx, "Failed to send password reset email", "error", err, "user_id", user.ID.Hex())
		if clearErr := s.users.ClearResetToken(ctx, user.ID); clearErr != nil {
			logger.ErrorContext(ctx, "Failed to clear reset token after send failure", "error", clearErr, "user_id", user.ID.Hex())
		}
		return apperror.Wrap(http.StatusInternalServerError, "There was an error sending the email. Try again later", err)
	}

	return nil
}

func (s *authService) ResetPassword(ctx context.Context, token string, req *domain.ResetPasswordRequest) (*domain.User, string, error) {
	if err := req.Validate(); err != nil {
		return nil, "", apperror.BadRequest(err.Error())
	}

	user, err := s.users.FindByResetToken(ctx, auth.HashResetToken(token), time.Now())
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		// Wrong token and expired token are indistinguishable on purpose.
		return nil, "", apperror.BadRequest("Token is invalid or has expired")
	}

	if err := s.setPassword(ctx, user, req.Password); err != nil {
		return nil, "", err
	}

	accessToken, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, accessToken, nil
}

func (s *authService) UpdatePassword(ctx context.Context, userID primitive.ObjectID, req *domain.UpdatePasswordRequest) (*domain.User, string, error) {
	if err := req.Validate(); err != nil {
		return nil, "", apperror.BadRequest(err.Error())
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", apperror.Unauthorized("The user belonging to this token no longer exists")
	}

	match, err := argon2id.ComparePasswordAndHash(req.PasswordCurrent, user.Password)
	if err != nil {
		return nil, "", err
	}
	if !match {
		return nil, "", apperror.Unauthorized("Your current password is wrong")
	}

	if err := s.setPassword(ctx, user, req.Password); err != nil {
		return nil, "", err
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// setPassword hashes and stores a new password. The changed-at watermark
// is backdated one second so the token issued for this very change is
// not rejected by the freshness check; anything older still is.
func (s *authService) setPassword(ctx context.Context, user *domain.User, password string) error {
	hash, err := argon2id.CreateHash(password, s.hashing)
	if err != nil {
		return err
	}

	changedAt := time.Now().Add(-time.Second)
	if err := s.users.UpdatePassword(ctx, user.ID, hash, changedAt); err != nil {
		return err
	}

	user.Password = hash
	user.PasswordChangedAt = changedAt
	user.PasswordResetToken = ""
	user.PasswordResetExpires = time.Time{}
	return nil
}

func (s *authService) issueToken(user *domain.User) (string, error) {
	return auth.NewAccessToken(user.ID.Hex(), s.cfg.Auth.JWTSecret, s.cfg.Auth.TokenTTL)
}
