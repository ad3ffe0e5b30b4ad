package service_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/trailhead/tours-api/internal/apperror"
	"github.com/trailhead/tours-api/internal/domain"
	"github.com/trailhead/tours-api/internal/query"
	"github.com/trailhead/tours-api/internal/service"
	"github.com/trailhead/tours-api/pkg/auth"
	"github.com/trailhead/tours-api/pkg/config"
)

// ---------- Mocks ----------

type mockUserRepo struct {
	users       map[primitive.ObjectID]*domain.User
	setTokenErr error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[primitive.ObjectID]*domain.User)}
}

func (m *mockUserRepo) seed(u *domain.User) *domain.User {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.Active = true
	m.users[u.ID] = u
	return u
}

func (m *mockUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	for _, u := range m.users {
		if u.Email == user.Email {
			return nil, errDuplicateKey{}
		}
	}
	user.ID = primitive.NewObjectID()
	user.CreatedAt = time.Now()
	user.Active = true
	m.users[user.ID] = user
	return user, nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Email == email && u.Active {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) FindByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	if u, ok := m.users[id]; ok && u.Active {
		return u, nil
	}
	return nil, nil
}

func (m *mockUserRepo) FindByResetToken(_ context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	for _, u := range m.users {
		if u.Active && u.PasswordResetToken == tokenHash && u.PasswordResetExpires.After(now) {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) List(context.Context, *query.Options) ([]domain.User, error) {
	return nil, nil
}

func (m *mockUserRepo) UpdateFields(_ context.Context, id primitive.ObjectID, set bson.M) (*domain.User, error) {
	u, ok := m.users[id]
	if !ok || !u.Active {
		return nil, nil
	}
	if name, ok := set["name"].(string); ok {
		u.Name = name
	}
	if email, ok := set["email"].(string); ok {
		u.Email = email
	}
	if role, ok := set["role"].(string); ok {
		u.Role = role
	}
	return u, nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id primitive.ObjectID, passwordHash string, changedAt time.Time) error {
	u := m.users[id]
	u.Password = passwordHash
	u.PasswordChangedAt = changedAt
	u.PasswordResetToken = ""
	u.PasswordResetExpires = time.Time{}
	return nil
}

func (m *mockUserRepo) SetResetToken(_ context.Context, id primitive.ObjectID, tokenHash string, expires time.Time) error {
	if m.setTokenErr != nil {
		return m.setTokenErr
	}
	u := m.users[id]
	u.PasswordResetToken = tokenHash
	u.PasswordResetExpires = expires
	return nil
}

func (m *mockUserRepo) ClearResetToken(_ context.Context, id primitive.ObjectID) error {
	u := m.users[id]
	u.PasswordResetToken = ""
	u.PasswordResetExpires = time.Time{}
	return nil
}

func (m *mockUserRepo) Deactivate(_ context.Context, id primitive.ObjectID) error {
	m.users[id].Active = false
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id primitive.ObjectID) (bool, error) {
	if _, ok := m.users[id]; !ok {
		return false, nil
	}
	delete(m.users, id)
	return true, nil
}

type errDuplicateKey struct{}

func (errDuplicateKey) Error() string { return "duplicate key" }

type mockMailer struct {
	resetTo  string
	resetURL string
	sendErr  error
}

func (m *mockMailer) SendPasswordReset(toEmail, _, resetURL string) error {
	m.resetTo = toEmail
	m.resetURL = resetURL
	return m.sendErr
}

func (m *mockMailer) SendWelcome(string, string) error { return nil }

type mockBus struct {
	subjects []string
}

func (m *mockBus) Publish(_ context.Context, subject string, _ interface{}) error {
	m.subjects = append(m.subjects, subject)
	return nil
}

func (m *mockBus) Close() error { return nil }

// ---------- Helpers ----------

func testConfig() *config.Config {
	return &config.Config{
		Env: "test",
		Auth: config.AuthConfig{
			JWTSecret:     "test-secret",
			TokenTTL:      time.Hour,
			ResetTokenTTL: 10 * time.Minute,
			Argon2Memory:  8 * 1024,
			Argon2Time:    1,
			Argon2Threads: 1,
		},
	}
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := argon2id.CreateHash(password, &argon2id.Params{
		Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return hash
}

func wantCode(t *testing.T, err error, code int) *apperror.Error {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	appErr, ok := apperror.AsError(err)
	if !ok {
		t.Fatalf("expected operational error, got %v", err)
	}
	if appErr.Code != code {
		t.Fatalf("expected status %d, got %d (%s)", code, appErr.Code, appErr.Message)
	}
	return appErr
}

// ---------- Tests ----------

func TestSignupCreatesRegularUser(t *testing.T) {
	repo := newMockUserRepo()
	bus := &mockBus{}
	svc := service.NewAuthService(repo, &mockMailer{}, bus, testConfig())

	user, token, err := svc.Signup(context.Background(), &domain.SignupRequest{
		Name:            "Ada",
		Email:           "Ada@Example.COM",
		Password:        "password123",
		PasswordConfirm: "password123",
	})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	if user.Role != domain.RoleUser {
		t.Errorf("signup must always produce role user, got %q", user.Role)
	}
	if user.Email != "ada@example.com" {
		t.Errorf("expected normalized email, got %q", user.Email)
	}
	if user.Password == "password123" {
		t.Error("password must be stored hashed")
	}
	if match, _ := argon2id.ComparePasswordAndHash("password123", user.Password); !match {
		t.Error("stored hash must verify against the password")
	}

	claims, err := auth.Parse(token, "test-secret")
	if err != nil {
		t.Fatalf("signup token must parse: %v", err)
	}
	if claims.Sub != user.ID.Hex() {
		t.Errorf("token subject mismatch: %q vs %q", claims.Sub, user.ID.Hex())
	}

	if len(bus.subjects) == 0 || bus.subjects[0] != "user.registered" {
		t.Errorf("expected user.registered event, got %v", bus.subjects)
	}
}

func TestSignupRejectsShortPassword(t *testing.T) {
	svc := service.NewAuthService(newMockUserRepo(), &mockMailer{}, &mockBus{}, testConfig())

	_, _, err := svc.Signup(context.Background(), &domain.SignupRequest{
		Name:            "Ada",
		Email:           "ada@example.com",
		Password:        "short",
		PasswordConfirm: "short",
	})
	wantCode(t, err, http.StatusBadRequest)
}

func TestLoginIndistinguishableFailures(t *testing.T) {
	repo := newMockUserRepo()
	repo.seed(&domain.User{
		Name:     "Ada",
		Email:    "ada@example.com",
		Role:     domain.RoleUser,
		Password: hashPassword(t, "password123"),
	})
	svc := service.NewAuthService(repo, &mockMailer{}, &mockBus{}, testConfig())

	_, _, wrongPass := svc.Login(context.Background(), &domain.LoginRequest{
		Email: "ada@example.com", Password: "wrong-password",
	})
	_, _, unknownUser := svc.Login(context.Background(), &domain.LoginRequest{
		Email: "nobody@example.com", Password: "password123",
	})

	a := wantCode(t, wrongPass, http.StatusUnauthorized)
	b := wantCode(t, unknownUser, http.StatusUnauthorized)
	if a.Message != b.Message {
		t.Errorf("wrong password and unknown email must read the same: %q vs %q", a.Message, b.Message)
	}
}

func TestLoginSuccess(t *testing.T) {
	repo := newMockUserRepo()
	seeded := repo.seed(&domain.User{
		Name:     "Ada",
		Email:    "ada@example.com",
		Role:     domain.RoleUser,
		Password: hashPassword(t, "password123"),
	})
	svc := service.NewAuthService(repo, &mockMailer{}, &mockBus{}, testConfig())

	user, token, err := svc.Login(context.Background(), &domain.LoginRequest{
		Email: "ada@example.com", Password: "password123",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if user.ID != seeded.ID {
		t.Error("login returned the wrong user")
	}
	if token == "" {
		t.Error("login must issue a token")
	}
}

func TestAuthenticateRejectsWatermarkedToken(t *testing.T) {
	repo := newMockUserRepo()
	user := repo.seed(&domain.User{
		Name:     "Ada",
		Email:    "ada@example.com",
		Role:     domain.RoleUser,
		Password: hashPassword(t, "password123"),
	})
	cfg := testConfig()
	svc := service.NewAuthService(repo, &mockMailer{}, &mockBus{}, cfg)

	token, err := auth.NewAccessToken(user.ID.Hex(), cfg.Auth.JWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	if _, err := svc.Authenticate(context.Background(), token); err != nil {
		t.Fatalf("token should be valid before password change: %v", err)
	}

	// A password change after issuance invalidates the token.
	user.PasswordChangedAt = time.Now().Add(time.Minute)
	wantCode(t, mustErr(svc.Authenticate(context.Background(), token)), http.StatusUnauthorized)
}

func TestAuthenticateRejectsDeletedUser(t *testing.T) {
	repo := newMockUserRepo()
	user := repo.seed(&domain.User{
		Name:     "Ada",
		Email:    "ada@example.com",
		Role:     domain.RoleUser,
		Password: hashPassword(t, "password123"),
	})
	cfg := testConfig()
	svc := service.NewAuthService(repo, &mockMailer{}, &mockBus{}, cfg)

	token, _ := auth.NewAccessToken(user.ID.Hex(), cfg.Auth.JWTSecret, time.Hour)
	user.Active = false

	appErr := wantCode(t, mustErr(svc.Authenticate(context.Background(), token)), http.StatusUnauthorized)
	if appErr.Message != "The user belonging to this token no longer exists" {
		t.Errorf("unexpected message %q", appErr.Message)
	}
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	svc := service.NewAuthService(newMockUserRepo(), &mockMailer{}, &mockBus{}, testConfig())

	err := svc.ForgotPassword(context.Background(), "nobody@example.com", "http://api.local/reset")
	wantCode(t, err, http.StatusNotFound)
}

func TestForgotPasswordStoresDigestNotToken(t *testing.T) {
	repo := newMockUserRepo()
	user := repo.seed(&domain.User{
		Name:     "Ada",
		Email:    "ada@example.com",
		Role:     domain.RoleUser,
		Password: hashPassword(t, "password123"),
	})
	mail := &mockMailer{}
	svc := service.NewAuthService(repo, mail, &mockBus{}, testConfig())

	if err := svc.ForgotPassword(context.Background(), "ada@example.com", "http://api.local/reset"); err != nil {
		t.Fatalf("forgot password failed: %v", err)
	}

	if user.PasswordResetToken == "" {
		t.Fatal("expected reset digest stored")
	}
	if mail.resetTo != "ada@example.com" {
		t.Errorf("reset mail went to %q", mail.resetTo)
	}
	// The URL carries the cleartext token; the store carries its digest.
	cleartext := mail.resetURL[len("http://api.local/reset/"):]
	if auth.HashResetToken(cleartext) != user.PasswordResetToken {
		t.Error("stored value must be the sha256 digest of the mailed token")
	}
	if user.PasswordResetExpires.Before(time.Now().Add(9 * time.Minute)) {
		t.Error("reset token should live about ten minutes")
	}
}

func TestForgotPasswordRollsBackOnMailFailure(t *testing.T) {
	repo := newMockUserRepo()
	user := repo.seed(&domain.User{
		Name:     "Ada",
		Email:    "ada@example.com",
		Role:     domain.RoleUser,
		Password: hashPassword(t, "password123"),
	})
	mail := &mockMailer{sendErr: errDuplicateKey{}}
	svc := service.NewAuthService(repo, mail, &mockBus{}, testConfig())

	err := svc.ForgotPassword(context.Background(), "ada@example.com", "http://api.local/reset")
	wantCode(t, err, http.StatusInternalServerError)

	if user.PasswordResetToken != "" || !user.PasswordResetExpires.IsZero() {
		t.Error("reset state must be rolled back when the mail cannot be sent")
	}
}

func TestResetPasswordInvalidOrExpired(t *testing.T) {
	repo := newMockUserRepo()
	user := repo.seed(&domain.User{
		Name:     "Ada",
		Email:    "ada@example.com",
		Role:     domain.RoleUser,
		Password: hashPassword(t, "password123"),
	})
	svc := service.NewAuthService(repo, &mockMailer{}, &mockBus{}, testConfig())

	req := &domain.ResetPasswordRequest{Password: "newpassword", PasswordConfirm: "newpassword"}

	// Unknown token.
	_, _, err := svc.ResetPassword(context.Background(), "bogus-token", req)
	unknown := wantCode(t, err, http.StatusBadRequest)

	// Expired token.
	token, digest, _ := auth.NewResetToken()
	user.PasswordResetToken = digest
	user.PasswordResetExpires = time.Now().Add(-time.Minute)
	_, _, err = svc.ResetPassword(context.Background(), token, req)
	expired := wantCode(t, err, http.StatusBadRequest)

	if unknown.Message != expired.Message {
		t.Errorf("invalid and expired must read the same: %q vs %q", unknown.Message, expired.Message)
	}
}

func TestResetPasswordSuccess(t *testing.T) {
	repo := newMockUserRepo()
	user := repo.seed(&domain.User{
		Name:     "Ada",
		Email:    "ada@example.com",
		Role:     domain.RoleUser,
		Password: hashPassword(t, "password123"),
	})
	svc := service.NewAuthService(repo, &mockMailer{}, &mockBus{}, testConfig())

	token, digest, err := auth.NewResetToken()
	if err != nil {
		t.Fatalf("failed to mint reset token: %v", err)
	}
	user.PasswordResetToken = digest
	user.PasswordResetExpires = time.Now().Add(10 * time.Minute)

	before := time.Now()
	_, accessToken, err := svc.ResetPassword(context.Background(), token, &domain.ResetPasswordRequest{
		Password: "newpassword", PasswordConfirm: "newpassword",
	})
	if err != nil {
		t.Fatalf("reset password failed: %v", err)
	}

	if match, _ := argon2id.ComparePasswordAndHash("newpassword", user.Password); !match {
		t.Error("new password must be stored")
	}
	if user.PasswordResetToken != "" {
		t.Error("reset token must be consumed")
	}
	// Backdated watermark: the token issued by the reset itself must
	// survive the freshness check.
	if !user.PasswordChangedAt.Before(before) {
		t.Error("watermark must be backdated")
	}
	if accessToken == "" {
		t.Error("reset must log the user in")
	}
}

func TestUpdatePasswordWrongCurrent(t *testing.T) {
	repo := newMockUserRepo()
	user := repo.seed(&domain.User{
		Name:     "Ada",
		Email:    "ada@example.com",
		Role:     domain.RoleUser,
		Password: hashPassword(t, "password123"),
	})
	svc := service.NewAuthService(repo, &mockMailer{}, &mockBus{}, testConfig())

	_, _, err := svc.UpdatePassword(context.Background(), user.ID, &domain.UpdatePasswordRequest{
		PasswordCurrent: "wrong",
		Password:        "newpassword",
		PasswordConfirm: "newpassword",
	})
	wantCode(t, err, http.StatusUnauthorized)
}

func TestUpdatePasswordSuccess(t *testing.T) {
	repo := newMockUserRepo()
	user := repo.seed(&domain.User{
		Name:     "Ada",
		Email:    "ada@example.com",
		Role:     domain.RoleUser,
		Password: hashPassword(t, "password123"),
	})
	svc := service.NewAuthService(repo, &mockMailer{}, &mockBus{}, testConfig())

	_, token, err := svc.UpdatePassword(context.Background(), user.ID, &domain.UpdatePasswordRequest{
		PasswordCurrent: "password123",
		Password:        "newpassword",
		PasswordConfirm: "newpassword",
	})
	if err != nil {
		t.Fatalf("update password failed: %v", err)
	}
	if token == "" {
		t.Error("a fresh token must be issued after a password change")
	}
	if user.PasswordChangedAt.IsZero() {
		t.Error("watermark must be set")
	}
}

func mustErr(_ *domain.User, err error) error { return err }
