package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name                 string             `bson:"name" json:"name"`
	Email                string             `bson:"email" json:"email"`
	Photo                string             `bson:"photo,omitempty" json:"photo,omitempty"`
	Role                 string             `bson:"role" json:"role"`
	Password             string             `bson:"password" json:"-"`
	PasswordChangedAt    time.Time          `bson:"passwordChangedAt,omitempty" json:"-"`
	PasswordResetToken   string             `bson:"passwordResetToken,omitempty" json:"-"`
	PasswordResetExpires time.Time          `bson:"passwordResetExpires,omitempty" json:"-"`
	Active               bool               `bson:"active" json:"-"`
	CreatedAt            time.Time          `bson:"createdAt" json:"createdAt"`
}

// Valid user roles
const (
	RoleUser      = "user"
	RoleGuide     = "guide"
	RoleLeadGuide = "lead-guide"
	RoleAdmin     = "admin"
)

var validRoles = map[string]bool{
	RoleUser:      true,
	RoleGuide:     true,
	RoleLeadGuide: true,
	RoleAdmin:     true,
}

func IsValidRole(role string) bool {
	return validRoles[role]
}

// ChangedPasswordAfter reports whether the password-changed-at watermark
// invalidates a token issued at issuedAt. A watermark equal to the issue
// time rejects the token.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt.IsZero() {
		return false
	}
	return !u.PasswordChangedAt.Before(issuedAt)
}

type SignupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// UpdateMeRequest carries the explicit allowlist of self-service profile
// fields. Password updates go through their own route.
type UpdateMeRequest struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

type UpdateUserRequest struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Role  *string `json:"role,omitempty"`
}

func (r *SignupRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Name = strings.TrimSpace(r.Name)
}

func (r *SignupRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !isValidEmail(r.Email) {
		return fmt.Errorf("invalid email format")
	}
	if err := validatePassword(r.Password, r.PasswordConfirm); err != nil {
		return err
	}
	return nil
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *ResetPasswordRequest) Validate() error {
	return validatePassword(r.Password, r.PasswordConfirm)
}

func (r *UpdatePasswordRequest) Validate() error {
	if r.PasswordCurrent == "" {
		return fmt.Errorf("current password is required")
	}
	return validatePassword(r.Password, r.PasswordConfirm)
}

func (r *UpdateMeRequest) Normalize() {
	if r.Email != nil {
		normalized := strings.ToLower(strings.TrimSpace(*r.Email))
		r.Email = &normalized
	}
	if r.Name != nil {
		trimmed := strings.TrimSpace(*r.Name)
		r.Name = &trimmed
	}
}

func (r *UpdateMeRequest) Validate() error {
	if r.Name != nil && *r.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if r.Email != nil && !isValidEmail(*r.Email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

func (r *UpdateUserRequest) Validate() error {
	if r.Email != nil && !isValidEmail(*r.Email) {
		return fmt.Errorf("invalid email format")
	}
	if r.Role != nil && !validRoles[*r.Role] {
		return fmt.Errorf("invalid role")
	}
	return nil
}

func validatePassword(password, confirm string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}
	return nil
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func isValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}
