package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// NewResetToken returns a random password-reset token and the sha256 hex
// digest stored at rest. Only the digest ever touches the database; the
// cleartext token goes to the user out-of-band.
func NewResetToken() (token, digest string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(buf)
	return token, HashResetToken(token), nil
}

func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
