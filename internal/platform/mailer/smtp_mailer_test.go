package mailer_test

import (
	"testing"

	"github.com/trailhead/tours-api/internal/platform/mailer"
)

func TestNewSMTPMailerCarriesConnectionSettings(t *testing.T) {
	m := mailer.NewSMTPMailer(" smtp.example.com ", 465, " noreply@tours.local ", " user ", "pass", true)

	if m.Host != "smtp.example.com" || m.From != "noreply@tours.local" || m.User != "user" {
		t.Errorf("fields must be trimmed: %+v", m)
	}
	if m.Port != 465 {
		t.Errorf("expected port 465, got %d", m.Port)
	}
	if !m.UseTLS {
		t.Error("UseTLS must be carried through")
	}
}
