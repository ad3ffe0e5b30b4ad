package mailer

import (
	"github.com/trailhead/tours-api/pkg/logger"
)

// DevMailer logs mail to stdout instead of sending it.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendPasswordReset(toEmail, toName, resetURL string) error {
	logger.Info("[DEV MAIL] Password reset",
		"to", toEmail,
		"name", toName,
		"reset_url", resetURL,
	)
	return nil
}

func (d *DevMailer) SendWelcome(toEmail, toName string) error {
	logger.Info("[DEV MAIL] Welcome",
		"to", toEmail,
		"name", toName,
	)
	return nil
}
