package mailer

// Service delivers transactional mail. The password-reset mail carries the
// cleartext reset token; it must never be logged by production
// implementations.
type Service interface {
	SendPasswordReset(toEmail, toName, resetURL string) error
	SendWelcome(toEmail, toName string) error
}
