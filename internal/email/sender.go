package email

import "context"

// EmailSender delivers the hub's transactional email: signup verification,
// password resets, and verified-listing notices.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}
