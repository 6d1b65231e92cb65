// Package email composes and sends booking notifications. Senders are
// fire-and-forget collaborators from the reconciler's perspective:
// failures are logged and never affect booking state.
package email

import "context"

// Email is a message ready to send.
type Email struct {
	To       []string
	From     string
	Subject  string
	HTMLBody string
	TextBody string
}

// Sender delivers emails. Implementations: ResendSender, SMTPSender.
type Sender interface {
	// Send delivers the email and returns a provider message id.
	Send(ctx context.Context, email *Email) (string, error)
}
