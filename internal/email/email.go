// Package email composes and delivers customer notifications.
package email

import "context"

// Email represents an email message to be sent.
type Email struct {
	To          []string          // Recipient email addresses
	From        string            // Sender address; empty uses the sender's default
	Subject     string            // Email subject
	TextBody    string            // Plain text body
	HTMLBody    string            // HTML body (optional)
	Attachments []Attachment      // File attachments (optional)
	Headers     map[string]string // Custom headers (optional)
}

// Attachment represents a file attachment for an email.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Sender delivers a composed message.
// Returns a message ID when the transport provides one.
type Sender interface {
	Send(ctx context.Context, email *Email) (string, error)
}
