package mail

import "context"

// Message is one outbound email.
type Message struct {
	ToName    string
	ToEmail   string
	FromName  string
	FromEmail string
	Subject   string
	TextBody  string
	HTMLBody  string
}

// Mailer sends email through the host platform's transport.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
