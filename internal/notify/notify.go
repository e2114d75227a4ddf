// Package notify wraps the external notification transports behind one
// uniform contract. Each sender makes a single attempt per alert; retries
// and backoff are deliberately absent.
package notify

import "context"

// Channel names used in outcomes, logs, and metrics
const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
	ChannelChat  = "chat"
	ChannelPush  = "push"
)

// Sender delivers one message to one destination over one transport.
// Implementations must always return, success or error, within the
// deadline of the passed context.
type Sender interface {
	Name() string
	Send(ctx context.Context, destination, message string) error
}

// MulticastResult summarizes a best-effort push fan-out
type MulticastResult struct {
	Success int
	Failure int
}

// Multicaster delivers a notification to many device tokens at once.
// An empty token list is a legitimate no-op success.
type Multicaster interface {
	SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) (MulticastResult, error)
}
