package dispatch

import (
	"log"

	"github.com/tidewatch/tidewatch/internal/database"
)

// Destinations are the configured direct-channel targets for alerts
type Destinations struct {
	SMS   string `yaml:"sms"`
	Email string `yaml:"email"`
	Chat  string `yaml:"chat"`
}

// TokenSource provides device tokens for push fan-out
type TokenSource interface {
	TokensForRole(role database.UserRole) ([]string, error)
}

// Recipients are the concrete destinations one alert goes to
type Recipients struct {
	SMS        string
	Email      string
	Chat       string
	PushTokens []string
}

// Resolver maps an alert to its destinations: the configured SMS/email/chat
// targets plus the device tokens of every citizen. Keeping resolution apart
// from dispatch mechanics lets the destination policy evolve (for example to
// affected-zone lookups) without touching the fan-out.
type Resolver struct {
	dests  Destinations
	tokens TokenSource
}

// NewResolver creates a recipient resolver. tokens may be nil when push
// delivery is not configured.
func NewResolver(dests Destinations, tokens TokenSource) *Resolver {
	return &Resolver{dests: dests, tokens: tokens}
}

// Resolve returns the destinations for an alert about the given report.
// A failing token lookup degrades to no push recipients; the direct
// channels are unaffected.
func (r *Resolver) Resolve(report *database.Report) Recipients {
	rec := Recipients{
		SMS:   r.dests.SMS,
		Email: r.dests.Email,
		Chat:  r.dests.Chat,
	}
	if r.tokens != nil {
		tokens, err := r.tokens.TokensForRole(database.RoleCitizen)
		if err != nil {
			log.Printf("Failed to load citizen device tokens for report %s: %v", report.UUID, err)
		} else {
			rec.PushTokens = tokens
		}
	}
	return rec
}
