package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Fallback logs messages instead of delivering them and reports a
// simulated success
type Fallback struct {
	reason string
	log    zerolog.Logger
}

// NewFallback creates the demo-mode notifier
func NewFallback(reason string, log zerolog.Logger) *Fallback {
	return &Fallback{reason: reason, log: log.With().Str("channel", string(ChannelLog)).Logger()}
}

func (f *Fallback) Channel() Channel { return ChannelLog }

// ResolveRecipient accepts anything with an email or chat address
func (f *Fallback) ResolveRecipient(t Target) (Recipient, bool) {
	if r, ok := resolveEmail(t); ok {
		r.Channel = ChannelLog
		return r, true
	}
	if id, ok := ChatID(t); ok {
		return Recipient{Channel: ChannelLog, Name: t.Name, Address: id}, true
	}
	return Recipient{}, false
}

func (f *Fallback) Send(ctx context.Context, to Recipient, msg Message) Result {
	f.log.Info().
		Str("to", to.Address).
		Str("subject", msg.Subject).
		Str("reason", f.reason).
		Msg("demo mode: notification not delivered")
	return simulated(f.reason)
}

func (f *Fallback) Describe() Description {
	return Description{Channel: ChannelLog, Provider: "log", Demo: true, Source: "fallback"}
}
