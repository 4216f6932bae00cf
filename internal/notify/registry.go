package notify

import (
	"context"

	"careops/internal/models"
	"careops/internal/secrets"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
)

// Integration config keys
const (
	KeySendGridAPIKey = "sendgrid_api_key" // sealed
	KeyFromEmail      = "from_email"
	KeyFromName       = "from_name"
	KeyTelegramChatID = "telegram_chat_id"
)

// IntegrationSource loads a workspace's active integrations
type IntegrationSource interface {
	ActiveIntegrations(ctx context.Context, workspaceID uuid.UUID) ([]models.Integration, error)
}

// Defaults are the process-wide transports used when a workspace has
// not connected its own
type Defaults struct {
	SendGridAPIKey string
	FromEmail      string
	FromName       string
	Telegram       *TelegramBot
	AdminChatID    string
}

// Registry picks the notifier for a workspace. Workspace integrations
// win over process defaults, channels are tried in the configured order,
// and the Fallback notifier is used when nothing is configured.
type Registry struct {
	integrations IntegrationSource
	box          *secrets.Box
	channels     []Channel
	defaults     Defaults
	log          zerolog.Logger

	newMailer func(apiKey string) mailSender
}

// NewRegistry creates a registry. channels lists "email" and "telegram"
// in order of preference.
func NewRegistry(integrations IntegrationSource, box *secrets.Box, channels []string, defaults Defaults, log zerolog.Logger) *Registry {
	r := &Registry{
		integrations: integrations,
		box:          box,
		defaults:     defaults,
		log:          log,
		newMailer: func(apiKey string) mailSender {
			return sendgrid.NewSendClient(apiKey)
		},
	}
	for _, ch := range channels {
		r.channels = append(r.channels, Channel(ch))
	}
	if len(r.channels) == 0 {
		r.channels = []Channel{ChannelEmail, ChannelTelegram}
	}
	return r
}

// For resolves the notifier for a workspace. It never fails: lookup
// errors are logged and the next option is tried.
func (r *Registry) For(ctx context.Context, workspaceID uuid.UUID) Notifier {
	log := r.log.With().Str("workspace_id", workspaceID.String()).Logger()

	integrations, err := r.integrations.ActiveIntegrations(ctx, workspaceID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load integrations, using defaults")
	}

	for _, ch := range r.channels {
		if n := r.fromIntegrations(ch, integrations, log); n != nil {
			return n
		}
	}
	for _, ch := range r.channels {
		if n := r.fromDefaults(ch, log); n != nil {
			return n
		}
	}
	return NewFallback("no notification transport configured", log)
}

func (r *Registry) fromIntegrations(ch Channel, integrations []models.Integration, log zerolog.Logger) Notifier {
	for _, in := range integrations {
		switch {
		case ch == ChannelEmail && in.Type == models.IntegrationEmail && in.Provider == "sendgrid":
			apiKey, err := r.box.Open(in.ConfigString(KeySendGridAPIKey))
			if err != nil || apiKey == "" {
				log.Warn().Err(err).Str("integration_id", in.ID.String()).Msg("unusable sendgrid integration")
				continue
			}
			fromEmail := in.ConfigString(KeyFromEmail)
			if fromEmail == "" {
				fromEmail = r.defaults.FromEmail
			}
			fromName := in.ConfigString(KeyFromName)
			if fromName == "" {
				fromName = r.defaults.FromName
			}
			n := newEmailNotifier(r.newMailer(apiKey), fromEmail, fromName, log)
			n.source = "workspace"
			return n

		case ch == ChannelTelegram && in.Type == models.IntegrationSMS && in.Provider == "telegram":
			if r.defaults.Telegram == nil {
				continue
			}
			chat := in.ConfigString(KeyTelegramChatID)
			if chat == "" {
				continue
			}
			return r.defaults.Telegram.Notifier(chat, "workspace", log)
		}
	}
	return nil
}

func (r *Registry) fromDefaults(ch Channel, log zerolog.Logger) Notifier {
	switch ch {
	case ChannelEmail:
		if r.defaults.SendGridAPIKey != "" && r.defaults.FromEmail != "" {
			return newEmailNotifier(r.newMailer(r.defaults.SendGridAPIKey), r.defaults.FromEmail, r.defaults.FromName, log)
		}
	case ChannelTelegram:
		if r.defaults.Telegram != nil {
			return r.defaults.Telegram.Notifier(r.defaults.AdminChatID, "default", log)
		}
	}
	return nil
}
