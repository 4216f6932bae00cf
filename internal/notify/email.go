package notify

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// mailSender is the part of *sendgrid.Client the notifier uses
type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// EmailNotifier sends through SendGrid
type EmailNotifier struct {
	client    mailSender
	fromEmail string
	fromName  string
	source    string
	log       zerolog.Logger
}

// NewEmailNotifier creates a SendGrid notifier for the given API key
func NewEmailNotifier(apiKey, fromEmail, fromName string, log zerolog.Logger) *EmailNotifier {
	return newEmailNotifier(sendgrid.NewSendClient(apiKey), fromEmail, fromName, log)
}

func newEmailNotifier(client mailSender, fromEmail, fromName string, log zerolog.Logger) *EmailNotifier {
	return &EmailNotifier{
		client:    client,
		fromEmail: fromEmail,
		fromName:  fromName,
		source:    "default",
		log:       log.With().Str("channel", string(ChannelEmail)).Logger(),
	}
}

func (n *EmailNotifier) Channel() Channel { return ChannelEmail }

func (n *EmailNotifier) ResolveRecipient(t Target) (Recipient, bool) {
	return resolveEmail(t)
}

func (n *EmailNotifier) Send(ctx context.Context, to Recipient, msg Message) Result {
	if to.Address == "" {
		return failed("empty email address")
	}

	from := mail.NewEmail(n.fromName, n.fromEmail)
	rcpt := mail.NewEmail(to.Name, to.Address)
	message := mail.NewSingleEmail(from, msg.Subject, rcpt, msg.Plain, msg.HTML)

	response, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		n.log.Warn().Err(err).Str("to", to.Address).Msg("email send failed")
		return failed("sendgrid: %v", err)
	}
	if response.StatusCode >= 400 {
		n.log.Warn().Int("status", response.StatusCode).Str("to", to.Address).Str("body", response.Body).Msg("email rejected")
		return failed("sendgrid returned status %d", response.StatusCode)
	}

	n.log.Debug().Str("to", to.Address).Str("subject", msg.Subject).Msg("email sent")
	return sent()
}

func (n *EmailNotifier) Describe() Description {
	return Description{
		Channel:    ChannelEmail,
		Provider:   "sendgrid",
		Configured: true,
		Sender:     n.fromEmail,
		Source:     n.source,
	}
}
