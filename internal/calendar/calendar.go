// Package calendar mirrors bookings into a workspace's Google Calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"careops/internal/models"
	"careops/internal/secrets"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Integration config keys
const (
	KeyRefreshToken = "refresh_token" // sealed
	KeyCalendarID   = "calendar_id"
)

var ErrNotConfigured = errors.New("google calendar is not configured")

// Client talks to the Google Calendar API on behalf of workspaces
type Client struct {
	oauth *oauth2.Config
	box   *secrets.Box
	log   zerolog.Logger
}

// New creates a client. It returns nil when no OAuth client is configured.
func New(clientID, clientSecret, redirectURL string, box *secrets.Box, log zerolog.Logger) *Client {
	if clientID == "" || clientSecret == "" {
		return nil
	}
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{gcal.CalendarEventsScope},
			Endpoint:     google.Endpoint,
		},
		box: box,
		log: log,
	}
}

// AuthURL returns the consent URL for connecting a calendar
func (c *Client) AuthURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange trades an authorization code for integration config with a
// sealed refresh token
func (c *Client) Exchange(ctx context.Context, code string) (map[string]interface{}, error) {
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}
	if token.RefreshToken == "" {
		return nil, errors.New("google did not return a refresh token")
	}
	sealed, err := c.box.Seal(token.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
	}
	return map[string]interface{}{KeyRefreshToken: sealed, KeyCalendarID: "primary"}, nil
}

// CreateEvent inserts the booking into the integration's calendar and
// returns the event ID
func (c *Client) CreateEvent(ctx context.Context, in models.Integration, ws *models.Workspace, b *models.Booking, st *models.ServiceType, contact *models.Contact) (string, error) {
	if c == nil {
		return "", ErrNotConfigured
	}
	refresh, err := c.box.Open(in.ConfigString(KeyRefreshToken))
	if err != nil {
		return "", fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	if refresh == "" {
		return "", ErrNotConfigured
	}

	ts := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refresh})
	srv, err := gcal.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return "", fmt.Errorf("failed to create calendar service: %w", err)
	}

	calendarID := in.ConfigString(KeyCalendarID)
	if calendarID == "" {
		calendarID = "primary"
	}
	ev, err := srv.Events.Insert(calendarID, BuildEvent(ws, b, st, contact)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to insert event: %w", err)
	}
	c.log.Debug().Str("event_id", ev.Id).Str("booking_id", b.ID.String()).Msg("calendar event created")
	return ev.Id, nil
}

// BuildEvent converts a booking into a calendar event
func BuildEvent(ws *models.Workspace, b *models.Booking, st *models.ServiceType, contact *models.Contact) *gcal.Event {
	tz := "UTC"
	if ws != nil && ws.Timezone != "" {
		tz = ws.Timezone
	}
	summary := "Appointment"
	if st != nil && st.Name != "" {
		summary = st.Name
	}

	var desc []string
	ev := &gcal.Event{
		Location: b.Location,
		Start:    &gcal.EventDateTime{DateTime: b.ScheduledAt.Format("2006-01-02T15:04:05Z07:00"), TimeZone: tz},
		End:      &gcal.EventDateTime{DateTime: b.EndTime.Format("2006-01-02T15:04:05Z07:00"), TimeZone: tz},
	}
	if contact != nil {
		summary += " - " + contact.Name
		desc = append(desc, "Contact: "+contact.Name)
		if contact.Email != "" {
			desc = append(desc, "Email: "+contact.Email)
			ev.Attendees = []*gcal.EventAttendee{{Email: contact.Email, DisplayName: contact.Name}}
		}
		if contact.Phone != "" {
			desc = append(desc, "Phone: "+contact.Phone)
		}
	}
	if b.Notes != "" {
		desc = append(desc, "Notes: "+b.Notes)
	}
	ev.Summary = summary
	ev.Description = strings.Join(desc, "\n")
	return ev
}
