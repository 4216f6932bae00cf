// Package notify delivers customer and staff notifications over email
// (SendGrid) or Telegram, and degrades to a logging notifier when a
// workspace has no transport configured.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"careops/internal/models"
)

// Channel names a delivery transport
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelTelegram Channel = "telegram"
	ChannelLog      Channel = "log"
)

// Status is the outcome of a send
type Status string

const (
	StatusSent      Status = "sent"
	StatusSimulated Status = "simulated"
	StatusFailed    Status = "failed"
)

// Result is returned by every Send. Transports never panic or return
// errors across the Notifier boundary.
type Result struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
	// Demo is set when nothing left the process. Callers treat it as
	// success, so a deployment without credentials marks reminders sent
	// without delivering them.
	Demo bool `json:"demo"`
}

// OK reports whether the caller should treat the send as delivered
func (r Result) OK() bool {
	return r.Status == StatusSent || r.Status == StatusSimulated
}

func sent() Result {
	return Result{Status: StatusSent}
}

func simulated(reason string) Result {
	return Result{Status: StatusSimulated, Reason: reason, Demo: true}
}

func failed(format string, args ...interface{}) Result {
	return Result{Status: StatusFailed, Reason: fmt.Sprintf(format, args...)}
}

// Role says who a message is for
type Role int

const (
	RoleCustomer Role = iota
	RoleStaff
)

// Target is an unresolved notification target
type Target struct {
	Role     Role
	Name     string
	Email    string
	Phone    string
	Metadata map[string]interface{}
}

// ContactTarget builds a customer target from a contact record
func ContactTarget(c *models.Contact) Target {
	return Target{
		Role:     RoleCustomer,
		Name:     c.Name,
		Email:    c.Email,
		Phone:    c.Phone,
		Metadata: c.Metadata,
	}
}

// VendorTarget builds a staff-side target for an item's vendor
func VendorTarget(item models.InventoryItem, ws *models.Workspace) Target {
	name := "Vendor"
	if ws != nil && ws.BusinessName != "" {
		name = ws.BusinessName + " supplier"
	}
	return Target{Role: RoleStaff, Name: name, Email: item.VendorEmail}
}

// Recipient is a channel-specific address
type Recipient struct {
	Channel Channel `json:"channel"`
	Name    string  `json:"name"`
	Address string  `json:"address"`
}

// Message carries the rendered content for every channel
type Message struct {
	Subject string
	Plain   string
	HTML    string
	// Chat is Telegram HTML; Plain is used when empty
	Chat string
}

// Description summarizes a notifier's configuration for the dashboard
type Description struct {
	Channel    Channel `json:"channel"`
	Provider   string  `json:"provider"`
	Configured bool    `json:"configured"`
	Demo       bool    `json:"demo_mode"`
	Sender     string  `json:"sender,omitempty"`
	Source     string  `json:"source"` // workspace, default or fallback
}

// Notifier is a resolved delivery transport for one workspace
type Notifier interface {
	Channel() Channel
	// ResolveRecipient maps a target onto this channel's address space.
	// It returns false when the target cannot be reached here.
	ResolveRecipient(t Target) (Recipient, bool)
	Send(ctx context.Context, to Recipient, msg Message) Result
	Describe() Description
}

func resolveEmail(t Target) (Recipient, bool) {
	email := strings.TrimSpace(t.Email)
	if email == "" || !strings.Contains(email, "@") {
		return Recipient{}, false
	}
	return Recipient{Channel: ChannelEmail, Name: t.Name, Address: email}, true
}

// ChatID extracts a Telegram chat id from a target: the telegram_chat_id
// metadata key first, then a "telegram:" prefixed phone, then a phone
// made of at least nine digits.
func ChatID(t Target) (string, bool) {
	if v, ok := t.Metadata["telegram_chat_id"]; ok {
		switch id := v.(type) {
		case string:
			if id = strings.TrimSpace(id); id != "" {
				return id, true
			}
		case float64:
			return strconv.FormatInt(int64(id), 10), true
		case int64:
			return strconv.FormatInt(id, 10), true
		case int:
			return strconv.Itoa(id), true
		}
	}

	phone := strings.TrimSpace(t.Phone)
	if rest, ok := strings.CutPrefix(phone, "telegram:"); ok {
		rest = strings.TrimSpace(rest)
		return rest, rest != ""
	}
	if len(phone) >= 9 && isDigits(phone) {
		return phone, true
	}
	return "", false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
