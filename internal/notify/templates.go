package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"careops/internal/models"
)

const (
	dateLayout = "Monday, January 2, 2006"
	timeLayout = "3:04 PM"
)

var esc = html.EscapeString

func serviceName(st *models.ServiceType) string {
	if st == nil || st.Name == "" {
		return "your appointment"
	}
	return st.Name
}

func localTime(t time.Time, ws *models.Workspace) time.Time {
	if ws == nil {
		return t.UTC()
	}
	return t.In(ws.Location())
}

func businessName(ws *models.Workspace) string {
	if ws == nil || ws.BusinessName == "" {
		return "CareOps"
	}
	return ws.BusinessName
}

// BookingReminder is sent the day before an appointment
func BookingReminder(ws *models.Workspace, c *models.Contact, st *models.ServiceType, b *models.Booking) Message {
	at := localTime(b.ScheduledAt, ws)
	service := serviceName(st)
	biz := businessName(ws)

	plain := fmt.Sprintf("Hi %s, this is a reminder of %s with %s on %s at %s.",
		c.Name, service, biz, at.Format(dateLayout), at.Format(timeLayout))
	if b.Location != "" {
		plain += " Location: " + b.Location + "."
	}
	plain += " See you soon!"

	var chat strings.Builder
	chat.WriteString("<b>Appointment Reminder</b>\n\n")
	fmt.Fprintf(&chat, "Hi %s, reminder for your appointment tomorrow:\n\n", esc(c.Name))
	fmt.Fprintf(&chat, "<b>Service:</b> %s\n<b>Date:</b> %s\n<b>Time:</b> %s\n",
		esc(service), at.Format(dateLayout), at.Format(timeLayout))
	if b.Location != "" {
		fmt.Fprintf(&chat, "<b>Location:</b> %s\n", esc(b.Location))
	}
	chat.WriteString("\nSee you soon!")

	return Message{
		Subject: fmt.Sprintf("Reminder: %s tomorrow at %s", service, at.Format(timeLayout)),
		Plain:   plain,
		HTML: fmt.Sprintf("<p>Hi %s,</p><p>This is a reminder of <strong>%s</strong> with %s on %s at %s.</p>%s<p>See you soon!</p>",
			esc(c.Name), esc(service), esc(biz), at.Format(dateLayout), at.Format(timeLayout), locationHTML(b.Location)),
		Chat: chat.String(),
	}
}

// BookingConfirmation is sent when a booking is created
func BookingConfirmation(ws *models.Workspace, c *models.Contact, st *models.ServiceType, b *models.Booking) Message {
	at := localTime(b.ScheduledAt, ws)
	service := serviceName(st)
	biz := businessName(ws)

	return Message{
		Subject: fmt.Sprintf("Booking confirmed - %s", biz),
		Plain: fmt.Sprintf("Hi %s, your booking for %s on %s at %s is confirmed. Please arrive 10 minutes early.",
			c.Name, service, at.Format(dateLayout), at.Format(timeLayout)),
		HTML: fmt.Sprintf("<p>Hi %s,</p><p>Your booking for <strong>%s</strong> on %s at %s is confirmed.</p>%s<p>Please arrive 10 minutes early.</p>",
			esc(c.Name), esc(service), at.Format(dateLayout), at.Format(timeLayout), locationHTML(b.Location)),
		Chat: fmt.Sprintf("<b>Booking Confirmed - %s</b>\n\nHi %s! Your appointment is confirmed:\n\n<b>Service:</b> %s\n<b>Date:</b> %s\n<b>Time:</b> %s\n\nPlease arrive 10 minutes early.",
			esc(biz), esc(c.Name), esc(service), at.Format(dateLayout), at.Format(timeLayout)),
	}
}

// FormReminder asks a contact to complete a pending intake form
func FormReminder(ws *models.Workspace, c *models.Contact, form *models.PostBookingForm, formURL string) Message {
	name := "your intake form"
	if form != nil && form.Name != "" {
		name = form.Name
	}
	biz := businessName(ws)

	return Message{
		Subject: fmt.Sprintf("Please complete %s", name),
		Plain: fmt.Sprintf("Hi %s, %s is still waiting for %s. Complete it here: %s",
			c.Name, biz, name, formURL),
		HTML: fmt.Sprintf(`<p>Hi %s,</p><p>%s is still waiting for <strong>%s</strong>.</p><p><a href="%s">Complete the form</a></p>`,
			esc(c.Name), esc(biz), esc(name), esc(formURL)),
		Chat: fmt.Sprintf("<b>Form Reminder</b>\n\nHi %s, please complete <b>%s</b> for %s:\n%s",
			esc(c.Name), esc(name), esc(biz), esc(formURL)),
	}
}

// LowStock tells the vendor or admin that an item needs restocking
func LowStock(ws *models.Workspace, item models.InventoryItem) Message {
	biz := businessName(ws)
	return Message{
		Subject: fmt.Sprintf("Low stock: %s", item.Name),
		Plain: fmt.Sprintf("%s is running low on %s: %d %s left (threshold %d). Please arrange a restock.",
			biz, item.Name, item.Quantity, item.Unit, item.LowStockThreshold),
		HTML: fmt.Sprintf("<p>%s is running low on <strong>%s</strong>: %d %s left (threshold %d).</p><p>Please arrange a restock.</p>",
			esc(biz), esc(item.Name), item.Quantity, esc(item.Unit), item.LowStockThreshold),
		Chat: fmt.Sprintf("<b>Low Stock Alert</b>\n\n<b>Item:</b> %s\n<b>Remaining:</b> %d %s\n<b>Threshold:</b> %d",
			esc(item.Name), item.Quantity, esc(item.Unit), item.LowStockThreshold),
	}
}

// Welcome greets a new contact
func Welcome(ws *models.Workspace, c *models.Contact, text string) Message {
	biz := businessName(ws)
	if text == "" {
		text = fmt.Sprintf("Thanks for reaching out to %s. We will get back to you shortly.", biz)
	}
	return Message{
		Subject: fmt.Sprintf("Welcome to %s", biz),
		Plain:   fmt.Sprintf("Hi %s, %s", c.Name, text),
		HTML:    fmt.Sprintf("<p>Hi %s,</p><p>%s</p>", esc(c.Name), esc(text)),
		Chat:    fmt.Sprintf("Hi %s, %s", esc(c.Name), esc(text)),
	}
}

// Reply carries a staff member's inbox reply to a contact
func Reply(ws *models.Workspace, c *models.Contact, text string) Message {
	biz := businessName(ws)
	return Message{
		Subject: fmt.Sprintf("New message from %s", biz),
		Plain:   fmt.Sprintf("Hi %s, %s", c.Name, text),
		HTML:    fmt.Sprintf("<p>Hi %s,</p><p>%s</p><p>%s</p>", esc(c.Name), esc(text), esc(biz)),
		Chat:    fmt.Sprintf("<b>%s</b>\n\n%s", esc(biz), esc(text)),
	}
}

// Test is sent from the notification settings page
func Test(ws *models.Workspace) Message {
	biz := businessName(ws)
	return Message{
		Subject: fmt.Sprintf("%s test notification", biz),
		Plain:   fmt.Sprintf("Notifications for %s are working.", biz),
		HTML:    fmt.Sprintf("<p>Notifications for <strong>%s</strong> are working.</p>", esc(biz)),
		Chat:    fmt.Sprintf("<b>Test</b>\n\nNotifications for %s are working.", esc(biz)),
	}
}

func locationHTML(loc string) string {
	if loc == "" {
		return ""
	}
	return fmt.Sprintf("<p>Location: %s</p>", esc(loc))
}
