package handlers

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"careops/internal/notify"
	"careops/internal/scheduler"

	"github.com/gin-gonic/gin"
	tele "gopkg.in/telebot.v4"
)

// NotificationStatus describes the notifier the workspace resolves to
func (h *Handler) NotificationStatus(c *gin.Context) {
	m := membership(c)
	c.JSON(http.StatusOK, h.Notifiers.For(c.Request.Context(), m.Workspace.ID).Describe())
}

// TestNotification sends a test message to the workspace's staff
// address on its current channel
func (h *Handler) TestNotification(c *gin.Context) {
	m := membership(c)
	var req struct {
		Email string `json:"email" binding:"omitempty,email"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}
	email := req.Email
	if email == "" {
		email = m.Workspace.ContactEmail
	}

	n := h.Notifiers.For(c.Request.Context(), m.Workspace.ID)
	to, ok := n.ResolveRecipient(notify.Target{Role: notify.RoleStaff, Name: m.Workspace.BusinessName, Email: email})
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   fmt.Sprintf("No %s recipient configured for this workspace", n.Channel()),
			"channel": n.Channel(),
		})
		return
	}
	res := n.Send(c.Request.Context(), to, notify.Test(&m.Workspace))
	status := http.StatusOK
	if !res.OK() {
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"result": res, "notifier": n.Describe(), "recipient": to})
}

// TelegramWebhook answers any message sent to the bot with the chat id,
// which owners paste into the Telegram settings
func (h *Handler) TelegramWebhook(c *gin.Context) {
	if h.TelegramWebhookSecret != "" {
		got := c.GetHeader("X-Telegram-Bot-Api-Secret-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.TelegramWebhookSecret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook secret"})
			return
		}
	}
	var upd tele.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		bindError(c, err)
		return
	}
	// Telegram retries non-2xx responses, so anything unusable is acknowledged
	if upd.Message == nil || upd.Message.Chat == nil || h.Telegram == nil {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	chatID := upd.Message.Chat.ID
	text := fmt.Sprintf("Your chat id is %d. Enter it in your workspace's Telegram settings to receive notifications here.", chatID)
	if strings.HasPrefix(upd.Message.Text, "/start") {
		text = "Welcome! " + text
	}
	if err := h.Telegram.Reply(c.Request.Context(), chatID, text); err != nil {
		h.Log.Warn().Err(err).Int64("chat_id", chatID).Msg("failed to reply to telegram message")
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "chat_id": chatID})
}

// ListJobs returns the scheduled jobs with their next and previous runs
func (h *Handler) ListJobs(c *gin.Context) {
	if h.Scheduler == nil {
		c.JSON(http.StatusOK, []scheduler.Info{})
		return
	}
	c.JSON(http.StatusOK, h.Scheduler.Jobs())
}

// RunJob runs a job immediately and waits for it to finish
func (h *Handler) RunJob(c *gin.Context) {
	if h.Scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler is disabled"})
		return
	}
	name := c.Param("name")
	err := h.Scheduler.RunNow(c.Request.Context(), name)
	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown job"})
	case errors.Is(err, scheduler.ErrJobRunning):
		c.JSON(http.StatusConflict, gin.H{"error": "Job is already running"})
	case err != nil:
		h.handleError(c, http.StatusInternalServerError, "Job failed", err)
	default:
		c.JSON(http.StatusOK, gin.H{"job": name, "status": "completed"})
	}
}
