package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"careops/internal/auth"
	"careops/internal/models"
	"careops/internal/notify"
	"careops/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ListConversations returns the workspace's inbox, most recent activity first
func (h *Handler) ListConversations(c *gin.Context) {
	m := membership(c)
	status := models.ConversationStatus(strings.ToLower(c.Query("status")))
	switch status {
	case "", models.ConversationOpen, models.ConversationClosed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be open or closed"})
		return
	}

	convs, err := h.Store.Conversations(c.Request.Context(), m.Workspace.ID, status)
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to fetch conversations", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversations": convs,
		"count":         len(convs),
	})
}

// workspaceConversation loads :conversation_id and checks it belongs to the workspace
func (h *Handler) workspaceConversation(c *gin.Context, workspaceID uuid.UUID) (*models.Conversation, bool) {
	convID, ok := uuidParam(c, "conversation_id")
	if !ok {
		return nil, false
	}
	conv, err := h.Store.Conversation(c.Request.Context(), convID)
	if err == nil && conv.WorkspaceID != workspaceID {
		err = store.ErrNotFound
	}
	if err != nil {
		h.storeError(c, "Conversation", err)
		return nil, false
	}
	return conv, true
}

// GetMessages returns a page of a conversation's messages, newest first
func (h *Handler) GetMessages(c *gin.Context) {
	m := membership(c)
	conv, ok := h.workspaceConversation(c, m.Workspace.ID)
	if !ok {
		return
	}

	// Get pagination parameters
	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	var before time.Time
	if beforeStr := c.Query("before"); beforeStr != "" {
		parsed, err := time.Parse(time.RFC3339Nano, beforeStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "before must be an RFC 3339 timestamp"})
			return
		}
		before = parsed
	}

	messages, err := h.Store.Messages(c.Request.Context(), conv.ID, limit, before)
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to fetch messages", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation": conv,
		"messages":     messages,
		"count":        len(messages),
	})
}

// SendMessage stores a staff reply and delivers it to the contact. The
// reply pauses automation for the conversation even when delivery fails.
func (h *Handler) SendMessage(c *gin.Context) {
	m := membership(c)
	conv, ok := h.workspaceConversation(c, m.Workspace.ID)
	if !ok {
		return
	}
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message cannot be empty"})
		return
	}

	ctx := c.Request.Context()
	contact, err := h.Store.Contact(ctx, conv.ContactID)
	if err != nil {
		h.storeError(c, "Contact", err)
		return
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		SenderType:     models.SenderStaff,
		Content:        content,
		Channel:        "internal",
		Delivery:       "unreachable",
	}
	if userID, ok := auth.UserID(c); ok {
		msg.SenderID = &userID
	}

	n := h.Notifiers.For(ctx, m.Workspace.ID)
	var result *notify.Result
	if to, ok := n.ResolveRecipient(notify.ContactTarget(contact)); ok {
		res := n.Send(ctx, to, notify.Reply(&m.Workspace, contact, content))
		if !res.OK() {
			h.Log.Warn().Str("conversation_id", conv.ID.String()).Str("reason", res.Reason).Msg("reply not delivered")
		}
		msg.Channel = string(n.Channel())
		msg.Delivery = string(res.Status)
		result = &res
	}

	updated, err := h.Store.AddMessage(ctx, msg)
	if err != nil {
		h.storeError(c, "Conversation", err)
		return
	}
	h.LogActivity(c, m.Workspace.ID, "message_sent", "conversation", conv.ID, map[string]interface{}{
		"channel":  msg.Channel,
		"delivery": msg.Delivery,
	})
	c.JSON(http.StatusCreated, gin.H{
		"message":      msg,
		"conversation": updated,
		"notification": result,
	})
}

// UpdateConversation closes, reopens or resumes automation on a thread
func (h *Handler) UpdateConversation(c *gin.Context) {
	m := membership(c)
	convID, ok := uuidParam(c, "conversation_id")
	if !ok {
		return
	}
	var req models.UpdateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	conv, err := h.Store.UpdateConversation(c.Request.Context(), m.Workspace.ID, convID, req)
	if err != nil {
		h.storeError(c, "Conversation", err)
		return
	}
	c.JSON(http.StatusOK, conv)
}
