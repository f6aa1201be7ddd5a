package api

import (
	"net/http"

	"creditledger/models"
	"creditledger/service"

	"github.com/gin-gonic/gin"
)

type createConversationRequest struct {
	Title  string `json:"title" binding:"required,max=200"`
	Domain string `json:"domain" binding:"max=100"`
}

type recordMessageRequest struct {
	Role       models.MessageRole `json:"role" binding:"required,oneof=user assistant system"`
	Content    string             `json:"content" binding:"required"`
	TokensUsed int                `json:"tokensUsed" binding:"min=0"`
	Cost       int64              `json:"cost" binding:"min=0"`
}

type recordMessageResponse struct {
	Message *models.Message           `json:"message"`
	Charge  *models.CreditTransaction `json:"charge"`
}

// CreateConversation handles POST /internal/users/:userID/conversations
func (h *Handlers) CreateConversation(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "title is required")
		return
	}

	conversation, err := h.Messages.CreateConversation(c.Request.Context(), c.Param("userID"), req.Title, req.Domain)
	if err != nil {
		h.respondError(c, "create_conversation", err)
		return
	}
	c.JSON(http.StatusCreated, conversation)
}

// RecordMessage handles POST /internal/conversations/:conversationID/messages.
// The message is only stored when its cost could be debited.
func (h *Handlers) RecordMessage(c *gin.Context) {
	var req recordMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "role and content are required, cost must not be negative")
		return
	}

	message, charge, err := h.Messages.RecordMessage(c.Request.Context(), service.NewMessage{
		ConversationID: c.Param("conversationID"),
		Role:           req.Role,
		Content:        req.Content,
		TokensUsed:     req.TokensUsed,
		Cost:           req.Cost,
	})
	if err != nil {
		h.respondError(c, "record_message", err)
		return
	}
	c.JSON(http.StatusCreated, recordMessageResponse{Message: message, Charge: charge})
}

// DeleteMessage handles DELETE /internal/messages/:messageID
func (h *Handlers) DeleteMessage(c *gin.Context) {
	if err := h.Messages.DeleteMessage(c.Request.Context(), c.Param("messageID")); err != nil {
		h.respondError(c, "delete_message", err)
		return
	}
	c.Status(http.StatusNoContent)
}
