package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/atlasedge/atlasedge-api/config"
	"github.com/atlasedge/atlasedge-api/models"
)

// CreateChatRequest represents the request body for opening a chat thread
type CreateChatRequest struct {
	Subject string `json:"subject" binding:"required,min=3,max=200"`
	OrderID *uint  `json:"order_id"`
	QuoteID *uint  `json:"quote_id"`
}

// SendChatMessageRequest represents the request body for a chat message
type SendChatMessageRequest struct {
	Text string `json:"text" binding:"required,min=1,max=2000"`
}

// CreateChat handles POST /api/v1/chats - opens a chat thread, optionally
// linked to one of the caller's orders or quotes
func CreateChat(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if user.Role != models.RoleClient {
		respondError(c, http.StatusForbidden, "FORBIDDEN", "Only clients can open chat threads")
		return
	}

	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	db := config.GetDB()

	// Linked records must belong to the caller
	if req.OrderID != nil {
		var order models.Order
		if err := db.Where("client_id = ?", user.ID).First(&order, *req.OrderID).Error; err != nil {
			respondError(c, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
			return
		}
	}
	if req.QuoteID != nil {
		var quote models.Quote
		if err := db.Where("client_id = ?", user.ID).First(&quote, *req.QuoteID).Error; err != nil {
			respondError(c, http.StatusNotFound, "QUOTE_NOT_FOUND", "Quote not found")
			return
		}
	}

	chat := models.Chat{
		ClientID: user.ID,
		OrderID:  req.OrderID,
		QuoteID:  req.QuoteID,
		Subject:  req.Subject,
		IsActive: true,
	}

	if err := db.Create(&chat).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create chat")
		return
	}

	if err := db.Preload("Client").First(&chat, chat.ID).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load chat details")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    chat,
	})
}

// ListChats handles GET /api/v1/chats - clients see their own threads, admins
// see all
func ListChats(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	page, limit, offset := paginationParams(c)

	db := config.GetDB()
	query := db.Model(&models.Chat{})
	if !user.IsAdmin() {
		query = query.Where("client_id = ?", user.ID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to count chats")
		return
	}

	var chats []models.Chat
	if err := query.Preload("Client").
		Order("updated_at DESC").
		Limit(limit).Offset(offset).
		Find(&chats).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to fetch chats")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       chats,
		"pagination": paginationBlock(page, limit, total),
	})
}

// GetChat handles GET /api/v1/chats/:id - fetches a thread with its messages
func GetChat(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	db := config.GetDB()
	query := db.Preload("Client").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Messages.Sender")
	if !user.IsAdmin() {
		query = query.Where("client_id = ?", user.ID)
	}

	var chat models.Chat
	if err := query.First(&chat, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "CHAT_NOT_FOUND", "Chat not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    chat,
	})
}

// SendChatMessage handles POST /api/v1/chats/:id/messages - appends a message
// to a thread; only the owning client and admins may post
func SendChatMessage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	db := config.GetDB()
	var chat models.Chat
	if err := db.First(&chat, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "CHAT_NOT_FOUND", "Chat not found")
		return
	}

	if !user.IsAdmin() && chat.ClientID != user.ID {
		respondError(c, http.StatusForbidden, "FORBIDDEN", "You do not have permission to message in this chat")
		return
	}

	var req SendChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	message := models.Message{
		ChatID:   &chat.ID,
		SenderID: user.ID,
		Text:     req.Text,
	}

	if err := db.Create(&message).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create message")
		return
	}

	if err := db.Preload("Sender").First(&message, message.ID).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load message details")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    message,
	})
}
