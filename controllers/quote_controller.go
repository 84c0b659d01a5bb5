package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/atlasedge/atlasedge-api/config"
	"github.com/atlasedge/atlasedge-api/models"
)

// CreateQuoteRequest represents the request body for requesting a quote
type CreateQuoteRequest struct {
	ServiceID         uint    `json:"service_id" binding:"required"`
	CustomAmount      float64 `json:"custom_amount" binding:"required,gte=1"`
	Requirements      string  `json:"requirements" binding:"required,min=10,max=5000"`
	ContactPreference string  `json:"contact_preference" binding:"required,oneof=email phone chat"`
	Timeline          *string `json:"timeline" binding:"omitempty,max=200"`
	AdditionalNotes   *string `json:"additional_notes" binding:"omitempty,max=2000"`
	Priority          string  `json:"priority" binding:"omitempty,oneof=low normal high urgent"`
}

// RespondQuoteRequest represents the admin response to a quote request
type RespondQuoteRequest struct {
	QuotedAmount float64 `json:"quoted_amount" binding:"required,gte=1"`
	ResponseText string  `json:"response_text" binding:"required,min=1,max=5000"`
	Status       string  `json:"status" binding:"required,oneof=accepted rejected"`
}

// CreateQuote handles POST /api/v1/quotes - requests a quote (clients only)
func CreateQuote(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if user.Role != models.RoleClient {
		respondError(c, http.StatusForbidden, "FORBIDDEN", "Only clients can request quotes")
		return
	}

	var req CreateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	db := config.GetDB()
	var service models.Service
	if err := db.Where("is_active = ?", true).First(&service, req.ServiceID).Error; err != nil {
		respondError(c, http.StatusNotFound, "SERVICE_NOT_FOUND", "Service not found")
		return
	}

	// Fixed/hourly services are ordered directly, never quoted
	if !service.IsQuotePriced() {
		respondError(c, http.StatusBadRequest, "INVALID_STATE", "This service can be ordered directly and does not accept quote requests")
		return
	}

	priority := req.Priority
	if priority == "" {
		priority = models.QuotePriorityNormal
	}

	quote := models.Quote{
		ClientID:          user.ID,
		ServiceID:         service.ID,
		CustomAmount:      req.CustomAmount,
		Requirements:      req.Requirements,
		Timeline:          req.Timeline,
		ContactPreference: req.ContactPreference,
		AdditionalNotes:   req.AdditionalNotes,
		Priority:          priority,
		Status:            models.QuoteStatusPending,
		ExpiresAt:         time.Now().AddDate(0, 0, models.QuoteValidityDays),
	}

	var err error
	for attempt := 0; attempt < createAttempts; attempt++ {
		quote.QuoteNumber = models.GenerateQuoteNumber()
		if err = db.Create(&quote).Error; err == nil || !isUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create quote")
		return
	}

	if err := db.Preload("Client").Preload("Service").First(&quote, quote.ID).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load quote details")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    quote,
	})
}

// ListQuotes handles GET /api/v1/quotes - clients see their own quotes,
// admins see all
func ListQuotes(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	page, limit, offset := paginationParams(c)

	db := config.GetDB()
	query := db.Model(&models.Quote{})

	if !user.IsAdmin() {
		query = query.Where("client_id = ?", user.ID)
	}

	if status := c.Query("status"); status != "" {
		if !models.ValidQuoteStatus(status) {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown quote status filter")
			return
		}
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to count quotes")
		return
	}

	var quotes []models.Quote
	if err := query.Preload("Client").Preload("Service").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&quotes).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to fetch quotes")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       quotes,
		"pagination": paginationBlock(page, limit, total),
	})
}

// GetQuote handles GET /api/v1/quotes/:id - fetches one quote scoped by ownership
func GetQuote(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	quote, found := loadScopedQuote(c, user, id)
	if !found {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    quote,
	})
}

// RespondQuote handles PUT /api/v1/quotes/:id/respond - the admin counter-offer.
// Only pending quotes accept a response; the quoted amount is stored alongside
// the client's original custom amount, never replacing it.
func RespondQuote(c *gin.Context) {
	admin, ok := requireAdmin(c)
	if !ok {
		return
	}

	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req RespondQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	db := config.GetDB()
	var quote models.Quote
	if err := db.First(&quote, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "QUOTE_NOT_FOUND", "Quote not found")
		return
	}

	if quote.Status != models.QuoteStatusPending {
		respondError(c, http.StatusBadRequest, "INVALID_STATE",
			fmt.Sprintf("Quote cannot be responded to from status %q", quote.Status))
		return
	}

	now := time.Now()
	err := db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Quote{}).
			Where("id = ? AND status = ?", quote.ID, models.QuoteStatusPending).
			Updates(map[string]interface{}{
				"status":          req.Status,
				"quoted_amount":   req.QuotedAmount,
				"admin_response":  req.ResponseText,
				"responded_by_id": admin.ID,
				"responded_at":    now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errStatusConflict
		}

		message := models.Message{
			QuoteID:  &quote.ID,
			SenderID: admin.ID,
			Text:     fmt.Sprintf("Quote %s: %s", req.Status, req.ResponseText),
		}
		return tx.Create(&message).Error
	})
	if err == errStatusConflict {
		respondError(c, http.StatusConflict, "CONFLICT", "Quote status changed concurrently; please retry")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to respond to quote")
		return
	}

	respondWithQuote(c, quote.ID)
}

// AcceptQuote handles PUT /api/v1/quotes/:id/accept - the client accepting the
// admin's counter-offer. Requires that an offer exists (status accepted with a
// quoted amount).
func AcceptQuote(c *gin.Context) {
	clientQuoteDecision(c, true)
}

// RejectQuote handles PUT /api/v1/quotes/:id/reject - the client declining.
// Allowed while the quote is pending or carries an open offer.
func RejectQuote(c *gin.Context) {
	clientQuoteDecision(c, false)
}

func clientQuoteDecision(c *gin.Context, accept bool) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if user.Role != models.RoleClient {
		respondError(c, http.StatusForbidden, "FORBIDDEN", "Only the requesting client can decide on a quote")
		return
	}

	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	db := config.GetDB()
	var quote models.Quote
	if err := db.Where("client_id = ?", user.ID).First(&quote, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "QUOTE_NOT_FOUND", "Quote not found")
		return
	}

	now := time.Now()
	var updates map[string]interface{}
	var text string

	if accept {
		if quote.Status != models.QuoteStatusAccepted || quote.QuotedAmount == nil {
			respondError(c, http.StatusBadRequest, "INVALID_STATE", "There is no open offer to accept on this quote")
			return
		}
		updates = map[string]interface{}{
			"client_decided_at": now,
		}
		text = fmt.Sprintf("Client accepted the quoted amount of %.2f.", *quote.QuotedAmount)
	} else {
		if quote.Status == models.QuoteStatusRejected || quote.Status == models.QuoteStatusExpired {
			respondError(c, http.StatusBadRequest, "INVALID_STATE",
				fmt.Sprintf("Quote cannot be declined from status %q", quote.Status))
			return
		}
		updates = map[string]interface{}{
			"status":            models.QuoteStatusRejected,
			"client_decided_at": now,
		}
		text = "Client declined the quote."
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Quote{}).
			Where("id = ? AND status = ?", quote.ID, quote.Status).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errStatusConflict
		}

		message := models.Message{
			QuoteID:  &quote.ID,
			SenderID: user.ID,
			Text:     text,
		}
		return tx.Create(&message).Error
	})
	if err == errStatusConflict {
		respondError(c, http.StatusConflict, "CONFLICT", "Quote status changed concurrently; please retry")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update quote")
		return
	}

	respondWithQuote(c, quote.ID)
}

// AddQuoteCommunication handles POST /api/v1/quotes/:id/communication -
// appends an entry to the quote's communication log
func AddQuoteCommunication(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	db := config.GetDB()
	var quote models.Quote
	if err := db.First(&quote, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "QUOTE_NOT_FOUND", "Quote not found")
		return
	}

	if !user.IsAdmin() && quote.ClientID != user.ID {
		respondError(c, http.StatusForbidden, "FORBIDDEN", "You do not have permission to message on this quote")
		return
	}

	var req AddCommunicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	isInternal := req.IsInternal && user.IsAdmin()

	message := models.Message{
		QuoteID:    &quote.ID,
		SenderID:   user.ID,
		Text:       req.Message,
		IsInternal: isInternal,
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

// loadScopedQuote fetches a quote applying ownership scoping; clients only
// receive non-internal communication entries
func loadScopedQuote(c *gin.Context, user *models.User, id uint) (*models.Quote, bool) {
	db := config.GetDB()

	query := db.Preload("Client").Preload("Service").Preload("Communication.Sender")
	if user.IsAdmin() {
		query = query.Preload("Communication", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		})
	} else {
		query = query.Preload("Communication", "is_internal = ?", false).
			Where("client_id = ?", user.ID)
	}

	var quote models.Quote
	if err := query.First(&quote, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "QUOTE_NOT_FOUND", "Quote not found")
		return nil, false
	}

	if !user.IsAdmin() && quote.ClientID != user.ID {
		respondError(c, http.StatusNotFound, "QUOTE_NOT_FOUND", "Quote not found")
		return nil, false
	}

	return &quote, true
}

// respondWithQuote reloads a quote with its relations and writes the success envelope
func respondWithQuote(c *gin.Context, id uint) {
	db := config.GetDB()
	var quote models.Quote
	if err := db.Preload("Client").Preload("Service").First(&quote, id).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load quote details")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    quote,
	})
}
