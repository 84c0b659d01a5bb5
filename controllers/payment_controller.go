package controllers

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/atlasedge/atlasedge-api/config"
	"github.com/atlasedge/atlasedge-api/models"
	"github.com/atlasedge/atlasedge-api/services"
)

// CreatePaymentIntentRequest represents the request body for starting a payment
type CreatePaymentIntentRequest struct {
	OrderID uint `json:"order_id" binding:"required"`
}

// ConfirmPaymentRequest represents the request body for confirming a payment
type ConfirmPaymentRequest struct {
	OrderID         uint   `json:"order_id" binding:"required"`
	PaymentIntentID string `json:"payment_intent_id" binding:"required"`
}

// ProcessPaymentRequest represents the request body for a direct charge
type ProcessPaymentRequest struct {
	OrderID         uint   `json:"order_id" binding:"required"`
	PaymentMethodID string `json:"payment_method_id" binding:"required"`
}

// CreatePaymentIntent handles POST /api/v1/payments/create-payment-intent -
// creates a processor charge intent for a pending order and stores the intent
// id on the order
func CreatePaymentIntent(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreatePaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	order, found := loadPayableOrder(c, user, req.OrderID)
	if !found {
		return
	}

	intent, err := services.GetPaymentService().CreateIntent(
		minorUnits(order.TotalAmount),
		strings.ToLower(order.Pricing.Currency),
		order.OrderNumber,
	)
	if err != nil {
		respondPaymentError(c, err)
		return
	}

	db := config.GetDB()
	if err := db.Model(order).Updates(map[string]interface{}{
		"payment_intent_id": intent.ID,
		"payment_status":    models.PaymentStatusProcessing,
	}).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to record payment intent")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"payment_intent_id": intent.ID,
			"client_secret":     intent.ClientSecret,
		},
	})
}

// ConfirmPayment handles POST /api/v1/payments/confirm-payment - re-queries
// the processor and, only if the intent succeeded, advances the order to
// payment_confirmed
func ConfirmPayment(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	order, found := loadPayableOrder(c, user, req.OrderID)
	if !found {
		return
	}

	intent, err := services.GetPaymentService().GetIntent(req.PaymentIntentID)
	if err != nil {
		respondPaymentError(c, err)
		return
	}

	if intent.Status != services.PaymentIntentSucceeded {
		respondError(c, http.StatusBadRequest, "INVALID_STATE", "Payment has not succeeded")
		return
	}

	if err := confirmOrderPayment(order, intent.ID); err != nil {
		if errors.Is(err, errStatusConflict) {
			respondError(c, http.StatusConflict, "CONFLICT", "Order status changed concurrently; please retry")
			return
		}
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to confirm payment")
		return
	}

	respondWithOrder(c, order.ID)
}

// ProcessPayment handles POST /api/v1/payments/process - the synchronous
// create-and-confirm charge. The processor response branches three ways:
// success, requires-additional-action, and failure. All three stay distinct.
func ProcessPayment(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	order, found := loadPayableOrder(c, user, req.OrderID)
	if !found {
		return
	}

	intent, err := services.GetPaymentService().CreateAndConfirm(
		minorUnits(order.TotalAmount),
		strings.ToLower(order.Pricing.Currency),
		order.OrderNumber,
		req.PaymentMethodID,
	)
	if err != nil {
		respondPaymentError(c, err)
		return
	}

	switch intent.Status {
	case services.PaymentIntentSucceeded:
		if err := confirmOrderPayment(order, intent.ID); err != nil {
			if errors.Is(err, errStatusConflict) {
				respondError(c, http.StatusConflict, "CONFLICT", "Order status changed concurrently; please retry")
				return
			}
			respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to record payment")
			return
		}

		db := config.GetDB()
		var updated models.Order
		if err := db.Preload("Client").Preload("Service").First(&updated, order.ID).Error; err != nil {
			respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load order details")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"order": updated,
				"payment_intent": gin.H{
					"id":     intent.ID,
					"status": intent.Status,
				},
			},
		})

	case services.PaymentIntentRequiresAction:
		// Step-up authentication: hand the continuation token back to the
		// client. The order is left untouched.
		c.JSON(http.StatusOK, gin.H{
			"success":         false,
			"requires_action": true,
			"payment_intent": gin.H{
				"id":            intent.ID,
				"client_secret": intent.ClientSecret,
				"status":        intent.Status,
			},
		})

	default:
		// Declined or otherwise unusable; the order stays unchanged
		respondError(c, http.StatusBadRequest, "PAYMENT_ERROR", "Payment was not completed by the processor")
	}
}

// loadPayableOrder fetches the caller's order and checks it is still payable.
// Only pending orders owned by the requesting client can be charged.
func loadPayableOrder(c *gin.Context, user *models.User, orderID uint) (*models.Order, bool) {
	db := config.GetDB()

	var order models.Order
	if err := db.Where("client_id = ?", user.ID).First(&order, orderID).Error; err != nil {
		respondError(c, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return nil, false
	}

	if order.Status != models.OrderStatusPending {
		respondError(c, http.StatusBadRequest, "INVALID_STATE", "Order is not awaiting payment")
		return nil, false
	}

	return &order, true
}

// confirmOrderPayment advances a pending order to payment_confirmed and
// records the transaction, appending a communication entry in the same
// transaction. A lost race returns errStatusConflict.
func confirmOrderPayment(order *models.Order, transactionID string) error {
	db := config.GetDB()
	now := time.Now()

	return db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, models.OrderStatusPending).
			Updates(map[string]interface{}{
				"status":                 models.OrderStatusPaymentConfirmed,
				"payment_status":         models.PaymentStatusCompleted,
				"payment_transaction_id": transactionID,
				"payment_intent_id":      transactionID,
				"payment_paid_at":        now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errStatusConflict
		}

		message := models.Message{
			OrderID:  &order.ID,
			SenderID: order.ClientID,
			Text:     "Payment received; order is awaiting review.",
		}
		return tx.Create(&message).Error
	})
}

// respondPaymentError maps processor failures to the error envelope without
// leaking raw processor internals
func respondPaymentError(c *gin.Context, err error) {
	var paymentErr *services.PaymentError
	if errors.As(err, &paymentErr) {
		respondError(c, http.StatusBadRequest, "PAYMENT_ERROR", paymentErr.Message)
		return
	}
	respondError(c, http.StatusInternalServerError, "PAYMENT_ERROR", "Payment processing failed")
}

// minorUnits converts an amount to the processor's minor currency units
func minorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
