package controllers

import (
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/atlasedge/atlasedge-api/config"
	"github.com/atlasedge/atlasedge-api/models"
)

// createAttempts bounds the retry loop for order-number collisions
const createAttempts = 3

// CreateOrderRequest represents the request body for placing an order
type CreateOrderRequest struct {
	ServiceID         uint    `json:"service_id" binding:"required"`
	Quantity          int     `json:"quantity" binding:"required,gt=0"`
	Requirements      string  `json:"requirements" binding:"required,min=10,max=5000"`
	ContactPreference string  `json:"contact_preference" binding:"required,oneof=email phone chat"`
	Timeline          *string `json:"timeline" binding:"omitempty,max=200"`
	AdditionalNotes   *string `json:"additional_notes" binding:"omitempty,max=2000"`
}

// UpdateOrderStatusRequest represents the request body for the generic
// status-update endpoint
type UpdateOrderStatusRequest struct {
	Status string  `json:"status" binding:"required"`
	Notes  *string `json:"notes" binding:"omitempty,max=2000"`
}

// ApproveOrderRequest represents the request body for approving an order
type ApproveOrderRequest struct {
	AdminNotes *string `json:"admin_notes" binding:"omitempty,max=2000"`
}

// RejectOrderRequest represents the request body for rejecting an order
type RejectOrderRequest struct {
	RejectionReason string `json:"rejection_reason" binding:"required,min=10,max=500"`
}

// AssignOrderRequest represents the request body for assigning staff to an order
type AssignOrderRequest struct {
	StaffID uint `json:"staff_id" binding:"required"`
}

// AddCommunicationRequest represents the request body for appending to a
// communication log
type AddCommunicationRequest struct {
	Message    string `json:"message" binding:"required,min=1,max=2000"`
	IsInternal bool   `json:"is_internal"`
}

// CreateOrder handles POST /api/v1/orders - places an order (clients only)
func CreateOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if user.Role != models.RoleClient {
		respondError(c, http.StatusForbidden, "FORBIDDEN", "Only clients can place orders")
		return
	}

	var req CreateOrderRequest
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

	// Quote-priced services go through the quote flow, never a direct order
	if service.IsQuotePriced() {
		respondError(c, http.StatusBadRequest, "INVALID_STATE", "This service requires a quote request instead of a direct order")
		return
	}

	// The pricing breakdown is computed exactly once, here. It is never
	// recomputed on later reads. Tax is invoiced out of band, so the line
	// stays zero and total equals subtotal.
	subtotal := round2(service.Pricing.Amount * float64(req.Quantity))
	tax := 0.0
	total := round2(subtotal + tax)

	order := models.Order{
		ClientID:          user.ID,
		ServiceID:         service.ID,
		Quantity:          req.Quantity,
		TotalAmount:       total,
		Requirements:      req.Requirements,
		Timeline:          req.Timeline,
		ContactPreference: req.ContactPreference,
		AdditionalNotes:   req.AdditionalNotes,
		Status:            models.OrderStatusPending,
		Pricing: models.OrderPricing{
			Subtotal: subtotal,
			Tax:      tax,
			Total:    total,
			Currency: service.Pricing.Currency,
		},
		Payment: models.OrderPayment{
			Status: models.PaymentStatusPending,
		},
	}

	// The generated number is not guaranteed collision-free, so retry the
	// insert on a unique-constraint violation with a fresh number
	var err error
	for attempt := 0; attempt < createAttempts; attempt++ {
		order.OrderNumber = models.GenerateOrderNumber()
		if err = db.Create(&order).Error; err == nil || !isUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create order")
		return
	}

	if err := db.Preload("Client").Preload("Service").First(&order, order.ID).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load order details")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    order,
	})
}

// ListOrders handles GET /api/v1/orders - clients see their own orders,
// admins see all
func ListOrders(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	page, limit, offset := paginationParams(c)

	db := config.GetDB()
	query := db.Model(&models.Order{})

	// Ownership scoping is applied at the query level: clients only ever
	// see rows where client_id matches
	if !user.IsAdmin() {
		query = query.Where("client_id = ?", user.ID)
	}

	if status := c.Query("status"); status != "" {
		if !models.ValidOrderStatus(status) {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown order status filter")
			return
		}
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to count orders")
		return
	}

	var orders []models.Order
	if err := query.Preload("Client").Preload("Service").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&orders).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to fetch orders")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       orders,
		"pagination": paginationBlock(page, limit, total),
	})
}

// GetOrder handles GET /api/v1/orders/:id - fetches one order scoped by ownership
func GetOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	order, found := loadScopedOrder(c, user, id, true)
	if !found {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// ApproveOrder handles PUT /api/v1/orders/:id/approve - admin approval.
// The only guarded transition in the lifecycle: approval requires the order
// to be exactly at payment_confirmed.
func ApproveOrder(c *gin.Context) {
	admin, ok := requireAdmin(c)
	if !ok {
		return
	}

	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req ApproveOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	db := config.GetDB()
	var order models.Order
	if err := db.First(&order, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return
	}

	if order.Status != models.OrderStatusPaymentConfirmed {
		respondError(c, http.StatusBadRequest, "INVALID_STATE",
			fmt.Sprintf("Order cannot be approved from status %q; payment must be confirmed first", order.Status))
		return
	}

	now := time.Now()
	text := "Order approved."
	if req.AdminNotes != nil && *req.AdminNotes != "" {
		text = fmt.Sprintf("Order approved. %s", *req.AdminNotes)
	}

	// Status write and communication append belong together, so both run in
	// one transaction. The status update carries an optimistic WHERE guard;
	// losing the race surfaces as CONFLICT instead of a silent overwrite.
	err := db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, models.OrderStatusPaymentConfirmed).
			Updates(map[string]interface{}{
				"status":         models.OrderStatusApproved,
				"approved_by_id": admin.ID,
				"approved_at":    now,
				"admin_notes":    req.AdminNotes,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errStatusConflict
		}

		message := models.Message{
			OrderID:  &order.ID,
			SenderID: admin.ID,
			Text:     text,
		}
		return tx.Create(&message).Error
	})
	if err == errStatusConflict {
		respondError(c, http.StatusConflict, "CONFLICT", "Order status changed concurrently; please retry")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to approve order")
		return
	}

	respondWithOrder(c, order.ID)
}

// RejectOrder handles PUT /api/v1/orders/:id/reject - admin rejection.
// Unlike approval there is no payment precondition: any order may be rejected
// unless it has already completed or been cancelled.
func RejectOrder(c *gin.Context) {
	admin, ok := requireAdmin(c)
	if !ok {
		return
	}

	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req RejectOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	db := config.GetDB()
	var order models.Order
	if err := db.First(&order, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return
	}

	if order.IsTerminalForRejection() {
		respondError(c, http.StatusBadRequest, "INVALID_STATE",
			fmt.Sprintf("Order cannot be rejected from status %q", order.Status))
		return
	}

	now := time.Now()
	err := db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, order.Status).
			Updates(map[string]interface{}{
				"status":           models.OrderStatusRejected,
				"rejected_by_id":   admin.ID,
				"rejected_at":      now,
				"rejection_reason": req.RejectionReason,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errStatusConflict
		}

		message := models.Message{
			OrderID:  &order.ID,
			SenderID: admin.ID,
			Text:     fmt.Sprintf("Order rejected: %s", req.RejectionReason),
		}
		return tx.Create(&message).Error
	})
	if err == errStatusConflict {
		respondError(c, http.StatusConflict, "CONFLICT", "Order status changed concurrently; please retry")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to reject order")
		return
	}

	respondWithOrder(c, order.ID)
}

// UpdateOrderStatus handles PUT /api/v1/orders/:id/status - the permissive
// admin escape hatch. Any of the nine statuses may be set from any prior
// status; the Approve/Reject preconditions do not apply here.
func UpdateOrderStatus(c *gin.Context) {
	admin, ok := requireAdmin(c)
	if !ok {
		return
	}

	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	if !models.ValidOrderStatus(req.Status) {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown order status")
		return
	}

	db := config.GetDB()
	var order models.Order
	if err := db.First(&order, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return
	}

	updates := map[string]interface{}{
		"status": req.Status,
	}
	if req.Status == models.OrderStatusCompleted {
		updates["completed_at"] = time.Now()
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&order).Updates(updates).Error; err != nil {
			return err
		}

		if req.Notes != nil && *req.Notes != "" {
			message := models.Message{
				OrderID:  &order.ID,
				SenderID: admin.ID,
				Text:     fmt.Sprintf("Status changed to %s: %s", req.Status, *req.Notes),
			}
			return tx.Create(&message).Error
		}
		return nil
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update order status")
		return
	}

	respondWithOrder(c, order.ID)
}

// AssignOrder handles PUT /api/v1/orders/:id/assign - assigns a staff member
func AssignOrder(c *gin.Context) {
	_, ok := requireAdmin(c)
	if !ok {
		return
	}

	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req AssignOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	db := config.GetDB()
	var order models.Order
	if err := db.First(&order, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return
	}

	var staff models.User
	if err := db.Where("role = ?", models.RoleAdmin).First(&staff, req.StaffID).Error; err != nil {
		respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "Staff member not found")
		return
	}

	if err := db.Model(&order).Update("assigned_to_id", staff.ID).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to assign order")
		return
	}

	respondWithOrder(c, order.ID)
}

// AddOrderCommunication handles POST /api/v1/orders/:id/communication -
// appends an entry to the order's communication log
func AddOrderCommunication(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	db := config.GetDB()
	var order models.Order
	if err := db.First(&order, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return
	}

	// Clients may only post on their own orders, and never internal notes
	if !user.IsAdmin() && order.ClientID != user.ID {
		respondError(c, http.StatusForbidden, "FORBIDDEN", "You do not have permission to message on this order")
		return
	}

	var req AddCommunicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	isInternal := req.IsInternal && user.IsAdmin()

	message := models.Message{
		OrderID:    &order.ID,
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

// loadScopedOrder fetches an order applying ownership scoping; clients only
// receive non-internal communication entries. Writes the error response and
// returns found=false when the order is missing or out of scope.
func loadScopedOrder(c *gin.Context, user *models.User, id uint, withCommunication bool) (*models.Order, bool) {
	db := config.GetDB()

	query := db.Preload("Client").Preload("Service").Preload("AssignedTo")
	if withCommunication {
		if user.IsAdmin() {
			query = query.Preload("Communication", func(db *gorm.DB) *gorm.DB {
				return db.Order("created_at ASC")
			})
		} else {
			query = query.Preload("Communication", "is_internal = ?", false)
		}
		query = query.Preload("Communication.Sender")
	}

	if !user.IsAdmin() {
		query = query.Where("client_id = ?", user.ID)
	}

	var order models.Order
	if err := query.First(&order, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return nil, false
	}

	// Defense in depth on top of the query-level scoping
	if !user.IsAdmin() && order.ClientID != user.ID {
		respondError(c, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return nil, false
	}

	return &order, true
}

// respondWithOrder reloads an order with its relations and writes the success envelope
func respondWithOrder(c *gin.Context, id uint) {
	db := config.GetDB()
	var order models.Order
	if err := db.Preload("Client").Preload("Service").Preload("AssignedTo").First(&order, id).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load order details")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// isUniqueViolation detects duplicate-key errors from both PostgreSQL and SQLite
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// errStatusConflict signals a lost optimistic-concurrency race inside a transaction
var errStatusConflict = fmt.Errorf("order status changed concurrently")
