package controllers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/atlasedge/atlasedge-api/models"
	"github.com/atlasedge/atlasedge-api/services"
)

func setupPaymentRouter(auth0ID, role string) *gin.Engine {
	router := setupTestRouter()
	auth := mockAuthMiddleware(auth0ID, role, "mock-token")
	router.POST("/payments/create-payment-intent", auth, CreatePaymentIntent)
	router.POST("/payments/confirm-payment", auth, ConfirmPayment)
	router.POST("/payments/process", auth, ProcessPayment)
	return router
}

func TestCreatePaymentIntent(t *testing.T) {
	db := setupTestDB(t)

	client := createTestUser(t, db, models.RoleClient)
	other := createTestUser(t, db, models.RoleClient)
	service := createTestService(t, db, models.PricingTypeFixed, 100)

	t.Run("Create intent for pending order", func(t *testing.T) {
		mock := services.NewMockPaymentService()
		mock.SetAsMockForTesting()

		order := createTestOrder(t, db, client, service, models.OrderStatusPending)
		router := setupPaymentRouter(client.Auth0ID, models.RoleClient)

		w, response := doJSON(t, router, http.MethodPost, "/payments/create-payment-intent",
			map[string]interface{}{"order_id": order.ID})

		assert.Equal(t, http.StatusOK, w.Code)
		data := response["data"].(map[string]interface{})
		assert.Equal(t, "pi_mock_1", data["payment_intent_id"])
		assert.Equal(t, "pi_mock_1_secret", data["client_secret"])

		var reloaded models.Order
		db.First(&reloaded, order.ID)
		assert.Equal(t, "pi_mock_1", *reloaded.Payment.IntentID)
		assert.Equal(t, models.PaymentStatusProcessing, reloaded.Payment.Status)
		// The order status itself does not move until confirmation
		assert.Equal(t, models.OrderStatusPending, reloaded.Status)
	})

	t.Run("Reject non-pending order", func(t *testing.T) {
		services.NewMockPaymentService().SetAsMockForTesting()

		order := createTestOrder(t, db, client, service, models.OrderStatusApproved)
		router := setupPaymentRouter(client.Auth0ID, models.RoleClient)

		w, response := doJSON(t, router, http.MethodPost, "/payments/create-payment-intent",
			map[string]interface{}{"order_id": order.ID})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_STATE", errorCode(response))
	})

	t.Run("Reject someone else's order", func(t *testing.T) {
		services.NewMockPaymentService().SetAsMockForTesting()

		order := createTestOrder(t, db, client, service, models.OrderStatusPending)
		router := setupPaymentRouter(other.Auth0ID, models.RoleClient)

		w, response := doJSON(t, router, http.MethodPost, "/payments/create-payment-intent",
			map[string]interface{}{"order_id": order.ID})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "ORDER_NOT_FOUND", errorCode(response))
	})

	t.Run("Processor failure surfaces as payment error", func(t *testing.T) {
		mock := services.NewMockPaymentService()
		mock.FailWith = &services.PaymentError{Code: "api_error", Message: "Processor unavailable"}
		mock.SetAsMockForTesting()

		order := createTestOrder(t, db, client, service, models.OrderStatusPending)
		router := setupPaymentRouter(client.Auth0ID, models.RoleClient)

		w, response := doJSON(t, router, http.MethodPost, "/payments/create-payment-intent",
			map[string]interface{}{"order_id": order.ID})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "PAYMENT_ERROR", errorCode(response))
	})
}

func TestConfirmPayment(t *testing.T) {
	db := setupTestDB(t)

	client := createTestUser(t, db, models.RoleClient)
	service := createTestService(t, db, models.PricingTypeFixed, 100)

	t.Run("Confirm a succeeded intent", func(t *testing.T) {
		mock := services.NewMockPaymentService()
		mock.AddIntent(&services.PaymentIntent{ID: "pi_done", Status: services.PaymentIntentSucceeded})
		mock.SetAsMockForTesting()

		order := createTestOrder(t, db, client, service, models.OrderStatusPending)
		router := setupPaymentRouter(client.Auth0ID, models.RoleClient)

		w, response := doJSON(t, router, http.MethodPost, "/payments/confirm-payment",
			map[string]interface{}{"order_id": order.ID, "payment_intent_id": "pi_done"})

		assert.Equal(t, http.StatusOK, w.Code)
		data := response["data"].(map[string]interface{})
		assert.Equal(t, models.OrderStatusPaymentConfirmed, data["status"])

		var reloaded models.Order
		db.First(&reloaded, order.ID)
		assert.Equal(t, models.PaymentStatusCompleted, reloaded.Payment.Status)
		assert.Equal(t, "pi_done", *reloaded.Payment.TransactionID)
		assert.NotNil(t, reloaded.Payment.PaidAt)

		var count int64
		db.Model(&models.Message{}).Where("order_id = ?", order.ID).Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Reject an unfinished intent", func(t *testing.T) {
		mock := services.NewMockPaymentService()
		mock.AddIntent(&services.PaymentIntent{ID: "pi_open", Status: "requires_payment_method"})
		mock.SetAsMockForTesting()

		order := createTestOrder(t, db, client, service, models.OrderStatusPending)
		router := setupPaymentRouter(client.Auth0ID, models.RoleClient)

		w, response := doJSON(t, router, http.MethodPost, "/payments/confirm-payment",
			map[string]interface{}{"order_id": order.ID, "payment_intent_id": "pi_open"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_STATE", errorCode(response))

		var reloaded models.Order
		db.First(&reloaded, order.ID)
		assert.Equal(t, models.OrderStatusPending, reloaded.Status)
	})

	t.Run("Unknown intent surfaces as payment error", func(t *testing.T) {
		services.NewMockPaymentService().SetAsMockForTesting()

		order := createTestOrder(t, db, client, service, models.OrderStatusPending)
		router := setupPaymentRouter(client.Auth0ID, models.RoleClient)

		w, response := doJSON(t, router, http.MethodPost, "/payments/confirm-payment",
			map[string]interface{}{"order_id": order.ID, "payment_intent_id": "pi_missing"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "PAYMENT_ERROR", errorCode(response))
	})
}

func TestProcessPayment(t *testing.T) {
	db := setupTestDB(t)

	client := createTestUser(t, db, models.RoleClient)
	service := createTestService(t, db, models.PricingTypeFixed, 100)

	body := func(orderID uint) map[string]interface{} {
		return map[string]interface{}{"order_id": orderID, "payment_method_id": "pm_card_visa"}
	}

	t.Run("Succeeded charge confirms the order", func(t *testing.T) {
		services.NewMockPaymentService().SetAsMockForTesting()

		order := createTestOrder(t, db, client, service, models.OrderStatusPending)
		router := setupPaymentRouter(client.Auth0ID, models.RoleClient)

		w, response := doJSON(t, router, http.MethodPost, "/payments/process", body(order.ID))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, response["success"].(bool))

		data := response["data"].(map[string]interface{})
		orderData := data["order"].(map[string]interface{})
		assert.Equal(t, models.OrderStatusPaymentConfirmed, orderData["status"])

		intentData := data["payment_intent"].(map[string]interface{})
		assert.Equal(t, services.PaymentIntentSucceeded, intentData["status"])
	})

	t.Run("Requires-action charge leaves the order untouched", func(t *testing.T) {
		mock := services.NewMockPaymentService()
		mock.NextStatus = services.PaymentIntentRequiresAction
		mock.SetAsMockForTesting()

		order := createTestOrder(t, db, client, service, models.OrderStatusPending)
		router := setupPaymentRouter(client.Auth0ID, models.RoleClient)

		w, response := doJSON(t, router, http.MethodPost, "/payments/process", body(order.ID))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.False(t, response["success"].(bool))
		assert.True(t, response["requires_action"].(bool))

		intentData := response["payment_intent"].(map[string]interface{})
		assert.Equal(t, services.PaymentIntentRequiresAction, intentData["status"])
		assert.NotEmpty(t, intentData["client_secret"])

		var reloaded models.Order
		db.First(&reloaded, order.ID)
		assert.Equal(t, models.OrderStatusPending, reloaded.Status)
		assert.Equal(t, models.PaymentStatusPending, reloaded.Payment.Status)
	})

	t.Run("Declined charge is a payment error", func(t *testing.T) {
		mock := services.NewMockPaymentService()
		mock.NextStatus = "requires_payment_method"
		mock.SetAsMockForTesting()

		order := createTestOrder(t, db, client, service, models.OrderStatusPending)
		router := setupPaymentRouter(client.Auth0ID, models.RoleClient)

		w, response := doJSON(t, router, http.MethodPost, "/payments/process", body(order.ID))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "PAYMENT_ERROR", errorCode(response))

		var reloaded models.Order
		db.First(&reloaded, order.ID)
		assert.Equal(t, models.OrderStatusPending, reloaded.Status)
	})

	t.Run("Card decline error from processor", func(t *testing.T) {
		mock := services.NewMockPaymentService()
		mock.FailWith = &services.PaymentError{Code: "card_declined", Message: "Your card was declined"}
		mock.SetAsMockForTesting()

		order := createTestOrder(t, db, client, service, models.OrderStatusPending)
		router := setupPaymentRouter(client.Auth0ID, models.RoleClient)

		w, response := doJSON(t, router, http.MethodPost, "/payments/process", body(order.ID))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "PAYMENT_ERROR", errorCode(response))
	})

	t.Run("Missing payment method rejected", func(t *testing.T) {
		services.NewMockPaymentService().SetAsMockForTesting()

		order := createTestOrder(t, db, client, service, models.OrderStatusPending)
		router := setupPaymentRouter(client.Auth0ID, models.RoleClient)

		w, response := doJSON(t, router, http.MethodPost, "/payments/process",
			map[string]interface{}{"order_id": order.ID})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(response))
	})
}

func TestPaymentThenApproval(t *testing.T) {
	db := setupTestDB(t)

	client := createTestUser(t, db, models.RoleClient)
	admin := createTestUser(t, db, models.RoleAdmin)
	service := createTestService(t, db, models.PricingTypeFixed, 150)

	services.NewMockPaymentService().SetAsMockForTesting()

	order := createTestOrder(t, db, client, service, models.OrderStatusPending)

	payRouter := setupPaymentRouter(client.Auth0ID, models.RoleClient)
	w, _ := doJSON(t, payRouter, http.MethodPost, "/payments/process",
		map[string]interface{}{"order_id": order.ID, "payment_method_id": "pm_card_visa"})
	assert.Equal(t, http.StatusOK, w.Code)

	// Approval only becomes possible once payment is confirmed
	approveRouter := setupTestRouter()
	approveRouter.PUT("/orders/:id/approve", mockAuthMiddleware(admin.Auth0ID, models.RoleAdmin, "mock-token"), ApproveOrder)

	w, response := doJSON(t, approveRouter, http.MethodPut, fmt.Sprintf("/orders/%d/approve", order.ID),
		map[string]interface{}{})
	assert.Equal(t, http.StatusOK, w.Code)

	data := response["data"].(map[string]interface{})
	assert.Equal(t, models.OrderStatusApproved, data["status"])
}
