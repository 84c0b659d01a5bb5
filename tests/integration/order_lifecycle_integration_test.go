package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/atlasedge/atlasedge-api/config"
	"github.com/atlasedge/atlasedge-api/controllers"
	"github.com/atlasedge/atlasedge-api/models"
	"github.com/atlasedge/atlasedge-api/services"
	"github.com/atlasedge/atlasedge-api/tests/testutil"
)

// OrderLifecycleTestSuite drives an order through the whole lifecycle over HTTP:
// catalog browse, order placement, payment, approval and delivery statuses.
type OrderLifecycleTestSuite struct {
	suite.Suite
	router *gin.Engine
	db     *gorm.DB

	client  models.User
	admin   models.User
	service models.Service
}

func (suite *OrderLifecycleTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)

	os.Setenv("GO_ENV", "test")
	os.Setenv("AUTH0_DOMAIN", "test.auth0.com")
	os.Setenv("AUTH0_AUDIENCE", "https://api.test.com")
	os.Setenv("PORT", "8080")
	os.Setenv("DATABASE_URL", "file::memory:?cache=shared")

	cfg, err := config.Load()
	suite.NoError(err)
	config.SetConfig(cfg)
}

func (suite *OrderLifecycleTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.NoError(err)
	suite.db = db

	err = db.AutoMigrate(
		&models.User{},
		&models.Service{},
		&models.Order{},
		&models.Quote{},
		&models.Message{},
		&models.Chat{},
	)
	suite.NoError(err)
	config.SetDB(db)

	services.NewMockPaymentService().SetAsMockForTesting()
	services.NewMockImageService().SetAsMockForTesting()

	suite.client = models.User{Auth0ID: "auth0|lifecycle-client", Name: "Lifecycle Client", Email: "client@lifecycle.test", Role: models.RoleClient}
	suite.NoError(db.Create(&suite.client).Error)
	suite.admin = models.User{Auth0ID: "auth0|lifecycle-admin", Name: "Lifecycle Admin", Email: "admin@lifecycle.test", Role: models.RoleAdmin}
	suite.NoError(db.Create(&suite.admin).Error)

	suite.service = models.Service{
		Title:       "Managed Support Retainer",
		Description: "Monthly managed support with a four-hour response SLA",
		Category:    "support",
		IsActive:    true,
		Pricing:     models.ServicePricing{Type: models.PricingTypeFixed, Amount: 400, Currency: "USD", BillingCycle: "one-time"},
	}
	suite.NoError(db.Create(&suite.service).Error)

	suite.router = gin.New()
	clientAuth := testutil.MockAuthMiddleware(suite.client.Auth0ID, models.RoleClient)
	adminAuth := testutil.MockAuthMiddleware(suite.admin.Auth0ID, models.RoleAdmin)

	v1 := suite.router.Group("/api/v1")
	{
		v1.GET("/services", controllers.ListServices)
		v1.GET("/services/:id", controllers.GetService)

		v1.POST("/orders", clientAuth, controllers.CreateOrder)
		v1.GET("/orders", clientAuth, controllers.ListOrders)
		v1.GET("/orders/:id", clientAuth, controllers.GetOrder)
		v1.POST("/orders/:id/communication", clientAuth, controllers.AddOrderCommunication)

		v1.POST("/payments/process", clientAuth, controllers.ProcessPayment)

		v1.PUT("/admin-orders/:id/approve", adminAuth, controllers.ApproveOrder)
		v1.PUT("/admin-orders/:id/reject", adminAuth, controllers.RejectOrder)
		v1.PUT("/admin-orders/:id/status", adminAuth, controllers.UpdateOrderStatus)
		v1.GET("/admin/dashboard", adminAuth, controllers.GetDashboard)
	}
}

func (suite *OrderLifecycleTestSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	if err == nil {
		sqlDB.Close()
	}
}

func (suite *OrderLifecycleTestSuite) request(method, path string, body interface{}) (int, map[string]interface{}) {
	var reader *bytes.Reader
	if body != nil {
		bodyJSON, _ := json.Marshal(body)
		reader = bytes.NewReader(bodyJSON)
	} else {
		reader = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	suite.router.ServeHTTP(w, req)

	var response map[string]interface{}
	if w.Body.Len() > 0 {
		suite.NoError(json.Unmarshal(w.Body.Bytes(), &response))
	}
	return w.Code, response
}

// TestFullOrderLifecycle walks the happy path from catalog to completion
func (suite *OrderLifecycleTestSuite) TestFullOrderLifecycle() {
	t := suite.T()

	// Browse the catalog
	code, response := suite.request(http.MethodGet, "/api/v1/services", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, response["data"].([]interface{}), 1)

	// Place the order
	code, response = suite.request(http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"service_id":         suite.service.ID,
		"quantity":           2,
		"requirements":       "Two seats on the managed support retainer for our ops team",
		"contact_preference": "email",
	})
	assert.Equal(t, http.StatusCreated, code)
	orderData := response["data"].(map[string]interface{})
	orderID := uint(orderData["id"].(float64))
	assert.Equal(t, "pending", orderData["status"])
	assert.Equal(t, float64(800), orderData["total_amount"])

	// Pay
	code, response = suite.request(http.MethodPost, "/api/v1/payments/process", map[string]interface{}{
		"order_id":          orderID,
		"payment_method_id": "pm_card_visa",
	})
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, response["success"].(bool))
	paidOrder := response["data"].(map[string]interface{})["order"].(map[string]interface{})
	assert.Equal(t, "payment_confirmed", paidOrder["status"])

	// Approve
	code, response = suite.request(http.MethodPut, fmt.Sprintf("/api/v1/admin-orders/%d/approve", orderID),
		map[string]interface{}{"admin_notes": "Team capacity confirmed for next sprint"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "approved", response["data"].(map[string]interface{})["status"])

	// Deliver
	for _, status := range []string{"in_progress", "under_review", "completed"} {
		code, response = suite.request(http.MethodPut, fmt.Sprintf("/api/v1/admin-orders/%d/status", orderID),
			map[string]interface{}{"status": status})
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, status, response["data"].(map[string]interface{})["status"])
	}

	// The client sees the finished order with the payment and approval log
	code, response = suite.request(http.MethodGet, fmt.Sprintf("/api/v1/orders/%d", orderID), nil)
	assert.Equal(t, http.StatusOK, code)
	finished := response["data"].(map[string]interface{})
	assert.Equal(t, "completed", finished["status"])
	assert.NotEmpty(t, finished["completed_at"])
	assert.NotEmpty(t, finished["approved_at"])

	communication := finished["communication"].([]interface{})
	assert.GreaterOrEqual(t, len(communication), 2)

	// Revenue shows up on the dashboard
	code, response = suite.request(http.MethodGet, "/api/v1/admin/dashboard", nil)
	assert.Equal(t, http.StatusOK, code)
	dashboard := response["data"].(map[string]interface{})
	assert.Equal(t, float64(800), dashboard["monthly_revenue"])
}

// TestRejectionPath covers payment followed by an admin rejection
func (suite *OrderLifecycleTestSuite) TestRejectionPath() {
	t := suite.T()

	code, response := suite.request(http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"service_id":         suite.service.ID,
		"quantity":           1,
		"requirements":       "Support retainer for a stack we may not cover",
		"contact_preference": "phone",
	})
	assert.Equal(t, http.StatusCreated, code)
	orderID := uint(response["data"].(map[string]interface{})["id"].(float64))

	code, _ = suite.request(http.MethodPost, "/api/v1/payments/process", map[string]interface{}{
		"order_id":          orderID,
		"payment_method_id": "pm_card_visa",
	})
	assert.Equal(t, http.StatusOK, code)

	code, response = suite.request(http.MethodPut, fmt.Sprintf("/api/v1/admin-orders/%d/reject", orderID),
		map[string]interface{}{"rejection_reason": "We do not support this platform stack"})
	assert.Equal(t, http.StatusOK, code)
	rejected := response["data"].(map[string]interface{})
	assert.Equal(t, "rejected", rejected["status"])
	assert.Equal(t, "We do not support this platform stack", rejected["rejection_reason"])

	// A rejected order can no longer be approved
	code, response = suite.request(http.MethodPut, fmt.Sprintf("/api/v1/admin-orders/%d/approve", orderID),
		map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, code)
	errBlock := response["error"].(map[string]interface{})
	assert.Equal(t, "INVALID_STATE", errBlock["code"])
}

func TestOrderLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
