package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/atlasedge/atlasedge-api/config"
	"github.com/atlasedge/atlasedge-api/middleware"
	"github.com/atlasedge/atlasedge-api/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Service{},
		&models.Order{},
		&models.Quote{},
		&models.Chat{},
		&models.Message{},
	); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	config.SetDB(db)
	return db
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// mockAuthMiddleware injects the context values the real JWT middleware would set
func mockAuthMiddleware(auth0ID, role, accessToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", auth0ID)
		c.Set("access_token", accessToken)

		customClaims := &middleware.CustomClaims{
			Role: role,
		}
		mockClaims := &validator.ValidatedClaims{
			RegisteredClaims: validator.RegisteredClaims{
				Subject: auth0ID,
			},
			CustomClaims: customClaims,
		}
		c.Set("validated_claims", mockClaims)

		c.Next()
	}
}

var testUserSeq int

func createTestUser(t *testing.T, db *gorm.DB, role string) models.User {
	t.Helper()

	testUserSeq++
	user := models.User{
		Auth0ID: fmt.Sprintf("auth0|%s%d", role, testUserSeq),
		Name:    fmt.Sprintf("Test %s %d", role, testUserSeq),
		Email:   fmt.Sprintf("%s%d@example.com", role, testUserSeq),
		Role:    role,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func createTestService(t *testing.T, db *gorm.DB, pricingType string, amount float64) models.Service {
	t.Helper()

	service := models.Service{
		Title:       fmt.Sprintf("Managed %s service", pricingType),
		Description: "Full-stack delivery with ongoing support included",
		Category:    "web-development",
		IsActive:    true,
		Pricing: models.ServicePricing{
			Type:         pricingType,
			Amount:       amount,
			Currency:     "USD",
			BillingCycle: "one-time",
		},
	}
	if err := db.Create(&service).Error; err != nil {
		t.Fatalf("Failed to create test service: %v", err)
	}
	return service
}

// doJSON executes a JSON request against the router and decodes the response envelope
func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewBuffer(raw)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, reader)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Response is not valid JSON: %v (body: %s)", err, w.Body.String())
	}

	return w, response
}

// errorCode extracts error.code from a response envelope
func errorCode(response map[string]interface{}) string {
	errData, ok := response["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	code, _ := errData["code"].(string)
	return code
}
