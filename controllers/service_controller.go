package controllers

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/atlasedge/atlasedge-api/config"
	"github.com/atlasedge/atlasedge-api/models"
	"github.com/atlasedge/atlasedge-api/services"
)

// ServiceRequest represents the request body for creating or updating a
// catalog service
type ServiceRequest struct {
	Title        string   `json:"title" binding:"required,min=3,max=200"`
	Description  string   `json:"description" binding:"required,min=10"`
	Category     string   `json:"category" binding:"required"`
	Pricing      PricingRequest `json:"pricing" binding:"required"`
	Features     []string `json:"features"`
	Technologies []string `json:"technologies"`
	DeliveryTime string   `json:"delivery_time" binding:"omitempty,max=100"`
	IsActive     *bool    `json:"is_active"`
	IsFeatured   *bool    `json:"is_featured"`
}

// PricingRequest is the pricing sub-object of a ServiceRequest
type PricingRequest struct {
	Type         string  `json:"type" binding:"required,oneof=fixed hourly quote"`
	Amount       float64 `json:"amount" binding:"omitempty,gte=0"`
	Currency     string  `json:"currency" binding:"omitempty,len=3"`
	BillingCycle string  `json:"billing_cycle" binding:"omitempty,oneof=one-time monthly yearly"`
}

// ListServices handles GET /api/v1/services - public catalog browsing with
// filter, sort and pagination query parameters
func ListServices(c *gin.Context) {
	page, limit, offset := paginationParams(c)

	db := config.GetDB()
	query := db.Model(&models.Service{}).Where("is_active = ?", true)

	if category := c.Query("category"); category != "" {
		if !models.ValidServiceCategory(category) {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown service category")
			return
		}
		query = query.Where("category = ?", category)
	}

	if search := c.Query("search"); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	if minPrice := c.Query("minPrice"); minPrice != "" {
		if v, err := strconv.ParseFloat(minPrice, 64); err == nil {
			query = query.Where("pricing_amount >= ?", v)
		}
	}
	if maxPrice := c.Query("maxPrice"); maxPrice != "" {
		if v, err := strconv.ParseFloat(maxPrice, 64); err == nil {
			query = query.Where("pricing_amount <= ?", v)
		}
	}

	if featured := c.Query("featured"); featured == "true" {
		query = query.Where("is_featured = ?", true)
	}

	switch c.Query("sort") {
	case "price_asc":
		query = query.Order("pricing_amount ASC")
	case "price_desc":
		query = query.Order("pricing_amount DESC")
	case "rating":
		query = query.Order("rating_average DESC")
	default:
		query = query.Order("created_at DESC")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to count services")
		return
	}

	var items []models.Service
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to fetch services")
		return
	}

	for i := range items {
		attachImageURL(&items[i])
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       items,
		"pagination": paginationBlock(page, limit, total),
	})
}

// GetService handles GET /api/v1/services/:id - public single-service fetch
func GetService(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	db := config.GetDB()
	var service models.Service
	if err := db.Where("is_active = ?", true).First(&service, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "SERVICE_NOT_FOUND", "Service not found")
		return
	}

	attachImageURL(&service)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    service,
	})
}

// CreateService handles POST /api/v1/services - adds a catalog entry (admins only)
func CreateService(c *gin.Context) {
	_, ok := requireAdmin(c)
	if !ok {
		return
	}

	var req ServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	if !models.ValidServiceCategory(req.Category) {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown service category")
		return
	}

	// Fixed/hourly services need a positive unit amount; quote-priced
	// services carry no list price
	if req.Pricing.Type != models.PricingTypeQuote && req.Pricing.Amount < 1 {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "A fixed or hourly service requires a positive amount")
		return
	}

	service := models.Service{
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Features:     req.Features,
		Technologies: req.Technologies,
		DeliveryTime: req.DeliveryTime,
		IsActive:     true,
		Pricing: models.ServicePricing{
			Type:         req.Pricing.Type,
			Amount:       req.Pricing.Amount,
			Currency:     defaultString(req.Pricing.Currency, "USD"),
			BillingCycle: defaultString(req.Pricing.BillingCycle, "one-time"),
		},
	}
	if req.IsActive != nil {
		service.IsActive = *req.IsActive
	}
	if req.IsFeatured != nil {
		service.IsFeatured = *req.IsFeatured
	}

	db := config.GetDB()
	if err := db.Create(&service).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create service")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    service,
	})
}

// UpdateService handles PUT /api/v1/services/:id - updates a catalog entry
// (admins only)
func UpdateService(c *gin.Context) {
	_, ok := requireAdmin(c)
	if !ok {
		return
	}

	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req ServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	if !models.ValidServiceCategory(req.Category) {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown service category")
		return
	}

	if req.Pricing.Type != models.PricingTypeQuote && req.Pricing.Amount < 1 {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "A fixed or hourly service requires a positive amount")
		return
	}

	db := config.GetDB()
	var service models.Service
	if err := db.First(&service, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "SERVICE_NOT_FOUND", "Service not found")
		return
	}

	service.Title = req.Title
	service.Description = req.Description
	service.Category = req.Category
	service.Features = req.Features
	service.Technologies = req.Technologies
	service.DeliveryTime = req.DeliveryTime
	service.Pricing = models.ServicePricing{
		Type:         req.Pricing.Type,
		Amount:       req.Pricing.Amount,
		Currency:     defaultString(req.Pricing.Currency, service.Pricing.Currency),
		BillingCycle: defaultString(req.Pricing.BillingCycle, service.Pricing.BillingCycle),
	}
	if req.IsActive != nil {
		service.IsActive = *req.IsActive
	}
	if req.IsFeatured != nil {
		service.IsFeatured = *req.IsFeatured
	}

	if err := db.Save(&service).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update service")
		return
	}

	attachImageURL(&service)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    service,
	})
}

// DeleteService handles DELETE /api/v1/services/:id - soft-deletes a catalog
// entry (admins only). Existing orders keep their reference.
func DeleteService(c *gin.Context) {
	_, ok := requireAdmin(c)
	if !ok {
		return
	}

	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	db := config.GetDB()
	var service models.Service
	if err := db.First(&service, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "SERVICE_NOT_FOUND", "Service not found")
		return
	}

	if err := db.Delete(&service).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete service")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"id": service.ID, "deleted": true},
	})
}

// attachImageURL fills the computed ImageURL field from the image service.
// A presigning failure is logged but never fails the catalog read.
func attachImageURL(service *models.Service) {
	if service.ImageS3Key == nil || *service.ImageS3Key == "" {
		return
	}

	imageService := services.GetImageService()
	if imageService == nil {
		return
	}

	url, err := imageService.GetImageURL(*service.ImageS3Key)
	if err != nil {
		log.Printf("Failed to generate image URL for service %d: %v", service.ID, err)
		return
	}
	if url != "" {
		service.ImageURL = &url
	}
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
