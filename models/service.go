package models

import (
	"time"

	"gorm.io/gorm"
)

// Pricing types determine whether a service goes through the order flow
// (fixed, hourly) or the quote flow (quote)
const (
	PricingTypeFixed  = "fixed"
	PricingTypeHourly = "hourly"
	PricingTypeQuote  = "quote"
)

// ServiceCategories is the closed set of catalog categories
var ServiceCategories = []string{
	"web-development",
	"mobile-development",
	"cloud-services",
	"cybersecurity",
	"it-consulting",
	"data-analytics",
	"devops",
	"support",
}

// ValidServiceCategory reports whether category is a known catalog category
func ValidServiceCategory(category string) bool {
	for _, c := range ServiceCategories {
		if c == category {
			return true
		}
	}
	return false
}

// ServicePricing is the pricing sub-record embedded in a Service
type ServicePricing struct {
	Type         string  `gorm:"not null;default:'fixed'" json:"type"` // fixed, hourly, quote
	Amount       float64 `json:"amount"`
	Currency     string  `gorm:"not null;default:'USD'" json:"currency"`
	BillingCycle string  `gorm:"not null;default:'one-time'" json:"billing_cycle"` // one-time, monthly, yearly
}

// Service represents a catalog entry for an IT service offering
type Service struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Title         string         `gorm:"not null" json:"title"`
	Description   string         `gorm:"type:text;not null" json:"description"`
	Category      string         `gorm:"not null;index" json:"category"`
	Pricing       ServicePricing `gorm:"embedded;embeddedPrefix:pricing_" json:"pricing"`
	Features      []string       `gorm:"serializer:json" json:"features"`
	Technologies  []string       `gorm:"serializer:json" json:"technologies"`
	DeliveryTime  string         `json:"delivery_time"`
	IsActive      bool           `gorm:"not null;default:true;index" json:"is_active"`
	IsFeatured    bool           `gorm:"not null;default:false" json:"is_featured"`
	RatingAverage float64        `json:"rating_average"`
	RatingCount   int            `json:"rating_count"`
	ImageS3Key    *string        `json:"image_s3_key,omitempty"` // nullable, S3 key for the catalog image
	ImageURL      *string        `gorm:"-" json:"image_url,omitempty"` // computed field, presigned URL for the image
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Service model
func (Service) TableName() string {
	return "services"
}

// IsQuotePriced reports whether the service must go through the quote flow
func (s *Service) IsQuotePriced() bool {
	return s.Pricing.Type == PricingTypeQuote
}
