package models

import (
	"time"

	"gorm.io/gorm"
)

// Quote statuses
const (
	QuoteStatusPending  = "pending"
	QuoteStatusAccepted = "accepted"
	QuoteStatusRejected = "rejected"
	QuoteStatusExpired  = "expired"
)

// Quote priorities
const (
	QuotePriorityLow    = "low"
	QuotePriorityNormal = "normal"
	QuotePriorityHigh   = "high"
	QuotePriorityUrgent = "urgent"
)

// QuoteValidityDays is how long a new quote request stays open before its
// stored expiry timestamp passes. Nothing actively transitions a quote to
// expired; the timestamp is informational only.
const QuoteValidityDays = 30

var quoteStatuses = map[string]bool{
	QuoteStatusPending:  true,
	QuoteStatusAccepted: true,
	QuoteStatusRejected: true,
	QuoteStatusExpired:  true,
}

// ValidQuoteStatus reports whether s is a known quote status
func ValidQuoteStatus(s string) bool {
	return quoteStatuses[s]
}

// Quote represents a pre-purchase negotiation request for a custom-priced service.
// CustomAmount is the client's requested budget; QuotedAmount is the admin's
// counter-offer. Both may coexist and are distinct fields.
type Quote struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	QuoteNumber string `gorm:"uniqueIndex;not null" json:"quote_number"`

	ClientID      uint    `gorm:"not null;index" json:"client_id"`
	Client        User    `gorm:"foreignKey:ClientID" json:"client"`
	ServiceID     uint    `gorm:"not null;index" json:"service_id"`
	Service       Service `gorm:"foreignKey:ServiceID" json:"service"`
	RespondedByID *uint   `json:"responded_by_id,omitempty"`

	CustomAmount float64  `gorm:"not null" json:"custom_amount"`
	QuotedAmount *float64 `json:"quoted_amount,omitempty"`

	Requirements      string  `gorm:"type:text;not null" json:"requirements"`
	Timeline          *string `json:"timeline,omitempty"`
	ContactPreference string  `gorm:"not null;default:'email'" json:"contact_preference"`
	AdditionalNotes   *string `gorm:"type:text" json:"additional_notes,omitempty"`
	Priority          string  `gorm:"not null;default:'normal'" json:"priority"`

	AdminResponse    *string    `gorm:"type:text" json:"admin_response,omitempty"`
	RespondedAt      *time.Time `json:"responded_at,omitempty"`
	ClientDecidedAt  *time.Time `json:"client_decided_at,omitempty"`
	ExpiresAt        time.Time  `json:"expires_at"`

	Status string `gorm:"not null;default:'pending';index" json:"status"`

	// Communication is the append-only message thread attached to this quote
	Communication []Message `gorm:"foreignKey:QuoteID" json:"communication,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Quote model
func (Quote) TableName() string {
	return "quotes"
}
