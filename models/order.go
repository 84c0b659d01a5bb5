package models

import (
	"time"

	"gorm.io/gorm"
)

// Order statuses
const (
	OrderStatusPending          = "pending"
	OrderStatusPaymentConfirmed = "payment_confirmed"
	OrderStatusApproved         = "approved"
	OrderStatusRejected         = "rejected"
	OrderStatusInProgress       = "in_progress"
	OrderStatusUnderReview      = "under_review"
	OrderStatusCompleted        = "completed"
	OrderStatusCancelled        = "cancelled"
	OrderStatusRefunded         = "refunded"
)

// Payment statuses for the order payment sub-record
const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
	PaymentStatusRefunded   = "refunded"
)

// Contact preferences
const (
	ContactPreferenceEmail = "email"
	ContactPreferencePhone = "phone"
	ContactPreferenceChat  = "chat"
)

var orderStatuses = map[string]bool{
	OrderStatusPending:          true,
	OrderStatusPaymentConfirmed: true,
	OrderStatusApproved:         true,
	OrderStatusRejected:         true,
	OrderStatusInProgress:       true,
	OrderStatusUnderReview:      true,
	OrderStatusCompleted:        true,
	OrderStatusCancelled:        true,
	OrderStatusRefunded:         true,
}

// ValidOrderStatus reports whether s is one of the nine order statuses
func ValidOrderStatus(s string) bool {
	return orderStatuses[s]
}

// OrderPricing is the breakdown computed once at order creation.
// It is never recomputed on later reads.
type OrderPricing struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
	Currency string  `gorm:"default:'USD'" json:"currency"`
}

// OrderPayment tracks the state of the external payment for an order
type OrderPayment struct {
	Status        string     `gorm:"not null;default:'pending'" json:"status"` // pending, processing, completed, failed, refunded
	Method        *string    `json:"method,omitempty"`
	TransactionID *string    `json:"transaction_id,omitempty"` // external processor transaction id
	IntentID      *string    `json:"intent_id,omitempty"`      // external processor payment intent id
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

// Order represents a confirmed request to purchase a fixed/hourly-priced service
type Order struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	OrderNumber string `gorm:"uniqueIndex;not null" json:"order_number"`

	ClientID     uint  `gorm:"not null;index" json:"client_id"` // foreign key to users table
	Client       User  `gorm:"foreignKey:ClientID" json:"client"`
	ServiceID    uint  `gorm:"not null;index" json:"service_id"`
	Service      Service `gorm:"foreignKey:ServiceID" json:"service"`
	AssignedToID *uint `gorm:"index" json:"assigned_to_id,omitempty"` // nullable, staff member working the order
	AssignedTo   *User `gorm:"foreignKey:AssignedToID" json:"assigned_to,omitempty"`
	ApprovedByID *uint `json:"approved_by_id,omitempty"`
	RejectedByID *uint `json:"rejected_by_id,omitempty"`

	Quantity    int          `gorm:"not null;check:quantity > 0" json:"quantity"`
	TotalAmount float64      `gorm:"not null" json:"total_amount"`
	Pricing     OrderPricing `gorm:"embedded;embeddedPrefix:pricing_" json:"pricing"`

	Requirements      string  `gorm:"type:text;not null" json:"requirements"`
	Timeline          *string `json:"timeline,omitempty"`
	ContactPreference string  `gorm:"not null;default:'email'" json:"contact_preference"` // email, phone, chat
	AdditionalNotes   *string `gorm:"type:text" json:"additional_notes,omitempty"`
	AdminNotes        *string `gorm:"type:text" json:"admin_notes,omitempty"`
	RejectionReason   *string `gorm:"type:text" json:"rejection_reason,omitempty"`

	Status      string     `gorm:"not null;default:'pending';index" json:"status"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Payment OrderPayment `gorm:"embedded;embeddedPrefix:payment_" json:"payment"`

	// Communication is the append-only message thread attached to this order
	Communication []Message `gorm:"foreignKey:OrderID" json:"communication,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// IsTerminalForRejection reports whether the order can no longer be rejected
func (o *Order) IsTerminalForRejection() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusCancelled
}
