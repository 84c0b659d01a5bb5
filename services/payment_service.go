package services

import (
	"fmt"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/atlasedge/atlasedge-api/config"
)

// Payment intent statuses surfaced to handlers. These mirror the processor's
// vocabulary so the three-outcome direct-charge flow stays three distinct paths.
const (
	PaymentIntentSucceeded      = "succeeded"
	PaymentIntentRequiresAction = "requires_action"
)

// PaymentIntent is the slice of the processor's intent object the API needs
type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

// PaymentInterface defines the contract with the hosted payment processor
type PaymentInterface interface {
	// CreateIntent creates a charge intent for amount in minor currency units
	CreateIntent(amount int64, currency, orderNumber string) (*PaymentIntent, error)

	// GetIntent re-queries the processor for the current intent state
	GetIntent(intentID string) (*PaymentIntent, error)

	// CreateAndConfirm creates and confirms a charge in one synchronous call
	CreateAndConfirm(amount int64, currency, orderNumber, paymentMethodID string) (*PaymentIntent, error)
}

// PaymentError represents a processor-side failure surfaced to the caller
type PaymentError struct {
	Code    string
	Message string
}

func (e *PaymentError) Error() string {
	return e.Message
}

// StripePaymentService implements PaymentInterface against the Stripe API
type StripePaymentService struct {
	api *client.API
}

var paymentServiceInstance PaymentInterface

// InitPaymentService initializes the Stripe-backed payment service
func InitPaymentService(cfg *config.Config) PaymentInterface {
	api := &client.API{}
	api.Init(cfg.StripeSecretKey, nil)

	paymentServiceInstance = &StripePaymentService{api: api}
	return paymentServiceInstance
}

// GetPaymentService returns the initialized payment service instance
func GetPaymentService() PaymentInterface {
	return paymentServiceInstance
}

// SetPaymentService sets the payment service instance (primarily for testing)
func SetPaymentService(service PaymentInterface) {
	paymentServiceInstance = service
}

// CreateIntent creates a payment intent for the given amount
func (s *StripePaymentService) CreateIntent(amount int64, currency, orderNumber string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(amount),
		Currency:    stripe.String(currency),
		Description: stripe.String(fmt.Sprintf("Order %s", orderNumber)),
		Metadata: map[string]string{
			"order_number": orderNumber,
		},
	}

	intent, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, wrapStripeError(err)
	}

	return fromStripeIntent(intent), nil
}

// GetIntent retrieves an existing payment intent by ID
func (s *StripePaymentService) GetIntent(intentID string) (*PaymentIntent, error) {
	intent, err := s.api.PaymentIntents.Get(intentID, nil)
	if err != nil {
		return nil, wrapStripeError(err)
	}

	return fromStripeIntent(intent), nil
}

// CreateAndConfirm creates and immediately confirmsel a payment intent with the
// supplied payment method
func (s *StripePaymentService) CreateAndConfirm(amount int64, currency, orderNumber, paymentMethodID string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amount),
		Currency:      stripe.String(currency),
		Description:   stripe.String(fmt.Sprintf("Order %s", orderNumber)),
		PaymentMethod: stripe.String(paymentMethodID),
		Confirm:       stripe.Bool(true),
		Metadata: map[string]string{
			"order_number": orderNumber,
		},
	}

	intent, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, wrapStripeError(err)
	}

	return fromStripeIntent(intent), nil
}

func fromStripeIntent(intent *stripe.PaymentIntent) *PaymentIntent {
	return &PaymentIntent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       string(intent.Status),
	}
}

// wrapStripeError maps Stripe SDK errors to PaymentError so handlers never
// leak raw processor internals
func wrapStripeError(err error) error {
	if stripeErr, ok := err.(*stripe.Error); ok {
		return &PaymentError{
			Code:    string(stripeErr.Code),
			Message: stripeErr.Msg,
		}
	}
	return &PaymentError{
		Code:    "processor_error",
		Message: "Payment processing failed",
	}
}
