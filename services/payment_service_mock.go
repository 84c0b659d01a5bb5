package services

import (
	"fmt"
	"sync"
)

// MockPaymentService is a mock implementation of PaymentInterface for testing
type MockPaymentService struct {
	intents map[string]*PaymentIntent
	counter int
	mu      sync.Mutex

	// NextStatus forces the status of the next created/confirmed intent,
	// e.g. "requires_action" or "requires_payment_method"
	NextStatus string

	// FailWith, when set, makes every call return this error
	FailWith *PaymentError
}

// NewMockPaymentService creates a new mock payment service
func NewMockPaymentService() *MockPaymentService {
	return &MockPaymentService{
		intents: make(map[string]*PaymentIntent),
	}
}

// SetAsMockForTesting sets this mock as the global payment service instance
func (m *MockPaymentService) SetAsMockForTesting() {
	SetPaymentService(m)
}

// CreateIntent simulates creating a payment intent
func (m *MockPaymentService) CreateIntent(amount int64, currency, orderNumber string) (*PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return nil, m.FailWith
	}

	m.counter++
	intent := &PaymentIntent{
		ID:           fmt.Sprintf("pi_mock_%d", m.counter),
		ClientSecret: fmt.Sprintf("pi_mock_%d_secret", m.counter),
		Status:       "requires_payment_method",
	}
	if m.NextStatus != "" {
		intent.Status = m.NextStatus
	}

	m.intents[intent.ID] = intent
	return intent, nil
}

// GetIntent simulates retrieving a payment intent
func (m *MockPaymentService) GetIntent(intentID string) (*PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return nil, m.FailWith
	}

	intent, exists := m.intents[intentID]
	if !exists {
		return nil, &PaymentError{Code: "resource_missing", Message: "No such payment intent"}
	}
	return intent, nil
}

// CreateAndConfirm simulates a synchronous create-and-confirm charge
func (m *MockPaymentService) CreateAndConfirm(amount int64, currency, orderNumber, paymentMethodID string) (*PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return nil, m.FailWith
	}

	m.counter++
	intent := &PaymentIntent{
		ID:           fmt.Sprintf("pi_mock_%d", m.counter),
		ClientSecret: fmt.Sprintf("pi_mock_%d_secret", m.counter),
		Status:       PaymentIntentSucceeded,
	}
	if m.NextStatus != "" {
		intent.Status = m.NextStatus
	}

	m.intents[intent.ID] = intent
	return intent, nil
}

// SetIntentStatus overrides the stored status of an intent (for testing
// confirm flows)
func (m *MockPaymentService) SetIntentStatus(intentID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if intent, exists := m.intents[intentID]; exists {
		intent.Status = status
	}
}

// AddIntent seeds an intent into the mock (for testing confirm flows without
// a prior create call)
func (m *MockPaymentService) AddIntent(intent *PaymentIntent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intents[intent.ID] = intent
}
