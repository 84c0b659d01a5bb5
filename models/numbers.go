package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Human-readable reference numbers are built from a millisecond timestamp
// plus a random suffix. The scheme is not collision-free, so callers retry
// the insert on a unique-constraint violation.

// GenerateOrderNumber returns a new order reference, e.g. ORD-1756700000000-3FA2C1
func GenerateOrderNumber() string {
	return generateNumber("ORD")
}

// GenerateQuoteNumber returns a new quote reference, e.g. QTE-1756700000000-9B41D0
func GenerateQuoteNumber() string {
	return generateNumber("QTE")
}

func generateNumber(prefix string) string {
	suffix := strings.ToUpper(uuid.NewString()[:6])
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMilli(), suffix)
}
