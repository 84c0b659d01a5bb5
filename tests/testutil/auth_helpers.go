package testutil

import (
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"

	"github.com/atlasedge/atlasedge-api/middleware"
)

// MockValidatedClaims creates a mock ValidatedClaims for testing
func MockValidatedClaims(subject, issuer, role string, scopes []string) *validator.ValidatedClaims {
	scopeString := ""
	for i, scope := range scopes {
		if i > 0 {
			scopeString += " "
		}
		scopeString += scope
	}

	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  issuer,
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{
			Scope: scopeString,
			Role:  role,
		},
	}
}

// MockAuthMiddleware returns a middleware that injects an authenticated caller
// exactly the way EnsureValidToken would
func MockAuthMiddleware(auth0ID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", auth0ID)
		c.Set("access_token", "mock-token")
		c.Set("validated_claims", MockValidatedClaims(auth0ID, "https://test.auth0.com/", role, nil))
		c.Next()
	}
}

// SetMockAuthContext sets up a mock authenticated context for testing
func SetMockAuthContext(c *gin.Context, auth0ID, issuer, role string) {
	c.Set("user_id", auth0ID)
	c.Set("access_token", "mock-token")
	c.Set("validated_claims", MockValidatedClaims(auth0ID, issuer, role, nil))
}
