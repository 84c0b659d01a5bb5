package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/atlasedge/atlasedge-api/config"
	"github.com/atlasedge/atlasedge-api/middleware"
	"github.com/atlasedge/atlasedge-api/models"
)

// respondError writes the standard error envelope
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// respondValidationError writes a 400 envelope carrying binding details
func respondValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "VALIDATION_ERROR",
			"message": "Invalid request data",
			"details": err.Error(),
		},
	})
}

// currentUser resolves the authenticated caller's database record. On failure
// it writes the error response and returns ok=false.
func currentUser(c *gin.Context) (*models.User, bool) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return nil, false
	}

	db := config.GetDB()
	var user models.User
	if err := db.Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
		return nil, false
	}

	return &user, true
}

// requireAdmin resolves the caller and rejects non-admins
func requireAdmin(c *gin.Context) (*models.User, bool) {
	user, ok := currentUser(c)
	if !ok {
		return nil, false
	}
	if !user.IsAdmin() {
		respondError(c, http.StatusForbidden, "FORBIDDEN", "Administrator access required")
		return nil, false
	}
	return user, true
}

// parseIDParam parses the :id URL parameter as an unsigned integer
func parseIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid ID parameter")
		return 0, false
	}
	return uint(id), true
}

// paginationParams reads page/limit query parameters with sane bounds
func paginationParams(c *gin.Context) (page, limit, offset int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit, (page - 1) * limit
}

// paginationBlock builds the pagination section of list responses
func paginationBlock(page, limit int, total int64) gin.H {
	totalPages := (total + int64(limit) - 1) / int64(limit)
	return gin.H{
		"page":        page,
		"limit":       limit,
		"total":       total,
		"total_pages": totalPages,
	}
}
