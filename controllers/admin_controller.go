package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atlasedge/atlasedge-api/config"
	"github.com/atlasedge/atlasedge-api/models"
)

// GetDashboard handles GET /api/v1/admin/dashboard - aggregate counts,
// recent orders and current-month revenue
func GetDashboard(c *gin.Context) {
	_, ok := requireAdmin(c)
	if !ok {
		return
	}

	db := config.GetDB()

	var totalOrders, totalQuotes, totalClients, activeServices int64
	if err := db.Model(&models.Order{}).Count(&totalOrders).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load dashboard data")
		return
	}
	db.Model(&models.Quote{}).Count(&totalQuotes)
	db.Model(&models.User{}).Where("role = ?", models.RoleClient).Count(&totalClients)
	db.Model(&models.Service{}).Where("is_active = ?", true).Count(&activeServices)

	ordersByStatus := make(map[string]int64)
	for _, status := range []string{
		models.OrderStatusPending,
		models.OrderStatusPaymentConfirmed,
		models.OrderStatusApproved,
		models.OrderStatusInProgress,
		models.OrderStatusUnderReview,
		models.OrderStatusCompleted,
	} {
		var n int64
		db.Model(&models.Order{}).Where("status = ?", status).Count(&n)
		ordersByStatus[status] = n
	}

	var pendingQuotes int64
	db.Model(&models.Quote{}).Where("status = ?", models.QuoteStatusPending).Count(&pendingQuotes)

	var recentOrders []models.Order
	if err := db.Preload("Client").Preload("Service").
		Order("created_at DESC").
		Limit(5).
		Find(&recentOrders).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load recent orders")
		return
	}

	// Revenue counts orders whose payment completed this calendar month
	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var monthlyRevenue float64
	db.Model(&models.Order{}).
		Where("payment_status = ? AND payment_paid_at >= ?", models.PaymentStatusCompleted, monthStart).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&monthlyRevenue)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"totals": gin.H{
				"orders":          totalOrders,
				"quotes":          totalQuotes,
				"clients":         totalClients,
				"active_services": activeServices,
			},
			"orders_by_status": ordersByStatus,
			"pending_quotes":   pendingQuotes,
			"recent_orders":    recentOrders,
			"monthly_revenue":  monthlyRevenue,
		},
	})
}

// ListUsers handles GET /api/v1/admin/users - paginated client list with search
func ListUsers(c *gin.Context) {
	_, ok := requireAdmin(c)
	if !ok {
		return
	}

	page, limit, offset := paginationParams(c)

	db := config.GetDB()
	query := db.Model(&models.User{}).Where("role = ?", models.RoleClient)

	if search := c.Query("search"); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(COALESCE(company, '')) LIKE ?",
			pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to count users")
		return
	}

	var users []models.User
	if err := query.Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&users).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to fetch users")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       users,
		"pagination": paginationBlock(page, limit, total),
	})
}
