package main

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/atlasedge/atlasedge-api/config"
	"github.com/atlasedge/atlasedge-api/controllers"
	"github.com/atlasedge/atlasedge-api/middleware"
	"github.com/atlasedge/atlasedge-api/models"
	"github.com/atlasedge/atlasedge-api/services"
)

func main() {
	log.Println("Starting AtlasEdge services API...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := config.ConnectDatabase(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	db := config.GetDB()
	if err := db.AutoMigrate(
		&models.User{},
		&models.Service{},
		&models.Order{},
		&models.Quote{},
		&models.Chat{},
		&models.Message{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed successfully")

	// External collaborators
	services.InitPaymentService(cfg)
	if cfg.AWSS3Bucket != "" {
		s3Service, err := services.InitS3Service()
		if err != nil {
			log.Fatalf("Failed to initialize S3: %v", err)
		}
		services.InitImageService(s3Service)
	} else {
		log.Println("AWS_S3_BUCKET not set, catalog image uploads disabled")
	}

	router := setupRouter(cfg)

	addr := ":" + cfg.Port
	log.Printf("Server is running on http://localhost%s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// setupRouter builds the Gin engine with all routes and middleware
func setupRouter(cfg *config.Config) *gin.Engine {
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	v1 := router.Group("/api/v1")
	{
		// Public endpoints
		v1.GET("/health", healthCheck)
		v1.GET("/database/status", databaseStatus)
		v1.GET("/services", controllers.ListServices)
		v1.GET("/services/:id", controllers.GetService)

		// Authenticated endpoints
		auth := v1.Group("")
		auth.Use(middleware.EnsureValidToken(cfg))
		{
			auth.POST("/users", controllers.CreateUser)
			auth.GET("/users/me", controllers.GetMyProfile)
			auth.PUT("/users/me", controllers.UpdateMyProfile)

			auth.GET("/orders", controllers.ListOrders)
			auth.POST("/orders", controllers.CreateOrder)
			auth.GET("/orders/:id", controllers.GetOrder)
			auth.PUT("/orders/:id/approve", controllers.ApproveOrder)
			auth.PUT("/orders/:id/reject", controllers.RejectOrder)
			auth.PUT("/orders/:id/status", controllers.UpdateOrderStatus)
			auth.PUT("/orders/:id/assign", controllers.AssignOrder)
			auth.POST("/orders/:id/communication", controllers.AddOrderCommunication)

			auth.GET("/quotes", controllers.ListQuotes)
			auth.POST("/quotes", controllers.CreateQuote)
			auth.GET("/quotes/:id", controllers.GetQuote)
			auth.PUT("/quotes/:id/respond", controllers.RespondQuote)
			auth.PUT("/quotes/:id/accept", controllers.AcceptQuote)
			auth.PUT("/quotes/:id/reject", controllers.RejectQuote)
			auth.POST("/quotes/:id/communication", controllers.AddQuoteCommunication)

			auth.POST("/payments/create-payment-intent", controllers.CreatePaymentIntent)
			auth.POST("/payments/confirm-payment", controllers.ConfirmPayment)
			auth.POST("/payments/process", controllers.ProcessPayment)

			auth.POST("/services", controllers.CreateService)
			auth.PUT("/services/:id", controllers.UpdateService)
			auth.DELETE("/services/:id", controllers.DeleteService)
			auth.POST("/services/:id/image", controllers.UploadServiceImage)

			auth.GET("/chats", controllers.ListChats)
			auth.POST("/chats", controllers.CreateChat)
			auth.GET("/chats/:id", controllers.GetChat)
			auth.POST("/chats/:id/messages", controllers.SendChatMessage)

			auth.GET("/admin/dashboard", controllers.GetDashboard)
			auth.GET("/admin/users", controllers.ListUsers)
		}
	}

	return router
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "AtlasEdge API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()

	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	if err := sqlDB.Ping(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	var tables []string
	if err := db.Raw("SELECT tablename FROM pg_tables WHERE schemaname = 'public'").Scan(&tables).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
