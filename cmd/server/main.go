package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"varejo-system/config"
	"varejo-system/internal/database"
	"varejo-system/internal/database/models"
	"varejo-system/internal/middleware"
	affiliates "varejo-system/internal/services/affiliates/handler"
	catalog "varejo-system/internal/services/catalog/handler"
	clients "varejo-system/internal/services/clients/handler"
	partners "varejo-system/internal/services/partners/handler"
	reports "varejo-system/internal/services/reports/handler"
	sales "varejo-system/internal/services/sales/handler"
	users "varejo-system/internal/services/users/handler"
)

func main() {
	cfg := config.LoadConfig()

	db, err := database.NewConnection(cfg.DB.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	redisClient := config.NewRedisClient(cfg.Redis)

	jwtSecret := []byte(cfg.Auth.JWTSecret)
	tokenTTL := time.Duration(cfg.Auth.TokenTTL) * time.Hour

	usersHandler := users.NewUsersHandler(db, jwtSecret, tokenTTL)
	catalogHandler := catalog.NewCatalogHandler(db, redisClient)
	clientsHandler := clients.NewClientsHandler(db)
	partnersHandler := partners.NewPartnersHandler(db, cfg.Sales.DefaultCommission, cfg.Sales.RewardUnitThreshold)
	affiliatesHandler := affiliates.NewAffiliatesHandler(db)
	salesHandler := sales.NewSalesHandler(db, redisClient)
	reportsHandler := reports.NewReportsHandler(db)

	r := gin.Default()

	r.Use(middleware.CORS())
	r.Use(middleware.RateLimit(cfg.Server.RateLimit))

	// --- Public API Group ---
	public := r.Group("/api/v1")
	{
		auth := public.Group("/auth")
		{
			auth.POST("/login", usersHandler.Login)
			auth.POST("/register", usersHandler.Register)
		}
	}

	// --- Protected API Group ---
	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth(jwtSecret))
	{
		usersGroup := protected.Group("/users")
		{
			usersGroup.GET("", middleware.RequireRole(models.RoleAdmin), usersHandler.ListUsers)
			usersGroup.GET("/available-for-partner", partnersHandler.ListAvailableUsers)
		}

		products := protected.Group("/products")
		{
			products.GET("", catalogHandler.ListProducts)
			products.GET("/low-stock", catalogHandler.ListLowStock)
			products.GET("/:id", catalogHandler.GetProduct)
			products.POST("", middleware.RequireRole(models.RoleAdmin), catalogHandler.CreateProduct)
			products.PUT("/:id", middleware.RequireRole(models.RoleAdmin), catalogHandler.UpdateProduct)
			products.DELETE("/:id", middleware.RequireRole(models.RoleAdmin), catalogHandler.DeleteProduct)
		}

		clientsGroup := protected.Group("/clients")
		{
			clientsGroup.GET("", clientsHandler.ListClients)
			clientsGroup.POST("", clientsHandler.CreateClient)
			clientsGroup.PUT("/:id", clientsHandler.UpdateClient)
			clientsGroup.DELETE("/:id", clientsHandler.DeleteClient)
		}

		partnersGroup := protected.Group("/partners")
		{
			partnersGroup.GET("", partnersHandler.ListPartners)
			partnersGroup.POST("", partnersHandler.CreatePartner)
			partnersGroup.PUT("/:id", partnersHandler.UpdatePartner)
			partnersGroup.DELETE("/:id", partnersHandler.DeletePartner)
		}

		affiliatesGroup := protected.Group("/affiliates")
		{
			affiliatesGroup.GET("", affiliatesHandler.ListAffiliates)
			affiliatesGroup.POST("", affiliatesHandler.CreateAffiliate)
			affiliatesGroup.PUT("/:id", affiliatesHandler.UpdateAffiliate)
			affiliatesGroup.DELETE("/:id", affiliatesHandler.DeleteAffiliate)
		}

		salesGroup := protected.Group("/sales")
		{
			salesGroup.POST("", salesHandler.CreateSale)
			salesGroup.GET("", salesHandler.ListSales)
			salesGroup.GET("/:id", salesHandler.GetSale)
		}

		dashboard := protected.Group("/dashboard")
		{
			dashboard.GET("/stats", reportsHandler.DashboardStats)
		}
	}

	log.Printf("Server listening on :%s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
