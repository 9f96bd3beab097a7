package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"classledger/internal/adapters/http/middleware"
	"classledger/internal/adapters/http/routes"
	"classledger/internal/adapters/persistence/models"
	"classledger/internal/adapters/persistence/repositories"
	"classledger/internal/config"
	"classledger/internal/core/services"

	"github.com/gofiber/fiber/v2"

	_ "classledger/docs" // Swagger docs
)

// @title ClassLedger API
// @version 1.0
// @description Student credit ledger and attendance check-in API
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@classledger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer config.CloseDatabase(db)

	// Auto migrate (creates tables if not exist)
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("❌ Failed to auto migrate: %v", err)
	}
	log.Println("✅ Database migration completed")

	// Seed master data
	if err := config.SeedMasterData(db); err != nil {
		log.Printf("⚠️ Warning: Failed to seed master data: %v", err)
	}

	// Nightly expiry sweep (02:30 daily)
	expiryService := services.NewExpiryService(repositories.NewCreditRepository(db))
	expiryService.Start()
	defer expiryService.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "ClassLedger API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	// Setup middlewares
	middleware.Setup(app, cfg)

	// Setup routes (pass db and cfg for dependency injection)
	routes.Setup(app, db, cfg)

	// Graceful shutdown
	go gracefulShutdown(app)

	// Start server
	log.Printf("🚀 Server starting on port %s [MODE: %s]", cfg.Port, cfg.AppMode)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("❌ Error during shutdown: %v", err)
	}
	log.Println("✅ Server stopped gracefully")
}
