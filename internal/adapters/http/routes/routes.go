package routes

import (
	"classledger/internal/adapters/http/handlers"
	"classledger/internal/adapters/http/middleware"
	"classledger/internal/adapters/persistence/repositories"
	"classledger/internal/config"
	"classledger/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"gorm.io/gorm"
)

// Setup configures all routes for the application
func Setup(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	// Repositories
	userRepo := repositories.NewUserRepository(db)
	refreshTokenRepo := repositories.NewRefreshTokenRepository(db)
	studentRepo := repositories.NewStudentRepository(db)
	catalogRepo := repositories.NewCatalogRepository(db)
	creditRepo := repositories.NewCreditRepository(db)
	attendanceRepo := repositories.NewAttendanceRepository(db)
	adjustmentRepo := repositories.NewAdjustmentRepository(db)

	// Services
	authService := services.NewAuthService(userRepo, refreshTokenRepo, cfg)
	studentService := services.NewStudentService(studentRepo)
	catalogService := services.NewCatalogService(catalogRepo)
	creditService := services.NewCreditService(db, creditRepo, studentRepo, catalogRepo)
	attendanceService := services.NewAttendanceService(db, creditRepo, attendanceRepo, studentRepo, catalogRepo)
	adjustmentService := services.NewAdjustmentService(db, creditRepo, adjustmentRepo)

	// Handlers
	healthHandler := handlers.NewHealthHandler(db)
	authHandler := handlers.NewAuthHandler(authService)
	studentHandler := handlers.NewStudentHandler(studentService)
	catalogHandler := handlers.NewCatalogHandler(catalogService)
	creditHandler := handlers.NewCreditHandler(creditService)
	attendanceHandler := handlers.NewAttendanceHandler(attendanceService)
	adjustmentHandler := handlers.NewAdjustmentHandler(adjustmentService)

	// Health & docs
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)
	app.Get("/swagger/*", swagger.HandlerDefault)

	api := app.Group("/api/v1")

	// Auth (rate-limited harder than the rest)
	auth := api.Group("/auth")
	auth.Post("/register", middleware.AuthRateLimiter(), authHandler.Register)
	auth.Post("/login", middleware.AuthRateLimiter(), authHandler.Login)
	auth.Post("/refresh", middleware.AuthRateLimiter(), authHandler.Refresh)
	auth.Post("/logout", middleware.AuthMiddleware(cfg), authHandler.Logout)

	// Everything below requires an authenticated actor
	protected := api.Group("", middleware.AuthMiddleware(cfg))

	// Student directory
	protected.Post("/students", studentHandler.Create)
	protected.Get("/students", studentHandler.List)
	protected.Get("/students/:id", studentHandler.Get)
	protected.Get("/students/:id/credits", creditHandler.StudentCredits)
	protected.Get("/students/:id/adjustments", adjustmentHandler.StudentAdjustments)

	// Catalog
	protected.Post("/courses", middleware.AdminOnly(), catalogHandler.CreateCourse)
	protected.Get("/courses", catalogHandler.ListCourses)
	protected.Get("/courses/:id", catalogHandler.GetCourse)
	protected.Get("/courses/:id/enrollment", creditHandler.CourseEnrollment)
	protected.Post("/packages", middleware.AdminOnly(), catalogHandler.CreatePackage)
	protected.Get("/packages", catalogHandler.ListPackages)
	protected.Get("/packages/:id", catalogHandler.GetPackage)

	// Credit ledger
	protected.Post("/credits/purchase", creditHandler.Purchase)
	protected.Get("/credits", creditHandler.ListCredits)
	protected.Post("/credits/:id/adjust", middleware.StaffOrAdmin(), adjustmentHandler.Adjust)
	protected.Get("/credits/:id/adjustments", adjustmentHandler.CreditAdjustments)
	protected.Post("/credits/:id/suspend", middleware.StaffOrAdmin(), creditHandler.Suspend)
	protected.Post("/credits/:id/resume", middleware.StaffOrAdmin(), creditHandler.Resume)

	// Attendance engine
	protected.Post("/attendance/checkin", attendanceHandler.CheckIn)
	protected.Get("/attendance", attendanceHandler.History)
	protected.Delete("/attendance/:id", attendanceHandler.Cancel)
}
