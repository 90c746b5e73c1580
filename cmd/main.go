package main

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"

	"gigbridge/internal/database"
	"gigbridge/internal/handlers"
	"gigbridge/internal/routes"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	}

	// Connect to database
	if err := database.Connect(); err != nil {
		log.Fatal("❌ Failed to connect to database:", err)
	}
	defer database.Close()

	// Run migrations
	if err := database.Migrate(); err != nil {
		log.Fatal("❌ Failed to migrate database:", err)
	}
	log.Println("✅ Database connected and migrated successfully")

	// Initialize services
	handlers.InitEngine(database.NewStore())
	handlers.InitEmailService()
	handlers.InitPaystackService()
	handlers.InitNotificationService()

	// Initialize Cloudinary service
	if err := handlers.InitCloudinaryService(); err != nil {
		log.Fatal("❌ Failed to initialize Cloudinary service:", err)
	}
	log.Println("✅ Cloudinary service initialized successfully")

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:   "GigBridge API v1.0",
		BodyLimit: 10 * 1024 * 1024,
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))

	// Health check route
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to GigBridge API",
			"status":  "running",
			"version": "1.0",
		})
	})

	// Setup application routes
	routes.SetupRoutes(app)
	routes.SetupProfileRoutes(app)
	routes.SetupEngagementRoutes(app)
	routes.SetupWalletRoutes(app)
	routes.SetupNotificationRoutes(app)
	routes.SetupAdminRoutes(app)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("🚀 GigBridge server starting on http://localhost:%s", port)
	log.Fatal(app.Listen(":" + port))
}
