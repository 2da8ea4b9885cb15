package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/gulfautoparts/partsbot-backend/database"
	"github.com/gulfautoparts/partsbot-backend/internal/handlers"
	"github.com/gulfautoparts/partsbot-backend/internal/jobs"
	"github.com/gulfautoparts/partsbot-backend/internal/models"
	"github.com/gulfautoparts/partsbot-backend/internal/routes"
	"github.com/gulfautoparts/partsbot-backend/internal/services"
	"github.com/gulfautoparts/partsbot-backend/internal/storage"
)

func main() {
	// Load .env file for local development
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		err := godotenv.Load(".env")
		if err != nil {
			err = godotenv.Load("environments/.env.development")
			if err != nil {
				log.Println("⚠️  No .env file found - checking environment variables")
			}
		}
	}

	// Initialize storage
	var store storage.Store
	var db *gorm.DB

	if os.Getenv("USE_MEMORY_STORE") == "true" {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		log.Println("📦 Connecting to PostgreSQL database...")
		database.Connect()
		db = database.DB

		log.Println("🔄 Running database migrations...")
		if err := db.AutoMigrate(&models.Part{}, &models.Lead{}); err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		log.Println("✅ Database migrations completed!")

		store = storage.NewDatabaseStore(db)
	}
	storage.SetStore(store)

	// Initialize transport
	twilioService, err := services.NewTwilioService()
	if err != nil {
		log.Fatal("Failed to initialize Twilio service:", err)
	}
	services.SetTwilioService(twilioService)
	log.Println("✅ Twilio service initialized")

	// Initialize collaborators
	responder, err := services.NewOpenAIResponder()
	if err != nil {
		log.Fatal("Failed to initialize LLM responder:", err)
	}

	catalog, err := services.NewScraperCatalogClient()
	if err != nil {
		log.Fatal("Failed to initialize catalog client:", err)
	}

	mediaClient, err := services.NewTwilioMediaClient()
	if err != nil {
		log.Fatal("Failed to initialize media client:", err)
	}

	mediaAI, err := services.NewMediaAIClient()
	if err != nil {
		log.Fatal("Failed to initialize media AI client:", err)
	}

	// Initialize the core pipeline
	sessionManager := services.NewSessionManager()
	buffer := services.NewMessageBuffer()
	normalizer := services.NewNormalizer(mediaClient, mediaAI, mediaAI, mediaAI)
	leadService := services.NewLeadService(store)
	pipeline := services.NewPipeline(store, sessionManager, catalog, responder, leadService)
	dispatcher := services.NewDispatcher(twilioService)

	// Background workers for fire-and-forget batch jobs
	pool := jobs.NewPool(8)
	pool.Start()

	collector := services.NewCollector(buffer, normalizer, pipeline, dispatcher, pool)

	// Scheduled buffer maintenance
	maintenanceJob := jobs.NewMaintenanceJob(buffer)
	maintenanceJob.Start()

	log.Println("✅ All services initialized and scheduled jobs started")

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "PartsBot Backend v1.0.0",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// Setup routes
	whatsappHandler := handlers.NewWhatsAppHandler(collector)
	healthHandler := handlers.NewHealthHandler(db, sessionManager)
	routes.SetupRoutes(app, whatsappHandler, healthHandler)

	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("\n🛑 Gracefully shutting down...")
		log.Println("⏹️  Stopping maintenance jobs...")
		maintenanceJob.Stop()
		log.Println("⏹️  Draining worker pool...")
		pool.Stop()
		sessionManager.Stop()
		log.Println("⏹️  Shutting down server...")
		_ = app.Shutdown()
	}()

	// Start server
	log.Println("========================================")
	log.Printf("🚀 PartsBot Backend starting on port %s", port)
	log.Printf("📊 Storage: %s", storageType())
	log.Println("📱 WhatsApp transport: Twilio")
	log.Println("========================================")

	log.Fatal(app.Listen(":" + port))
}

func storageType() string {
	if os.Getenv("USE_MEMORY_STORE") == "true" {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}
