package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/gulfautoparts/partsbot-backend/internal/handlers"
	"github.com/gulfautoparts/partsbot-backend/internal/middleware"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, whatsapp *handlers.WhatsAppHandler, health *handlers.HealthHandler) {

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "PartsBot Backend",
			"version": "1.0.0",
			"endpoints": fiber.Map{
				"health":        "/health",
				"webhook":       "/webhook/whatsapp",
				"test_whatsapp": "/test/whatsapp",
			},
		})
	})

	app.Get("/health", health.HandleHealth)

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	// WhatsApp webhook - ENVIRONMENT-AWARE VALIDATION
	if os.Getenv("ENVIRONMENT") == "development" || os.Getenv("DISABLE_WEBHOOK_VALIDATION") == "true" {
		// Development: Skip validation for ngrok
		webhooks.Post("/whatsapp", whatsapp.HandleWebhook)
		if os.Getenv("ENVIRONMENT") == "development" {
			log.Println("⚠️  WhatsApp webhook validation DISABLED for development")
		}
	} else {
		// Production: Validate webhook signature
		webhooks.Post("/whatsapp", middleware.ValidateTwilioSignature(), whatsapp.HandleWebhook)
	}

	// ========== TEST ROUTES (Development Only) ==========
	app.Post("/test/whatsapp", whatsapp.HandleTestWebhook)
}
