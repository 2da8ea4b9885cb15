package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/gulfautoparts/partsbot-backend/internal/services"
)

// HealthHandler reports service and dependency status for monitoring
type HealthHandler struct {
	db       *gorm.DB // nil when running on the memory store
	sessions *services.SessionManager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *gorm.DB, sessions *services.SessionManager) *HealthHandler {
	return &HealthHandler{db: db, sessions: sessions}
}

// HandleHealth returns overall service health with dependency checks
func (h *HealthHandler) HandleHealth(c *fiber.Ctx) error {
	status := "healthy"
	statusCode := fiber.StatusOK

	dbHealthy := true
	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err != nil || sqlDB.Ping() != nil {
			dbHealthy = false
			status = "unhealthy"
			statusCode = fiber.StatusServiceUnavailable
		}
	}

	twilioHealthy := services.GetTwilioService() != nil

	return c.Status(statusCode).JSON(fiber.Map{
		"status": status,
		"services": fiber.Map{
			"database": dbHealthy,
			"twilio":   twilioHealthy,
			"sessions": h.sessions.ActiveCount(),
		},
	})
}
