package handlers

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gulfautoparts/partsbot-backend/internal/services"
)

// WhatsAppHandler handles WhatsApp webhook requests
type WhatsAppHandler struct {
	collector *services.Collector
}

// NewWhatsAppHandler creates a new WhatsApp handler
func NewWhatsAppHandler(collector *services.Collector) *WhatsAppHandler {
	return &WhatsAppHandler{collector: collector}
}

// TwilioWebhookPayload represents an incoming WhatsApp message from Twilio
type TwilioWebhookPayload struct {
	MessageSid        string `form:"MessageSid"`
	AccountSid        string `form:"AccountSid"`
	From              string `form:"From"` // WhatsApp number (whatsapp:+919876543210)
	To                string `form:"To"`   // Your Twilio number
	Body              string `form:"Body"` // Message text
	NumMedia          string `form:"NumMedia"`
	MessageStatus     string `form:"MessageStatus"` // present on status callbacks only
	MediaUrl0         string `form:"MediaUrl0"`
	MediaContentType0 string `form:"MediaContentType0"`
}

// HandleWebhook buffers incoming WhatsApp messages and acknowledges
// immediately. All processing happens on the worker pool; Twilio retries
// on slow responses, so nothing here may block.
func (h *WhatsAppHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Printf("Error parsing webhook: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	// Delivery-status callbacks carry no message content.
	if payload.MessageStatus != "" || payload.From == "" {
		return c.SendStatus(fiber.StatusOK)
	}

	from := strings.TrimPrefix(payload.From, "whatsapp:")
	log.Printf("📱 WhatsApp message from %s (sid %s)", from, payload.MessageSid)

	// Drop redelivered webhook events before they reach the buffer.
	if !h.collector.Seen(payload.MessageSid) {
		log.Printf("⏭ Skip duplicate: %s", payload.MessageSid)
		return c.SendStatus(fiber.StatusOK)
	}

	for _, item := range itemsFromPayload(c, &payload) {
		h.collector.Enqueue(from, item)
	}

	// Acknowledge webhook receipt
	return c.SendStatus(fiber.StatusOK)
}

// itemsFromPayload converts one webhook delivery into buffered items: an
// optional text body plus any number of media attachments.
func itemsFromPayload(c *fiber.Ctx, payload *TwilioWebhookPayload) []services.Item {
	var items []services.Item

	if body := strings.TrimSpace(payload.Body); body != "" {
		items = append(items, services.Item{Type: services.ItemText, Content: body})
	}

	numMedia, _ := strconv.Atoi(payload.NumMedia)
	for i := 0; i < numMedia; i++ {
		mediaURL := c.FormValue(fmt.Sprintf("MediaUrl%d", i))
		if mediaURL == "" {
			continue
		}
		contentType := c.FormValue(fmt.Sprintf("MediaContentType%d", i))

		switch {
		case strings.HasPrefix(contentType, "image/"):
			items = append(items, services.Item{Type: services.ItemImage, Content: mediaURL})
		case strings.HasPrefix(contentType, "audio/"):
			items = append(items, services.Item{Type: services.ItemAudio, Content: mediaURL})
		default:
			items = append(items, services.Item{
				Type:    services.ItemDocument,
				Content: mediaURL,
				Extra:   documentFilename(contentType, i),
			})
		}
	}

	return items
}

// documentFilename guesses a filename for a document attachment; Twilio
// does not forward the original name.
func documentFilename(contentType string, index int) string {
	ext := ".bin"
	switch contentType {
	case "application/pdf":
		ext = ".pdf"
	case "application/vnd.ms-excel":
		ext = ".xls"
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		ext = ".xlsx"
	case "text/csv":
		ext = ".csv"
	}
	return fmt.Sprintf("document-%d%s", index, ext)
}

// TestWebhookPayload is the development-only JSON test payload
type TestWebhookPayload struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// HandleTestWebhook accepts plain JSON text messages for development
// without a Twilio sandbox.
func (h *WhatsAppHandler) HandleTestWebhook(c *fiber.Ctx) error {
	var payload TestWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test payload",
		})
	}
	if payload.From == "" || payload.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "from and message are required",
		})
	}

	log.Printf("🧪 Test webhook received from %s: %s", payload.From, payload.Message)
	h.collector.Enqueue(payload.From, services.Item{
		Type:    services.ItemText,
		Content: payload.Message,
	})

	return c.JSON(fiber.Map{
		"success": true,
		"status":  "buffered",
	})
}
