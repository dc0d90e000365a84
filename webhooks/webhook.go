package webhooks

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"whatsapp-bot/handlers"
)

// botEchoPrefixes mark messages the bot itself wrote that Zoko sometimes
// replays as user input.
var botEchoPrefixes = []string{
	"I'm having trouble processing your request",
	"Hello! 👋",
}

func RegisterRoutes(app *fiber.App, processor *handlers.MessageProcessor) {
	webhook := app.Group("/webhook")

	// Zoko event handler
	webhook.Post("/zoko", handleZokoEvent(processor))
}

// handleZokoEvent filters incoming Zoko events down to real customer
// messages and hands them to the pipeline
func handleZokoEvent(processor *handlers.MessageProcessor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ZokoWebhookPayload
		if err := c.BodyParser(&body); err != nil {
			slog.Error("Failed to parse webhook body", "error", err)
			return c.SendStatus(fiber.StatusBadRequest)
		}

		// Delivery receipts and outbound messages arrive on the same hook
		if body.Event != "message:user:in" {
			slog.Info("Skipping non-user event", "event", body.Event)
			return c.SendString("EVENT_RECEIVED")
		}
		if body.Direction != "FROM_CUSTOMER" {
			slog.Info("Skipping non-customer message", "direction", body.Direction)
			return c.SendString("EVENT_RECEIVED")
		}

		// A list selection carries the chosen row; prefer it over the
		// echoed row title in text
		text := body.Text
		if body.Interactive != nil && body.Interactive.ListReply != nil {
			if reply := body.Interactive.ListReply; reply.ID != "" {
				text = reply.ID
			} else if reply.Payload != "" {
				text = reply.Payload
			}
		}

		if body.PlatformSenderID == "" || text == "" || body.ID == "" {
			slog.Error("Invalid webhook payload", "chatID", body.PlatformSenderID, "messageID", body.ID)
			return c.JSON(fiber.Map{"status": "error", "message": "Missing chat_id, text, or id"})
		}

		for _, prefix := range botEchoPrefixes {
			if strings.HasPrefix(text, prefix) {
				slog.Info("Skipping bot echo", "messageID", body.ID)
				return c.SendString("EVENT_RECEIVED")
			}
		}

		senderName := body.SenderName
		if senderName == "" {
			senderName = body.CustomerName
		}
		if senderName == "" && body.Customer != nil {
			senderName = body.Customer.Name
		}

		inbound := handlers.InboundMessage{
			ChatID:     body.PlatformSenderID,
			MessageID:  body.ID,
			Text:       text,
			SenderName: senderName,
		}

		// Process asynchronously and acknowledge immediately
		go processor.Process(inbound)

		return c.SendString("EVENT_RECEIVED")
	}
}
