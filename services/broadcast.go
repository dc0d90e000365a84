package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"whatsapp-bot/models"
)

// defaultPromoTemplate is used when a broadcast is requested without a
// message body.
const defaultPromoTemplate = "Hello {name}, check out our latest offers!"

// BroadcastService sends a promotional text to every chat that has talked
// to the bot, localized to each chat's last seen language.
type BroadcastService struct {
	zoko         *ZokoClient
	translateURL string
	sendDelay    time.Duration
}

func NewBroadcastService(zoko *ZokoClient, translateURL string, sendDelay time.Duration) *BroadcastService {
	return &BroadcastService{zoko: zoko, translateURL: translateURL, sendDelay: sendDelay}
}

// Broadcast delivers the message to all known chats. The template may use
// {name}, replaced per recipient. Targets with invalid numbers are skipped
// and failed sends do not stop the run; the outcome is recorded with a
// unique run id.
func (b *BroadcastService) Broadcast(ctx context.Context, message string) (models.BroadcastResult, error) {
	if strings.TrimSpace(message) == "" {
		message = defaultPromoTemplate
	}

	targets, err := GetBroadcastTargets(ctx)
	if err != nil {
		return models.BroadcastResult{}, fmt.Errorf("loading broadcast targets: %w", err)
	}

	result := models.BroadcastResult{RunID: uuid.New().String()}
	slog.Info("Starting broadcast", "runID", result.RunID, "targets", len(targets))

	for i, target := range targets {
		if i > 0 && b.sendDelay > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(b.sendDelay):
			}
		}

		if _, err := validatePhone(target.ChatID); err != nil {
			slog.Warn("Skipping broadcast target with invalid number", "chatID", target.ChatID)
			result.Skipped++
			continue
		}

		name := target.Name
		if name == "" {
			name = target.ChatID
		}
		text := strings.ReplaceAll(message, "{name}", name)
		text = TranslateText(ctx, b.translateURL, text, target.Language)

		if err := b.zoko.SendText(ctx, target.ChatID, text); err != nil {
			slog.Error("Failed to send broadcast message", "chatID", target.ChatID, "error", err)
			result.Failed++
			continue
		}
		result.Sent++
	}

	if err := SaveBroadcastRun(ctx, result); err != nil {
		slog.Error("Failed to record broadcast run", "runID", result.RunID, "error", err)
		// Continue anyway - the messages are already out
	}

	slog.Info("Broadcast completed",
		"runID", result.RunID,
		"sent", result.Sent,
		"failed", result.Failed,
		"skipped", result.Skipped,
	)
	return result, nil
}
