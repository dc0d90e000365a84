package handlers

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"whatsapp-bot/models"
	"whatsapp-bot/services"
)

// InboundMessage carries one customer message from the webhook (kept here
// instead of the webhooks package to avoid an import cycle)
type InboundMessage struct {
	ChatID     string
	MessageID  string
	Text       string
	SenderName string
}

// MessageProcessor runs the conversation pipeline: dedup, language
// detection, agent call, response normalization, tool dispatch, delivery.
type MessageProcessor struct {
	dedup        *services.MessageDeduplicator
	translator   *services.Translator
	claude       *services.ClaudeClient
	normalizer   *services.Normalizer
	dispatcher   *services.ToolDispatcher
	zoko         *services.ZokoClient
	hub          *services.EventHub
	historyLimit int
	storeEnabled bool
}

func NewMessageProcessor(
	dedup *services.MessageDeduplicator,
	translator *services.Translator,
	claude *services.ClaudeClient,
	normalizer *services.Normalizer,
	dispatcher *services.ToolDispatcher,
	zoko *services.ZokoClient,
	hub *services.EventHub,
	storeEnabled bool,
) *MessageProcessor {
	return &MessageProcessor{
		dedup:        dedup,
		translator:   translator,
		claude:       claude,
		normalizer:   normalizer,
		dispatcher:   dispatcher,
		zoko:         zoko,
		hub:          hub,
		historyLimit: 10,
		storeEnabled: storeEnabled,
	}
}

// Process handles one inbound message end to end. It is called in its own
// goroutine after the webhook has been acknowledged, so it owns its context
// and never returns an error; every failure ends as a reply or a log line.
func (p *MessageProcessor) Process(inbound InboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	p.hub.Publish(services.EventReceived, inbound.ChatID, inbound.MessageID, "")

	if p.dedup.Seen(inbound.MessageID) {
		slog.Info("Duplicate message ignored", "messageID", inbound.MessageID, "chatID", inbound.ChatID)
		p.hub.Publish(services.EventDuplicate, inbound.ChatID, inbound.MessageID, "")
		return
	}

	lang := p.translator.Detect(inbound.Text)

	slog.Info("Processing message",
		"chatID", inbound.ChatID,
		"messageID", inbound.MessageID,
		"language", lang,
	)

	if p.storeEnabled {
		userMessage := &models.ChatMessage{
			ChatID:     inbound.ChatID,
			SenderName: inbound.SenderName,
			Message:    inbound.Text,
			Language:   lang,
			IsBot:      false,
		}
		if err := services.SaveChatMessage(ctx, userMessage); err != nil {
			slog.Error("Failed to save user message", "error", err)
		}
	}

	var history []services.ChatHistory
	if p.storeEnabled {
		var err error
		history, err = services.GetChatHistory(ctx, inbound.ChatID, p.historyLimit)
		if err != nil {
			slog.Warn("Failed to fetch chat history", "error", err)
			// Continue without history
			history = nil
		}
	}

	raw, err := p.claude.Respond(ctx, inbound.Text, history)
	if err != nil {
		slog.Error("Agent call failed", "error", err, "chatID", inbound.ChatID)
		p.hub.Publish(services.EventFailed, inbound.ChatID, inbound.MessageID, "agent")
		p.sendFailure(ctx, inbound.ChatID, lang)
		return
	}

	message := p.normalizer.Parse(raw)
	p.hub.Publish(services.EventParsed, inbound.ChatID, inbound.MessageID, message.WhatsappType())

	var outgoing []models.CanonicalMessage
	if inv, ok := message.(models.ToolInvocation); ok {
		outgoing = p.dispatcher.Dispatch(ctx, inv, lang)
		p.hub.Publish(services.EventToolDispatched, inbound.ChatID, inbound.MessageID, inv.ToolName)
	} else {
		outgoing = []models.CanonicalMessage{message}
	}

	// An empty list cannot be delivered; degrade it to a plain apology
	for i, m := range outgoing {
		if list, ok := m.(models.ListMessage); ok && len(list.Items) == 0 {
			outgoing[i] = models.TextMessage{Body: p.translator.Get("try_again", lang, nil)}
		}
	}

	p.hub.Publish(services.EventBuilt, inbound.ChatID, inbound.MessageID, strconv.Itoa(len(outgoing)))

	if err := p.zoko.SendAll(ctx, inbound.ChatID, outgoing); err != nil {
		slog.Error("Failed to deliver reply", "error", err, "chatID", inbound.ChatID)
		p.hub.Publish(services.EventFailed, inbound.ChatID, inbound.MessageID, "delivery")
	} else {
		p.hub.Publish(services.EventSent, inbound.ChatID, inbound.MessageID, strconv.Itoa(len(outgoing)))
	}

	if p.storeEnabled {
		p.saveOutgoing(ctx, inbound.ChatID, lang, outgoing)
	}
}

// sendFailure tells the customer something went wrong, in their language.
func (p *MessageProcessor) sendFailure(ctx context.Context, chatID, lang string) {
	text := p.translator.Get("try_again", lang, nil)
	if err := p.zoko.SendText(ctx, chatID, text); err != nil {
		slog.Error("Failed to send failure message", "error", err, "chatID", chatID)
	}
}

// saveOutgoing records the bot's reply in its canonical wire form so the
// agent sees its own previous answers in the chat history.
func (p *MessageProcessor) saveOutgoing(ctx context.Context, chatID, lang string, messages []models.CanonicalMessage) {
	for _, m := range messages {
		encoded, err := models.EncodeMessage(m)
		if err != nil {
			slog.Error("Failed to encode outgoing message for storage", "error", err)
			continue
		}
		botMessage := &models.ChatMessage{
			ChatID:   chatID,
			Message:  encoded,
			Language: lang,
			IsBot:    true,
		}
		if err := services.SaveChatMessage(ctx, botMessage); err != nil {
			slog.Error("Failed to save bot message", "error", err)
		}
	}
}
