package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"whatsapp-bot/models"
)

// phonePattern accepts international numbers with an optional leading plus.
var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{9,14}$`)

// defaultListEndpoints are the Zoko endpoints that accept interactive list
// payloads, in the order they are tried. Not every account has the list
// feature enabled on the primary message endpoint.
var defaultListEndpoints = []string{
	"https://chat.api.zoko.io/v2/account/templates",
	"https://chat.zoko.io/v2/account/templates",
	"https://chat.zoko.io/v2/message",
	"https://chat.api.zoko.io/v2/message",
}

type zokoTextPayload struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Type      string `json:"type"`
	Message   string `json:"message"`
}

type zokoTemplatePayload struct {
	Channel      string   `json:"channel"`
	Recipient    string   `json:"recipient"`
	Type         string   `json:"type"`
	TemplateID   string   `json:"templateId"`
	TemplateArgs []string `json:"templateArgs"`
}

type zokoListPayload struct {
	Channel         string              `json:"channel"`
	Recipient       string              `json:"recipient"`
	Type            string              `json:"type"`
	InteractiveList zokoInteractiveList `json:"interactiveList"`
}

type zokoInteractiveList struct {
	Body zokoListText `json:"body"`
	List zokoList     `json:"list"`
}

type zokoListText struct {
	Text string `json:"text"`
}

type zokoList struct {
	Title    string            `json:"title"`
	Header   zokoListText      `json:"header"`
	Sections []zokoListSection `json:"sections"`
}

type zokoListSection struct {
	Title string            `json:"title"`
	Items []models.ListItem `json:"items"`
}

// ZokoClient delivers canonical messages over the Zoko WhatsApp API.
type ZokoClient struct {
	apiURL        string
	apiKey        string
	sendDelay     time.Duration
	retry         RetryPolicy
	limiter       *RateLimiter
	listEndpoints []string
	httpClient    *http.Client
}

// NewZokoClient builds the gateway client. A nil limiter disables outbound
// rate limiting.
func NewZokoClient(apiURL, apiKey string, sendDelay time.Duration, limiter *RateLimiter) *ZokoClient {
	return &ZokoClient{
		apiURL:        apiURL,
		apiKey:        apiKey,
		sendDelay:     sendDelay,
		retry:         DefaultRetryPolicy(),
		limiter:       limiter,
		listEndpoints: defaultListEndpoints,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

// validatePhone checks the recipient number and strips the leading plus
// the API does not accept.
func validatePhone(chatID string) (string, error) {
	if !phonePattern.MatchString(chatID) {
		return "", fmt.Errorf("invalid WhatsApp number format: %s", chatID)
	}
	return strings.TrimPrefix(chatID, "+"), nil
}

// Send delivers one canonical message. Every message variant is handled
// here; a tool invocation reaching the gateway is a pipeline bug and is
// rejected.
func (z *ZokoClient) Send(ctx context.Context, chatID string, message models.CanonicalMessage) error {
	recipient, err := validatePhone(chatID)
	if err != nil {
		return err
	}

	switch m := message.(type) {
	case models.TextMessage:
		slog.Info("Sending text message", "recipient", recipient)
		return z.sendPayload(ctx, "text message", zokoTextPayload{
			Channel:   "whatsapp",
			Recipient: recipient,
			Type:      m.WhatsappType(),
			Message:   m.Body,
		})
	case models.ButtonMessage:
		slog.Info("Sending button template", "recipient", recipient, "template_id", m.TemplateID)
		return z.sendPayload(ctx, "button template", zokoTemplatePayload{
			Channel:      "whatsapp",
			Recipient:    recipient,
			Type:         m.WhatsappType(),
			TemplateID:   m.TemplateID,
			TemplateArgs: m.Args,
		})
	case models.ListMessage:
		return z.sendList(ctx, recipient, m)
	case models.ToolInvocation:
		return fmt.Errorf("tool invocation %q is not a sendable message", m.ToolName)
	default:
		return fmt.Errorf("unsupported message type %T", message)
	}
}

// SendText delivers a plain text message.
func (z *ZokoClient) SendText(ctx context.Context, chatID, text string) error {
	return z.Send(ctx, chatID, models.TextMessage{Body: text})
}

// SendAll delivers a message sequence in order, pausing between messages
// so WhatsApp shows them in the order they were built. Failed messages are
// logged and skipped so one bad message does not silence the rest of the
// reply; the last failure is reported.
func (z *ZokoClient) SendAll(ctx context.Context, chatID string, messages []models.CanonicalMessage) error {
	var lastErr error
	for i, message := range messages {
		if i > 0 && z.sendDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(z.sendDelay):
			}
		}
		if err := z.Send(ctx, chatID, message); err != nil {
			slog.Error("Failed to send message", "recipient", chatID, "position", i, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

func (z *ZokoClient) sendPayload(ctx context.Context, operation string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", operation, err)
	}
	return z.retry.Do(ctx, operation, func() (int, error) {
		return z.post(ctx, z.apiURL, body)
	})
}

// sendList tries every known list endpoint in order and succeeds on the
// first accepted delivery. A full sweep with only transient failures is
// retried as a unit.
func (z *ZokoClient) sendList(ctx context.Context, recipient string, m models.ListMessage) error {
	if len(m.Items) == 0 {
		return fmt.Errorf("interactive list has no items")
	}

	payload := zokoListPayload{
		Channel:   "whatsapp",
		Recipient: recipient,
		Type:      m.WhatsappType(),
		InteractiveList: zokoInteractiveList{
			Body: zokoListText{Text: m.Body},
			List: zokoList{
				Title:  m.Header,
				Header: zokoListText{Text: m.Header},
				Sections: []zokoListSection{
					{Title: m.Header, Items: m.Items},
				},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling interactive list: %w", err)
	}

	return z.retry.Do(ctx, "interactive list", func() (int, error) {
		var lastStatus int
		var lastErr error
		for _, endpoint := range z.listEndpoints {
			status, err := z.post(ctx, endpoint, body)
			if err == nil {
				slog.Info("Interactive list sent", "recipient", recipient, "endpoint", endpoint)
				return status, nil
			}
			slog.Warn("Interactive list endpoint failed", "endpoint", endpoint, "status", status, "error", err)
			lastStatus, lastErr = status, err
		}
		return lastStatus, lastErr
	})
}

// post performs one API call and reports the HTTP status for retry
// decisions. Status 0 means the request never got a response.
func (z *ZokoClient) post(ctx context.Context, url string, body []byte) (int, error) {
	if z.limiter != nil {
		if err := z.limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("content-type", "application/json")
	if z.apiKey != "" {
		req.Header.Set("apikey", z.apiKey)
	}

	resp, err := z.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("zoko returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return resp.StatusCode, nil
}
