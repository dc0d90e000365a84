package models

import (
	"encoding/json"
	"fmt"
)

// Channel constants for outbound WhatsApp messages.
const (
	// UpsellTemplateID is the only button template the channel accepts for
	// product cards; upstream-provided template ids are ignored.
	UpsellTemplateID = "zoko_upsell_product_01"

	// Field limits enforced by the interactive list template.
	ListTitleMaxLen       = 24
	ListDescriptionMaxLen = 72
	ListMaxItems          = 10

	// DefaultItemDescription fills list item descriptions that are empty
	// after cleaning.
	DefaultItemDescription = "No description available"

	// DefaultListHeader and DefaultListBody fill interactive lists whose
	// upstream payload omits them.
	DefaultListHeader = "LEVA Houses"
	DefaultListBody   = "Choose an option:"
)

// CanonicalMessage is the closed set of message shapes the pipeline moves
// around: plain text, a button template card, an interactive list, or an
// agent tool plan. The gateway switches exhaustively over these; adding a
// variant means adding a send path.
type CanonicalMessage interface {
	WhatsappType() string
}

// TextMessage is a plain text reply.
type TextMessage struct {
	Body string `json:"message"`
}

func (TextMessage) WhatsappType() string { return "text" }

// ButtonMessage is a single-product rich card, addressed by template id
// with positional string arguments.
type ButtonMessage struct {
	TemplateID string   `json:"template_id"`
	Args       []string `json:"template_args"`
}

func (ButtonMessage) WhatsappType() string { return "buttonTemplate" }

// ListItem is one selectable row of an interactive list.
type ListItem struct {
	ID          string `json:"id"`
	Payload     string `json:"payload"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ListMessage is a multi-item selectable menu.
type ListMessage struct {
	Header string     `json:"header"`
	Body   string     `json:"body"`
	Items  []ListItem `json:"items"`
}

func (ListMessage) WhatsappType() string { return "interactive_list" }

// ToolInvocation is an agent instruction to run a named backend operation.
// It is an intermediate state and is never sent to the channel.
type ToolInvocation struct {
	ToolName string         `json:"tool_code"`
	Args     map[string]any `json:"tool_args,omitempty"`
}

func (ToolInvocation) WhatsappType() string { return "tool_invocation" }

// EncodeMessage serializes a canonical message to its wire JSON form, the
// same flat shape the parser accepts back.
func EncodeMessage(m CanonicalMessage) (string, error) {
	var payload any
	switch msg := m.(type) {
	case TextMessage:
		payload = struct {
			WhatsappType string `json:"whatsapp_type"`
			TextMessage
		}{msg.WhatsappType(), msg}
	case ButtonMessage:
		payload = struct {
			WhatsappType string `json:"whatsapp_type"`
			ButtonMessage
		}{msg.WhatsappType(), msg}
	case ListMessage:
		payload = struct {
			WhatsappType string `json:"whatsapp_type"`
			ListMessage
		}{msg.WhatsappType(), msg}
	case ToolInvocation:
		payload = msg
	default:
		return "", fmt.Errorf("unknown message variant %T", m)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s message: %w", m.WhatsappType(), err)
	}
	return string(data), nil
}
