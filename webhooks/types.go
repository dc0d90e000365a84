package webhooks

// ZokoWebhookPayload represents an event pushed by the Zoko platform.
// Inbound customer messages, outbound echoes, and delivery receipts all
// arrive on the same hook and are told apart by event and direction.
type ZokoWebhookPayload struct {
	Event             string       `json:"event"`
	ID                string       `json:"id"`
	Platform          string       `json:"platform"`
	Direction         string       `json:"direction"`
	Type              string       `json:"type"`
	Text              string       `json:"text"`
	DeliveryStatus    string       `json:"deliveryStatus"`
	PlatformSenderID  string       `json:"platformSenderId"`
	PlatformTimestamp string       `json:"platformTimestamp"`
	SenderName        string       `json:"senderName"`
	CustomerName      string       `json:"customerName"`
	Customer          *Customer    `json:"customer,omitempty"`
	Interactive       *Interactive `json:"interactive,omitempty"`
}

// Customer identifies the WhatsApp customer on the Zoko account
type Customer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Interactive carries the selection a customer made in a list or button
// message
type Interactive struct {
	ListReply   *Reply `json:"list_reply,omitempty"`
	ButtonReply *Reply `json:"button_reply,omitempty"`
}

// Reply is one selected list row or button
type Reply struct {
	ID      string `json:"id"`
	Payload string `json:"payload"`
	Title   string `json:"title"`
}
