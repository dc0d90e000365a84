package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// WebSocket errors
var (
	ErrConnectionNotFound   = errors.New("connection not found")
	ErrConnectionBufferFull = errors.New("connection buffer full")
)

// Pipeline stages published to monitor clients.
const (
	EventReceived       = "received"
	EventDuplicate      = "dropped_duplicate"
	EventParsed         = "parsed"
	EventToolDispatched = "tool_dispatched"
	EventBuilt          = "built"
	EventSent           = "sent"
	EventFailed         = "failed"
)

// PipelineEvent is one stage transition for one inbound message.
type PipelineEvent struct {
	Stage     string `json:"stage"`
	ChatID    string `json:"chat_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// MonitorConnection represents a single attached monitor client
type MonitorConnection struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
}

// EventHub fans pipeline events out to monitor WebSocket clients. Slow
// clients are skipped, never waited on.
type EventHub struct {
	connections map[string]*MonitorConnection
	mu          sync.RWMutex
	events      chan PipelineEvent
}

var eventHub *EventHub
var eventHubOnce sync.Once

// GetEventHub returns the singleton event hub
func GetEventHub() *EventHub {
	eventHubOnce.Do(func() {
		eventHub = &EventHub{
			connections: make(map[string]*MonitorConnection),
			events:      make(chan PipelineEvent, 100),
		}
		go eventHub.run()
	})
	return eventHub
}

// Register attaches a monitor client
func (h *EventHub) Register(conn *MonitorConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[conn.ID] = conn

	slog.Info("Monitor connection registered",
		"connectionID", conn.ID,
		"totalConnections", len(h.connections))
}

// Unregister detaches a monitor client and closes its send channel
func (h *EventHub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, exists := h.connections[id]; exists {
		close(conn.Send)
		delete(h.connections, id)

		slog.Info("Monitor connection unregistered",
			"connectionID", id,
			"remainingConnections", len(h.connections))
	}
}

// Publish queues a pipeline event for delivery. It never blocks message
// processing; when the hub is saturated the event is dropped.
func (h *EventHub) Publish(stage, chatID, messageID, detail string) {
	event := PipelineEvent{
		Stage:     stage,
		ChatID:    chatID,
		MessageID: messageID,
		Detail:    detail,
		Timestamp: time.Now().Unix(),
	}
	select {
	case h.events <- event:
	default:
		slog.Warn("Event hub saturated, dropping event", "stage", stage)
	}
}

// run processes queued events
func (h *EventHub) run() {
	for event := range h.events {
		jsonData, err := json.Marshal(event)
		if err != nil {
			slog.Error("Failed to marshal pipeline event", "error", err)
			continue
		}

		h.mu.RLock()
		for _, conn := range h.connections {
			select {
			case conn.Send <- jsonData:
				// Event sent successfully
			default:
				// Connection buffer full, skip
				slog.Warn("Monitor connection buffer full", "connectionID", conn.ID)
			}
		}
		h.mu.RUnlock()
	}
}

// SendToConnection sends a message to a specific monitor client
func (h *EventHub) SendToConnection(id string, data []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if conn, exists := h.connections[id]; exists {
		select {
		case conn.Send <- data:
			return nil
		default:
			return ErrConnectionBufferFull
		}
	}
	return ErrConnectionNotFound
}

// ConnectionCount returns the number of attached monitor clients
func (h *EventHub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}
