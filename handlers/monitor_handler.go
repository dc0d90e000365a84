package handlers

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"whatsapp-bot/services"
)

const (
	monitorWriteWait  = 10 * time.Second
	monitorPongWait   = 60 * time.Second
	monitorPingPeriod = 54 * time.Second
	monitorMaxMsgSize = 512 * 1024
)

// MonitorMessage is a control frame sent by a monitoring client
type MonitorMessage struct {
	Type string `json:"type"`
}

// MonitorUpgrade gates the websocket endpoint to real upgrade requests
func MonitorUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// HandleMonitor serves one pipeline monitoring connection. Every
// pipeline event published to the hub is fanned out to it as JSON.
func HandleMonitor(c *websocket.Conn) {
	conn := &services.MonitorConnection{
		ID:   uuid.New().String(),
		Conn: c,
		Send: make(chan []byte, 256),
	}

	hub := services.GetEventHub()
	hub.Register(conn)
	defer hub.Unregister(conn.ID)

	slog.Info("Monitor connected", "connection_id", conn.ID)

	welcome, _ := json.Marshal(fiber.Map{
		"type":          "connected",
		"connection_id": conn.ID,
	})
	if err := hub.SendToConnection(conn.ID, welcome); err != nil {
		slog.Warn("Failed to send welcome message", "connection_id", conn.ID, "error", err)
	}

	go monitorSendPump(conn)
	monitorReceivePump(conn)
}

// monitorSendPump writes queued events and keepalive pings
func monitorSendPump(conn *services.MonitorConnection) {
	ticker := time.NewTicker(monitorPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(monitorWriteWait))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Warn("Monitor write failed", "connection_id", conn.ID, "error", err)
				return
			}
		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(monitorWriteWait))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// monitorReceivePump reads control messages until the client goes away
func monitorReceivePump(conn *services.MonitorConnection) {
	conn.Conn.SetReadLimit(monitorMaxMsgSize)
	conn.Conn.SetReadDeadline(time.Now().Add(monitorPongWait))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(monitorPongWait))
		return nil
	})

	for {
		_, raw, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Monitor connection closed unexpectedly", "connection_id", conn.ID, "error", err)
			}
			return
		}

		var msg MonitorMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			slog.Warn("Invalid monitor message", "connection_id", conn.ID, "error", err)
			continue
		}

		switch msg.Type {
		case "ping":
			pong, _ := json.Marshal(fiber.Map{"type": "pong"})
			select {
			case conn.Send <- pong:
			default:
			}
		default:
			slog.Warn("Unknown monitor message type", "connection_id", conn.ID, "type", msg.Type)
		}
	}
}
