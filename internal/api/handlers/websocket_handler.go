package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/isdelr/dirback/internal/commands"
	"github.com/isdelr/dirback/internal/models"
	"github.com/isdelr/dirback/internal/services"
	ws "github.com/isdelr/dirback/internal/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles upgrading HTTP connections to WebSocket connections.
type WebSocketHandler struct {
	hub        *ws.Hub
	dispatcher services.DispatcherProvider
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(hub *ws.Hub, dispatcher services.DispatcherProvider) *WebSocketHandler {
	return &WebSocketHandler{
		hub:        hub,
		dispatcher: dispatcher,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origins are already restricted by the CORS middleware.
		return true
	},
}

// Serve handles the WebSocket connection request. ?target_id= limits the feed
// to one target.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	client := ws.NewClient(h.hub, conn, r.URL.Query().Get("target_id"))
	if !h.hub.Join(client) {
		log.Warn().Msg("Websocket hub is shut down, closing connection")
		conn.Close()
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		client.WritePump()
	}()
	go func() {
		defer wg.Done()
		client.ReadPump(h.handleIncomingWSMessage)
	}()

	// Cleanup on disconnect.
	go func() {
		wg.Wait()
		h.hub.Leave(client)
	}()
}

// handleIncomingWSMessage processes messages received from a websocket client.
func (h *WebSocketHandler) handleIncomingWSMessage(client *ws.Client, message []byte) {
	var msg ws.Message
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Error().Err(err).Bytes("message", message).Msg("Error decoding websocket message")
		client.Reply(ws.NewErrorMessage(models.InvalidInput("message")))
		return
	}

	switch msg.Action {
	case ws.ActionDispatch:
		cmd, err := commands.Decode(msg.Payload)
		if err != nil {
			client.Reply(ws.NewErrorMessage(err))
			return
		}
		// Dispatch off the read loop so a long backup does not stall pings.
		// The command runs to completion even if the client goes away.
		go func() {
			result, err := h.dispatcher.Dispatch(context.Background(), cmd)
			client.Reply(ws.NewCommandMessage(ws.ActionCommandResult, cmd, result, err))
		}()

	default:
		log.Warn().Str("action", msg.Action).Msg("Unknown websocket action received")
		client.Reply(ws.NewErrorMessage(&models.Error{Kind: models.KindInvalidInput, Field: "action"}))
	}
}
