package websocket

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// outbound is a message addressed to every global client plus the
// subscribers of one target.
type outbound struct {
	targetID string
	data     []byte
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Outbound messages waiting to be fanned out.
	broadcast chan outbound

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// A map of target IDs to a set of clients subscribed to it.
	subscriptions map[string]map[*Client]bool

	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:     make(chan outbound, 256),
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		done:          make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.Register:
			h.clients[client] = true
			log.Info().Int("total_clients", len(h.clients)).Str("target_id", client.TargetID).Msg("Client connected")
			// Clients opened on a target only receive that target's messages.
			if client.TargetID != "" {
				h.addSubscription(client, client.TargetID)
			}
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Info().Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case msg := <-h.broadcast:
			for client := range h.clients {
				if client.TargetID == "" {
					h.deliver(client, msg.data)
				}
			}
			for client := range h.subscriptions[msg.targetID] {
				h.deliver(client, msg.data)
			}
		}
	}
}

func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		h.drop(client)
	}
}

// Stop ends Run and closes every client's send channel. Later calls are no-ops.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Join hands client to the running hub. It reports false once the hub has
// stopped, in which case the client was never registered.
func (h *Hub) Join(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Leave removes client from the hub. After Stop it returns immediately.
func (h *Hub) Leave(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// Publish queues a message for global clients and subscribers of targetID.
// It never blocks; when the queue is full the message is dropped.
func (h *Hub) Publish(targetID string, data []byte) {
	select {
	case h.broadcast <- outbound{targetID: targetID, data: data}:
	default:
		log.Warn().Str("target_id", targetID).Msg("Websocket broadcast queue full, dropping message")
	}
}

func (h *Hub) drop(client *Client) {
	close(client.Send)
	delete(h.clients, client)
	h.removeSubscription(client)
}

func (h *Hub) addSubscription(client *Client, targetID string) {
	if h.subscriptions[targetID] == nil {
		h.subscriptions[targetID] = make(map[*Client]bool)
	}
	h.subscriptions[targetID][client] = true
}

func (h *Hub) removeSubscription(client *Client) {
	for targetID, subs := range h.subscriptions {
		if _, ok := subs[client]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.subscriptions, targetID)
			}
		}
	}
}
