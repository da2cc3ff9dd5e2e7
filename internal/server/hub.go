// Package server coordinates client registration, room membership, and event
// fanout for the Roomcast WebSocket relay via the Hub type.
package server

import (
	"context"
	"log"
	"sync"
	"time"
)

// Hub manages all WebSocket client connections and the named room groups used
// for targeted fanout. It maintains client registration/unregistration and
// ensures thread-safe operations through mutex protection.
type Hub struct {
	clients    map[*Client]bool
	rooms      map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates and initializes a new Hub instance with all necessary
// channels and maps. The returned Hub is ready to manage connections once
// Run is started.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// GetRegisterChan returns the channel used for registering new clients to the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients from the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// JoinRoom enrolls the client in the named room's fanout group. A client
// belongs to at most one group at a time; joining moves it out of any
// previous group without notifying that group.
func (h *Hub) JoinRoom(client *Client, room string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if client.room == room {
		return
	}
	h.leaveRoomLocked(client)

	group, exists := h.rooms[room]
	if !exists {
		group = make(map[*Client]struct{})
		h.rooms[room] = group
	}
	group[client] = struct{}{}
	client.room = room
}

// leaveRoomLocked drops the client from its current room group, deleting the
// group when its last member leaves. Caller holds h.mutex.
func (h *Hub) leaveRoomLocked(client *Client) {
	if client.room == "" {
		return
	}
	if group, exists := h.rooms[client.room]; exists {
		delete(group, client)
		if len(group) == 0 {
			delete(h.rooms, client.room)
		}
	}
	client.room = ""
}

// RoomSize reports how many connections are currently enrolled in the room's
// fanout group.
func (h *Hub) RoomSize(room string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	// Hold the lock during the entire send operation to prevent race conditions
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	// Check if client is still registered and not closed
	_, exists := h.clients[client]
	if !exists || client.closed {
		return false
	}

	// Try to send the message (channel might be closed, so we need to recover from panic)
	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// Run starts the hub's main event loop, handling client registration and
// unregistration. This method should be called in a separate goroutine as it
// runs indefinitely.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mutex.Unlock()
			log.Printf("Client %s registered from %s. Total clients: %d", client.id, client.addr, clientCount)

			// Clients without a live socket (as constructed in tests) have
			// nothing to pump.
			if client.conn == nil {
				continue
			}

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				h.leaveRoomLocked(client)
				client.closed = true
				clientCount := len(h.clients)
				h.mutex.Unlock()
				// Close the channel after releasing the lock
				close(client.send)
				log.Printf("Client %s unregistered from %s. Total clients: %d", client.id, client.addr, clientCount)
			} else {
				h.mutex.Unlock()
			}
		}
	}
}

// Shared wiring for the handler layer: one hub, one registry, one router per
// process. Tests construct their own instances.
var (
	hub      = NewHub()
	registry = NewRegistry()
	router   = NewRouter(hub, registry)
)

// SendToRoom delivers a message to every connection currently enrolled in the
// room, skipping except when non-nil. Delivery is fire-and-forget; clients
// whose send buffer is full are dropped from the hub.
func (h *Hub) SendToRoom(room string, message []byte, except *Client) {
	targets := h.roomSnapshot(room, except)
	if len(targets) == 0 {
		return
	}

	var clientsToRemove []*Client
	for _, client := range targets {
		if !h.safeSend(client, message) {
			clientsToRemove = append(clientsToRemove, client)
		}
	}
	h.removeFailedClients(clientsToRemove)
}

// roomSnapshot returns a thread-safe snapshot of the room's members, minus
// the excluded client.
func (h *Hub) roomSnapshot(room string, except *Client) []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	group := h.rooms[room]
	targets := make([]*Client, 0, len(group))
	for client := range group {
		if client == except {
			continue
		}
		targets = append(targets, client)
	}
	return targets
}

// removeFailedClients removes clients that failed to receive messages and closes their channels
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if _, exists := h.clients[client]; exists {
			delete(h.clients, client)
			h.leaveRoomLocked(client)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			log.Printf("Client %s from %s removed due to full send buffer", client.id, client.addr)
		}
	}
	h.mutex.Unlock()

	// Close channels after releasing the lock
	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownClients gracefully closes all active client connections
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	// Close all client connections
	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing client connection from %s: %v", client.addr, err)
				}
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	// Signal shutdown
	h.cancel()

	// Wait for Run() to complete
	<-h.done

	// Wait for all client goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
