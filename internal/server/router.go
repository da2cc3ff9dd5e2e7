// Package server translates inbound client events into registry mutations and
// room fanout via the Router type.
package server

import (
	"encoding/json"
	"log"
)

// Router owns the mapping from inbound events to their effects. Each handler
// is a short synchronous transformation: at most one registry mutation plus
// zero or more fire-and-forget sends. Handlers run on the originating
// client's read goroutine; the registry and hub provide the locking.
type Router struct {
	hub      *Hub
	registry *Registry
}

// NewRouter creates a Router that routes events through the given hub and
// records presence in the given registry.
func NewRouter(hub *Hub, registry *Registry) *Router {
	return &Router{hub: hub, registry: registry}
}

// Dispatch decodes an inbound envelope and invokes the matching handler.
// Unknown events are logged and dropped; the connection stays up.
func (rt *Router) Dispatch(client *Client, env Envelope) {
	switch env.Event {
	case EventNewUser:
		var announcement Announcement
		if err := json.Unmarshal(env.Data, &announcement); err != nil {
			log.Printf("Invalid %q payload from %s: %v", env.Event, client.addr, err)
			return
		}
		rt.HandleNewUser(client, announcement)

	case EventUserTyping:
		var announcement Announcement
		if err := json.Unmarshal(env.Data, &announcement); err != nil {
			log.Printf("Invalid %q payload from %s: %v", env.Event, client.addr, err)
			return
		}
		rt.HandleTyping(client, announcement)

	case EventUserMessage:
		rt.HandleMessage(client, env.Data)

	default:
		log.Printf("Unknown event %q from %s; ignoring", env.Event, client.addr)
	}
}

// HandleNewUser processes a "new user" announcement. It records the presence,
// enrolls the connection in the room's fanout group, tells everyone else in
// the room who joined, and sends the refreshed member list to the whole room
// including the announcer. Re-announcing is a plain overwrite: the connection
// moves to the new room, and the old room is not told about the departure.
func (rt *Router) HandleNewUser(client *Client, announcement Announcement) {
	rt.registry.Upsert(client.id, announcement.UserName, announcement.Room)
	rt.hub.JoinRoom(client, announcement.Room)

	joined, err := encodeEvent(EventUserJoined, Presence{Name: announcement.UserName, Room: announcement.Room})
	if err != nil {
		log.Printf("Error encoding %q event: %v", EventUserJoined, err)
		return
	}
	rt.hub.SendToRoom(announcement.Room, joined, client)

	// Member list is computed after the upsert so the announcer is included.
	members, err := encodeEvent(EventOutputUsers, rt.registry.MembersOf(announcement.Room))
	if err != nil {
		log.Printf("Error encoding %q event: %v", EventOutputUsers, err)
		return
	}
	rt.hub.SendToRoom(announcement.Room, members, nil)
}

// HandleTyping relays a typing notification to everyone else in the room.
// No state changes, no debounce: one inbound event, one outbound fanout.
// The outbound payload is just the typist's name.
func (rt *Router) HandleTyping(client *Client, announcement Announcement) {
	typing, err := encodeEvent(EventUserTyping, announcement.UserName)
	if err != nil {
		log.Printf("Error encoding %q event: %v", EventUserTyping, err)
		return
	}
	rt.hub.SendToRoom(announcement.Room, typing, client)
}

// HandleMessage relays a chat message to every connection in the target room,
// sender included, so the sender renders the server-confirmed echo rather
// than an optimistic local copy. The payload is opaque: only the room field
// is inspected, and the data is re-emitted unmodified.
func (rt *Router) HandleMessage(client *Client, payload json.RawMessage) {
	var target messageTarget
	// Best effort; a payload without a usable room fans out to a group with
	// no members.
	_ = json.Unmarshal(payload, &target)

	message, err := json.Marshal(Envelope{Event: EventUserMessage, Data: payload})
	if err != nil {
		log.Printf("Error encoding %q event from %s: %v", EventUserMessage, client.addr, err)
		return
	}
	rt.hub.SendToRoom(target.Room, message, nil)
}

// HandleDisconnect processes the end of a connection. If the connection had
// announced itself, its presence record is removed and the survivors of its
// room receive a "user left" notification carrying the departed name and the
// member list recomputed after the removal. A connection that never announced
// (or was already removed) disconnects silently.
func (rt *Router) HandleDisconnect(client *Client) {
	prior, ok := rt.registry.Remove(client.id)
	if !ok {
		return
	}

	departure := Departure{
		UserWhoLeft: prior.Name,
		RoomUsers:   rt.registry.MembersOf(prior.Room),
	}
	left, err := encodeEvent(EventUserLeft, departure)
	if err != nil {
		log.Printf("Error encoding %q event: %v", EventUserLeft, err)
		return
	}
	rt.hub.SendToRoom(prior.Room, left, client)
}
