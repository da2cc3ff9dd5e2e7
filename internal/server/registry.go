// Package server tracks which display name and room each live connection has
// announced, via the Registry type.
package server

import "sync"

// Presence is the record the Registry keeps per announced connection. It is
// also the outbound payload of the "user joined" event.
type Presence struct {
	Name string `json:"name"`
	Room string `json:"room"`
}

// Registry maps connection identifiers to presence records. It is the only
// shared mutable state in the system; a single mutex guards every operation.
// Records live exactly as long as the underlying connection: created when a
// connection announces itself, destroyed on disconnect.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Presence
	order   []string
}

// NewRegistry creates an empty Registry ready for use.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]Presence),
	}
}

// Upsert inserts or overwrites the presence record for connID. Re-announcing
// overwrites in place: the connection keeps its original position in the
// iteration order and never appears twice. Empty names and rooms are accepted
// as-is; validation is the caller's concern.
func (r *Registry) Upsert(connID, name, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[connID]; !exists {
		r.order = append(r.order, connID)
	}
	r.entries[connID] = Presence{Name: name, Room: room}
}

// Remove deletes the record for connID and returns the prior value so the
// caller can announce the departure. Removing an unknown or already-removed
// connection is a no-op reporting ok=false, never an error.
func (r *Registry) Remove(connID string) (Presence, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prior, exists := r.entries[connID]
	if !exists {
		return Presence{}, false
	}

	delete(r.entries, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return prior, true
}

// MembersOf returns the display names of every registered connection whose
// room matches, in announcement order. The order is deterministic between
// calls until membership changes. An empty or unknown room yields an empty
// slice, never nil, so it marshals as a JSON array.
func (r *Registry) MembersOf(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if entry := r.entries[id]; entry.Room == room {
			members = append(members, entry.Name)
		}
	}
	return members
}

// Lookup returns the current presence record for connID, if any.
func (r *Registry) Lookup(connID string) (Presence, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[connID]
	return entry, exists
}

// Len reports how many connections are currently announced.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}
