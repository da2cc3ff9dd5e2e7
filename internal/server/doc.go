// Package server implements the Roomcast chat relay: a single-process,
// in-memory WebSocket server where clients announce themselves into named
// rooms, exchange typed presence and message events, and leave.
//
// The core pieces are the Registry, which owns the presence record of every
// announced connection, the Hub, which owns connections and room fanout
// groups, and the Router, which translates inbound events into registry
// mutations and outbound fanout. Everything is ephemeral: state lives exactly
// as long as the connections it describes.
package server
