// Package integration contains integration tests for the Roomcast server.
//
// These tests verify that multiple components work together correctly by testing
// the complete system behavior with real HTTP servers, WebSocket connections,
// and end-to-end functionality. Integration tests ensure that the system works
// as expected when all components are assembled together.
package integration

import (
	"net/http/httptest"
	"net/url"
	"reflect"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roomcast/roomcast/internal/server"
	"github.com/roomcast/roomcast/test/testhelpers"
)

const (
	receiveTimeout = 2 * time.Second
	silenceWindow  = 300 * time.Millisecond
)

// chatPayload is the message payload shape used by the test clients. The
// server relays it opaquely, so the shape only has to be agreed on here.
type chatPayload struct {
	Room      string `json:"room"`
	UserName  string `json:"userName"`
	SenderID  string `json:"senderId"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

func configureServerForTest(t *testing.T, baseURL string, customize func(cfg *server.Config)) {
	if t == nil {
		panic("testing.T is required")
	}
	t.Helper()
	cfg := server.NewConfig()
	cfg.AllowedOrigins = append([]string{baseURL}, cfg.AllowedOrigins...)
	if customize != nil {
		customize(cfg)
	}
	server.SetConfig(cfg)
	t.Cleanup(func() {
		server.SetConfig(nil)
	})
}

func buildWebSocketURL(t *testing.T, baseURL string) string {
	t.Helper()
	parsed, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("Failed to parse test server URL: %v", err)
	}
	parsed.Scheme = "ws"
	parsed.Path = "/ws"
	return parsed.String()
}

// startChatServer brings up the full stack and returns the WebSocket URL plus
// the origin to dial with.
func startChatServer(t *testing.T) (wsURL, origin string) {
	t.Helper()

	server.StartHub()
	mux := server.SetupRoutes()
	testServer := httptest.NewServer(mux)
	t.Cleanup(testServer.Close)
	configureServerForTest(t, testServer.URL, nil)

	return buildWebSocketURL(t, testServer.URL), testServer.URL
}

// dial connects a WebSocket client using the allowed origin.
func dial(t *testing.T, wsURL, origin string) *websocket.Conn {
	t.Helper()

	conn, err := testhelpers.ConnectWebSocket(wsURL, origin)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket client: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

// announceAndSync sends the "new user" event and waits for the member list
// echo, so later assertions start from a settled state.
func announceAndSync(t *testing.T, conn *websocket.Conn, name, room string) {
	t.Helper()

	if err := testhelpers.Announce(conn, name, room); err != nil {
		t.Fatalf("Failed to announce %s: %v", name, err)
	}
	testhelpers.ExpectEvent(t, conn, server.EventOutputUsers, receiveTimeout)
}

// TestJoinSequence verifies the full join fanout: existing members receive
// "user joined" followed by the refreshed member list, while the joiner
// receives the member list that already includes itself.
func TestJoinSequence(t *testing.T) {
	wsURL, origin := startChatServer(t)
	room := "join-sequence"

	alice := dial(t, wsURL, origin)
	if err := testhelpers.Announce(alice, "alice", room); err != nil {
		t.Fatalf("Failed to announce alice: %v", err)
	}

	env := testhelpers.ExpectEvent(t, alice, server.EventOutputUsers, receiveTimeout)
	var users []string
	testhelpers.DecodePayload(t, env, &users)
	if !reflect.DeepEqual(users, []string{"alice"}) {
		t.Errorf("First member list = %v, want [alice]", users)
	}

	bob := dial(t, wsURL, origin)
	if err := testhelpers.Announce(bob, "bob", room); err != nil {
		t.Fatalf("Failed to announce bob: %v", err)
	}

	env = testhelpers.ExpectEvent(t, alice, server.EventUserJoined, receiveTimeout)
	var joined server.Presence
	testhelpers.DecodePayload(t, env, &joined)
	if joined.Name != "bob" || joined.Room != room {
		t.Errorf("Joined payload = %+v, want {bob %s}", joined, room)
	}

	env = testhelpers.ExpectEvent(t, alice, server.EventOutputUsers, receiveTimeout)
	testhelpers.DecodePayload(t, env, &users)
	if !reflect.DeepEqual(users, []string{"alice", "bob"}) {
		t.Errorf("Member list after join = %v, want [alice bob]", users)
	}

	// The joiner gets the inclusive member list but never its own
	// "user joined" notification.
	env = testhelpers.ExpectEvent(t, bob, server.EventOutputUsers, receiveTimeout)
	testhelpers.DecodePayload(t, env, &users)
	if !reflect.DeepEqual(users, []string{"alice", "bob"}) {
		t.Errorf("Joiner's member list = %v, want [alice bob]", users)
	}
	testhelpers.ExpectNoEvent(t, bob, silenceWindow)
}

// TestTypingNotification verifies that typing reaches everyone else in the
// room and never echoes back to the typist.
func TestTypingNotification(t *testing.T) {
	wsURL, origin := startChatServer(t)
	room := "typing-room"

	alice := dial(t, wsURL, origin)
	announceAndSync(t, alice, "alice", room)

	bob := dial(t, wsURL, origin)
	announceAndSync(t, bob, "bob", room)

	// Drain bob's join fanout on alice's side.
	testhelpers.ExpectEvent(t, alice, server.EventUserJoined, receiveTimeout)
	testhelpers.ExpectEvent(t, alice, server.EventOutputUsers, receiveTimeout)

	if err := testhelpers.SendEvent(alice, server.EventUserTyping,
		server.Announcement{UserName: "alice", Room: room}); err != nil {
		t.Fatalf("Failed to send typing event: %v", err)
	}

	env := testhelpers.ExpectEvent(t, bob, server.EventUserTyping, receiveTimeout)
	var who string
	testhelpers.DecodePayload(t, env, &who)
	if who != "alice" {
		t.Errorf("Typing payload = %q, want %q", who, "alice")
	}

	testhelpers.ExpectNoEvent(t, alice, silenceWindow)
}

// TestMessageBroadcast verifies that a chat message is delivered to every
// room member including the sender, with payload fields intact.
func TestMessageBroadcast(t *testing.T) {
	wsURL, origin := startChatServer(t)
	room := "message-room"

	alice := dial(t, wsURL, origin)
	announceAndSync(t, alice, "alice", room)

	bob := dial(t, wsURL, origin)
	announceAndSync(t, bob, "bob", room)

	testhelpers.ExpectEvent(t, alice, server.EventUserJoined, receiveTimeout)
	testhelpers.ExpectEvent(t, alice, server.EventOutputUsers, receiveTimeout)

	sent := chatPayload{
		Room:      room,
		UserName:  "alice",
		SenderID:  "sender-1",
		Text:      "hi",
		Timestamp: time.Now().UnixMilli(),
	}
	if err := testhelpers.SendEvent(alice, server.EventUserMessage, sent); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}

	for name, conn := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		env := testhelpers.ExpectEvent(t, conn, server.EventUserMessage, receiveTimeout)
		var got chatPayload
		testhelpers.DecodePayload(t, env, &got)
		if got != sent {
			t.Errorf("Payload delivered to %s = %+v, want %+v", name, got, sent)
		}
	}
}

// TestUserLeft verifies that survivors receive the departed member's name and
// the member list recomputed after the removal.
func TestUserLeft(t *testing.T) {
	wsURL, origin := startChatServer(t)
	room := "leaving-room"

	alice := dial(t, wsURL, origin)
	announceAndSync(t, alice, "alice", room)

	bob := dial(t, wsURL, origin)
	announceAndSync(t, bob, "bob", room)

	testhelpers.ExpectEvent(t, alice, server.EventUserJoined, receiveTimeout)
	testhelpers.ExpectEvent(t, alice, server.EventOutputUsers, receiveTimeout)

	if err := testhelpers.CloseWebSocket(alice); err != nil {
		t.Fatalf("Failed to close alice's connection: %v", err)
	}

	env := testhelpers.ExpectEvent(t, bob, server.EventUserLeft, receiveTimeout)
	var departure server.Departure
	testhelpers.DecodePayload(t, env, &departure)
	if departure.UserWhoLeft != "alice" {
		t.Errorf("UserWhoLeft = %q, want %q", departure.UserWhoLeft, "alice")
	}
	if !reflect.DeepEqual(departure.RoomUsers, []string{"bob"}) {
		t.Errorf("RoomUsers = %v, want [bob]", departure.RoomUsers)
	}
}

// TestUnannouncedDisconnect verifies that a connection that connects and
// closes without announcing produces zero notifications.
func TestUnannouncedDisconnect(t *testing.T) {
	wsURL, origin := startChatServer(t)
	room := "quiet-room"

	alice := dial(t, wsURL, origin)
	announceAndSync(t, alice, "alice", room)

	ghost := dial(t, wsURL, origin)
	time.Sleep(50 * time.Millisecond)
	if err := testhelpers.CloseWebSocket(ghost); err != nil {
		t.Fatalf("Failed to close ghost connection: %v", err)
	}

	testhelpers.ExpectNoEvent(t, alice, silenceWindow)
}

// TestRoomIsolation verifies that events in one room never reach members of
// another room.
func TestRoomIsolation(t *testing.T) {
	wsURL, origin := startChatServer(t)

	alice := dial(t, wsURL, origin)
	announceAndSync(t, alice, "alice", "isolation-a")

	carol := dial(t, wsURL, origin)
	announceAndSync(t, carol, "carol", "isolation-b")

	msg := chatPayload{Room: "isolation-a", UserName: "alice", SenderID: "s-1", Text: "private", Timestamp: 1}
	if err := testhelpers.SendEvent(alice, server.EventUserMessage, msg); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}

	// The sender still gets the inclusive echo.
	testhelpers.ExpectEvent(t, alice, server.EventUserMessage, receiveTimeout)
	testhelpers.ExpectNoEvent(t, carol, silenceWindow)
}

// TestReannounceIntoNewRoom verifies that re-announcing moves the connection:
// the new room lists only the mover, the old room keeps working without it,
// and the old room is not notified of the implicit departure.
func TestReannounceIntoNewRoom(t *testing.T) {
	wsURL, origin := startChatServer(t)
	oldRoom := "reannounce-old"
	newRoom := "reannounce-new"

	alice := dial(t, wsURL, origin)
	announceAndSync(t, alice, "alice", oldRoom)

	bob := dial(t, wsURL, origin)
	announceAndSync(t, bob, "bob", oldRoom)

	testhelpers.ExpectEvent(t, alice, server.EventUserJoined, receiveTimeout)
	testhelpers.ExpectEvent(t, alice, server.EventOutputUsers, receiveTimeout)

	// Alice moves rooms.
	if err := testhelpers.Announce(alice, "alice", newRoom); err != nil {
		t.Fatalf("Failed to re-announce alice: %v", err)
	}
	env := testhelpers.ExpectEvent(t, alice, server.EventOutputUsers, receiveTimeout)
	var users []string
	testhelpers.DecodePayload(t, env, &users)
	if !reflect.DeepEqual(users, []string{"alice"}) {
		t.Errorf("Member list in new room = %v, want [alice]", users)
	}

	// Bob's next event is his own message echo, proving no "user left" was
	// sent to the old room for the implicit departure.
	msg := chatPayload{Room: oldRoom, UserName: "bob", SenderID: "s-2", Text: "anyone here?", Timestamp: 2}
	if err := testhelpers.SendEvent(bob, server.EventUserMessage, msg); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}
	env = testhelpers.ExpectEvent(t, bob, server.EventUserMessage, receiveTimeout)
	var got chatPayload
	testhelpers.DecodePayload(t, env, &got)
	if got != msg {
		t.Errorf("Echoed payload = %+v, want %+v", got, msg)
	}

	// The mover no longer receives old-room traffic.
	testhelpers.ExpectNoEvent(t, alice, silenceWindow)
}
