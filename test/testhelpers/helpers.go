// Package testhelpers provides common utilities and helper functions for testing the Roomcast server.
//
// This package contains reusable test utilities that are shared across unit and integration tests.
// It provides functions for creating test servers, dialing WebSocket connections with the right
// origin, and sending and asserting on event envelopes to reduce duplication in test files.
package testhelpers

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roomcast/roomcast/internal/server"
)

// CreateTestServer creates a test HTTP server with the given handler.
// It returns a running httptest.Server that should be closed after use.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// AssertStatusCode checks if the HTTP response has the expected status code.
// It fails the test with a descriptive error message if the status codes don't match.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
// It fails the test with a descriptive error message if the content types don't match.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// ConnectWebSocket creates a WebSocket connection to the specified URL, using
// the given origin for the handshake. It returns the connection or an error
// if connection fails.
func ConnectWebSocket(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	headers.Set("Origin", origin)

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// SendEvent marshals a payload into an event envelope and writes it as a
// single text frame.
func SendEvent(conn *websocket.Conn, event string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return conn.WriteJSON(server.Envelope{Event: event, Data: raw})
}

// Announce sends the "new user" event that enrolls the connection in a room.
func Announce(conn *websocket.Conn, name, room string) error {
	return SendEvent(conn, server.EventNewUser, server.Announcement{UserName: name, Room: room})
}

// ReceiveEvent reads the next event envelope from the connection, failing the
// test if nothing arrives before the timeout.
func ReceiveEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) server.Envelope {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	var env server.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("Failed to read event: %v", err)
	}
	return env
}

// ExpectEvent reads the next event and fails the test unless its name matches.
// It returns the envelope so callers can assert on the payload.
func ExpectEvent(t *testing.T, conn *websocket.Conn, event string, timeout time.Duration) server.Envelope {
	t.Helper()

	env := ReceiveEvent(t, conn, timeout)
	if env.Event != event {
		t.Fatalf("Expected event %q, got %q with payload %s", event, env.Event, string(env.Data))
	}
	return env
}

// ExpectNoEvent fails the test if any frame arrives before the timeout.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("Expected no event, but received: %s", string(raw))
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	t.Fatalf("Unexpected error while waiting for absence of events: %v", err)
}

// DecodePayload unmarshals an envelope payload into dst, failing the test on error.
func DecodePayload(t *testing.T, env server.Envelope, dst interface{}) {
	t.Helper()

	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("Failed to decode %q payload %s: %v", env.Event, string(env.Data), err)
	}
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
