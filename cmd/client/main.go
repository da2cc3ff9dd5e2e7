// Command client is a line-oriented terminal client for a Roomcast server.
// It announces itself into a room, relays stdin lines as chat messages, and
// prints incoming presence and message events.
//
// Usage:
//
//	client <name> <room> [ws://host:port/ws]
//
// Lines starting with /typing send a typing notification; /quit exits.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/roomcast/roomcast/internal/server"
)

// chatMessage is the payload of a "user message" event. The server relays it
// unmodified, so this shape is an agreement between clients only.
type chatMessage struct {
	Room      string `json:"room"`
	UserName  string `json:"userName"`
	SenderID  string `json:"senderId"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: client <name> <room> [ws://host:port/ws]")
		return
	}
	name := os.Args[1]
	room := os.Args[2]
	url := "ws://localhost:8080/ws"
	if len(os.Args) > 3 {
		url = os.Args[3]
	}

	ctx := context.Background()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		log.Fatalf("Failed to dial %s: %v", url, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	senderID := uuid.NewString()

	if err := sendEvent(ctx, conn, server.EventNewUser, server.Announcement{UserName: name, Room: room}); err != nil {
		log.Fatalf("Failed to announce: %v", err)
	}

	fmt.Printf("Joined %q as %s\n", room, name)
	fmt.Println("Type to chat; /typing notifies the room, /quit exits.")

	go readLoop(ctx, conn)

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "/quit":
			return
		case line == "/typing":
			if err := sendEvent(ctx, conn, server.EventUserTyping, server.Announcement{UserName: name, Room: room}); err != nil {
				log.Printf("Failed to send typing event: %v", err)
			}
		case line != "":
			msg := chatMessage{
				Room:      room,
				UserName:  name,
				SenderID:  senderID,
				Text:      line,
				Timestamp: time.Now().UnixMilli(),
			}
			if err := sendEvent(ctx, conn, server.EventUserMessage, msg); err != nil {
				log.Printf("Failed to send message: %v", err)
				return
			}
		}
		fmt.Print("> ")
	}

	if err := scanner.Err(); err != nil {
		log.Printf("Error reading from stdin: %v", err)
	}
}

// sendEvent wraps a payload in the event envelope and writes one frame.
func sendEvent(ctx context.Context, conn *websocket.Conn, event string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(server.Envelope{Event: event, Data: raw})
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, frame)
}

// readLoop prints incoming events until the connection drops.
func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			log.Printf("Disconnected from server: %v", err)
			return
		}

		var env server.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("Error decoding frame: %v", err)
			continue
		}

		switch env.Event {
		case server.EventUserJoined:
			var presence server.Presence
			if err := json.Unmarshal(env.Data, &presence); err == nil {
				fmt.Printf("\n* %s joined %s\n> ", presence.Name, presence.Room)
			}
		case server.EventOutputUsers:
			var users []string
			if err := json.Unmarshal(env.Data, &users); err == nil {
				fmt.Printf("\n* users online: %s\n> ", strings.Join(users, ", "))
			}
		case server.EventUserTyping:
			var who string
			if err := json.Unmarshal(env.Data, &who); err == nil {
				fmt.Printf("\n* %s is typing...\n> ", who)
			}
		case server.EventUserMessage:
			var msg chatMessage
			if err := json.Unmarshal(env.Data, &msg); err == nil {
				fmt.Printf("\n[%s] %s: %s\n> ", msg.Room, msg.UserName, msg.Text)
			}
		case server.EventUserLeft:
			var departure server.Departure
			if err := json.Unmarshal(env.Data, &departure); err == nil {
				fmt.Printf("\n* %s left (remaining: %s)\n> ", departure.UserWhoLeft, strings.Join(departure.RoomUsers, ", "))
			}
		default:
			fmt.Printf("\n* %s: %s\n> ", env.Event, string(env.Data))
		}
	}
}
