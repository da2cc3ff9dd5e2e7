// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in chat page.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// WebSocketHandler handles WebSocket upgrade requests and manages client connections.
// It validates that the request uses the GET method, upgrades the HTTP connection
// to WebSocket, creates a Client with a fresh connection identifier, and hands it
// to the hub, which starts the read/write pumps.
func WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(conn, hub, router, r.RemoteAddr)

	// Register the client with the hub; the hub will launch the pump goroutines.
	client.hub.register <- client
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Roomcast server is running!")
}

// ChatPageHandler serves the built-in HTML chat page. The page speaks the
// event surface over the /ws endpoint: it announces with "new user", relays
// keystrokes as "user typing", submits "user message" payloads, and renders
// joined/left/member-list notifications. All rendering logic stays client-side.
func ChatPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>Roomcast</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #chat { display: none; }
        #layout { display: flex; gap: 10px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            flex: 1;
            padding: 10px;
            overflow-y: scroll;
            background-color: #f9f9f9;
        }
        #members {
            border: 1px solid #ccc;
            width: 160px;
            padding: 10px;
            background-color: #f9f9f9;
        }
        #typing { color: gray; height: 1.2em; font-style: italic; }
        input[type="text"] { padding: 5px; margin-right: 10px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
    </style>
</head>
<body>
    <h1>Roomcast</h1>

    <div id="join">
        <input type="text" id="nameInput" placeholder="Display name">
        <input type="text" id="roomInput" placeholder="Room">
        <button onclick="join()">Join</button>
    </div>

    <div id="chat">
        <div id="layout">
            <div id="messages"></div>
            <div id="members"><strong>Users online</strong><ul id="memberList"></ul></div>
        </div>
        <div id="typing"></div>
        <input type="text" id="messageInput" placeholder="Type a message...">
        <button onclick="sendMessage()">Send</button>
    </div>

    <script>
        let ws = null;
        let userName = '';
        let room = '';
        const senderId = Math.random().toString(36).slice(2);
        let typingTimer = null;

        function addLine(text, color) {
            const el = document.createElement('div');
            el.style.color = color || 'black';
            el.textContent = text;
            const messages = document.getElementById('messages');
            messages.appendChild(el);
            messages.scrollTop = messages.scrollHeight;
        }

        function send(event, data) {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({event: event, data: data}));
            }
        }

        function join() {
            userName = document.getElementById('nameInput').value.trim();
            room = document.getElementById('roomInput').value.trim();
            if (!userName || !room) { return; }

            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');

            ws.onopen = function() {
                send('new user', {userName: userName, room: room});
                document.getElementById('join').style.display = 'none';
                document.getElementById('chat').style.display = 'block';
            };

            ws.onmessage = function(raw) {
                const frame = JSON.parse(raw.data);
                switch (frame.event) {
                case 'user joined':
                    addLine(frame.data.name + ' joined ' + frame.data.room, 'gray');
                    break;
                case 'output users':
                    const list = document.getElementById('memberList');
                    list.innerHTML = '';
                    frame.data.forEach(function(name) {
                        const li = document.createElement('li');
                        li.textContent = name;
                        list.appendChild(li);
                    });
                    break;
                case 'user typing':
                    document.getElementById('typing').textContent = frame.data + ' is typing...';
                    clearTimeout(typingTimer);
                    typingTimer = setTimeout(function() {
                        document.getElementById('typing').textContent = '';
                    }, 1500);
                    break;
                case 'user message':
                    addLine(frame.data.userName + ': ' + frame.data.text,
                        frame.data.senderId === senderId ? 'blue' : 'green');
                    break;
                case 'user left':
                    addLine(frame.data.userWhoLeft + ' left', 'gray');
                    const ml = document.getElementById('memberList');
                    ml.innerHTML = '';
                    frame.data.roomUsers.forEach(function(name) {
                        const li = document.createElement('li');
                        li.textContent = name;
                        ml.appendChild(li);
                    });
                    break;
                }
            };

            ws.onclose = function() {
                addLine('Disconnected', 'gray');
            };
        }

        function sendMessage() {
            const input = document.getElementById('messageInput');
            const text = input.value.trim();
            if (!text) { return; }
            send('user message', {
                room: room,
                userName: userName,
                senderId: senderId,
                text: text,
                timestamp: Date.now()
            });
            input.value = '';
        }

        document.getElementById('messageInput').addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            } else {
                send('user typing', {userName: userName, room: room});
            }
        });
    </script>
</body>
</html>`
	if _, err := fmt.Fprint(w, html); err != nil {
		log.Printf("Error writing HTML response: %v", err)
	}
}
