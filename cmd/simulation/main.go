package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
)

// Smoke client for the realtime gateway. Connects a student and a
// counselor to the same room, waits for session_started, exchanges a
// chat message and prints everything received.

const wsBase = "ws://localhost:3000"

type frame struct {
	Type      string          `json:"type"`
	Message   string          `json:"message,omitempty"`
	Sender    string          `json:"sender,omitempty"`
	Status    string          `json:"status,omitempty"`
	Signal    json.RawMessage `json:"signal,omitempty"`
	Username  string          `json:"username,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

func main() {
	roomID := os.Getenv("SIM_ROOM_ID")
	studentToken := os.Getenv("SIM_STUDENT_TOKEN")
	counselorToken := os.Getenv("SIM_COUNSELOR_TOKEN")
	if roomID == "" || studentToken == "" || counselorToken == "" {
		log.Fatal("Set SIM_ROOM_ID, SIM_STUDENT_TOKEN and SIM_COUNSELOR_TOKEN")
	}

	color.Cyan("=== Realtime Session Simulation ===")
	color.Cyan("Room: %s", roomID)

	student := connect("student", roomID, studentToken)
	defer student.Close()

	time.Sleep(500 * time.Millisecond)

	counselor := connect("counselor", roomID, counselorToken)
	defer counselor.Close()

	go listen("student", student, color.New(color.FgGreen))
	go listen("counselor", counselor, color.New(color.FgYellow))

	// Both sides are in; the session should flip to active now.
	time.Sleep(1 * time.Second)

	send(student, map[string]interface{}{
		"type":    "chat_message",
		"message": "Hello, thank you for taking the time today.",
	})
	send(counselor, map[string]interface{}{
		"type":   "webrtc_signal",
		"signal": map[string]interface{}{"kind": "ping"},
	})

	// A whitespace-only message must come back as an error frame.
	send(student, map[string]interface{}{
		"type":    "chat_message",
		"message": "   ",
	})

	time.Sleep(3 * time.Second)
	color.Cyan("=== Done ===")
}

func connect(who, roomID, token string) *websocket.Conn {
	url := fmt.Sprintf("%s/ws/live-session/%s?token=%s", wsBase, roomID, token)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("%s failed to connect: %v", who, err)
	}
	color.Cyan("%s connected", who)
	return conn
}

func listen(who string, conn *websocket.Conn, c *color.Color) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			c.Printf("[%s] <- unparseable: %s\n", who, raw)
			continue
		}
		switch f.Type {
		case "session_started":
			c.Printf("[%s] <- session started (%s)\n", who, f.Status)
		case "chat_message":
			c.Printf("[%s] <- %s: %s\n", who, f.Sender, f.Message)
		case "error":
			color.Red("[%s] <- error: %s", who, f.Message)
		default:
			c.Printf("[%s] <- %s %s\n", who, f.Type, f.Username)
		}
	}
}

func send(conn *websocket.Conn, payload map[string]interface{}) {
	data, _ := json.Marshal(payload)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("send failed: %v", err)
	}
}
