package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harunnryd/datau/pkg/transports/web"
)

// ws_chat is a minimal terminal client for the chat websocket.
func main() {
	addr := flag.String("url", "ws://localhost:8080/ws", "websocket url")
	question := flag.String("q", "", "send one question and exit after the reply")
	wait := flag.Duration("wait", 60*time.Second, "how long to wait for replies to -q")
	flag.Parse()

	ws, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		fmt.Println("dial error:", err)
		os.Exit(1)
	}
	defer ws.Close()

	events := make(chan web.Event)
	go func() {
		defer close(events)
		for {
			var ev web.Event
			if err := ws.ReadJSON(&ev); err != nil {
				return
			}
			events <- ev
		}
	}()
	go func() {
		for ev := range events {
			printEvent(ev)
		}
	}()

	send := func(text string) error {
		return ws.WriteJSON(web.Event{Type: web.EventMessage, Content: text})
	}

	if *question != "" {
		if err := send(*question); err != nil {
			fmt.Println("send error:", err)
			os.Exit(1)
		}
		time.Sleep(*wait)
		_ = ws.WriteJSON(web.Event{Type: web.EventSessionEnd})
		return
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/stop" {
			_ = ws.WriteJSON(web.Event{Type: web.EventStop})
			continue
		}
		if err := send(line); err != nil {
			fmt.Println("send error:", err)
			return
		}
	}
	_ = ws.WriteJSON(web.Event{Type: web.EventSessionEnd})
}

func printEvent(ev web.Event) {
	switch ev.Type {
	case web.EventMessage, web.EventUpdate:
		if ev.Content == "" {
			return
		}
		fmt.Printf("%s: %s\n", ev.Author, ev.Content)
	case web.EventStep:
		fmt.Printf("  [%s %s] %s\n", ev.Name, ev.Status, ev.Input)
	case web.EventChart:
		var fig struct {
			Layout struct {
				Title struct {
					Text string `json:"text"`
				} `json:"title"`
			} `json:"layout"`
		}
		_ = json.Unmarshal(ev.Figure, &fig)
		fmt.Printf("  [chart] %s\n", fig.Layout.Title.Text)
	case web.EventError:
		fmt.Println("error:", ev.Content)
	case web.EventSessionStart:
		fmt.Println("connected, session", ev.SessionID)
	}
}
