package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/betairc/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "tester", "username sent in the handshake")
	channel := flag.String("channel", "#smoke", "channel to join and post in")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(line string) error {
		if err := conn.Write(ctx, websocket.MessageText, []byte(line)); err != nil {
			return fmt.Errorf("send %q: %w", line, err)
		}
		return nil
	}

	if err := wsjson.Write(ctx, conn, proto.Hello{Username: *user}); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}
	if err := send(proto.FormatCommand(proto.CmdJoin, *channel, "")); err != nil {
		return err
	}
	if err := send(proto.FormatCommand(proto.CmdLeave, "#general", "")); err != nil {
		return err
	}
	if err := send(*text); err != nil {
		return err
	}

	for {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		f := proto.Decode(raw)
		switch {
		case f.Response != nil:
			fmt.Printf("Response: code=%s message=%q\n", f.Response.Code, f.Response.Message)
			if f.Response.Code != proto.CodeOK {
				return fmt.Errorf("server rejected a command: %s", f.Response.Message)
			}
		case f.Event != nil:
			e := f.Event
			fmt.Printf("Event: type=%s sender=%s recipient=%s content=%q ts=%d\n", e.Type, e.Sender, e.Recipient, e.Content, e.Timestamp)
			if e.Type == proto.KindChannel && e.Sender == *user && e.Recipient == *channel && e.Content == *text {
				_ = send(proto.FormatCommand(proto.CmdQuit, "", "smoke test done"))
				return nil
			}
		default:
			fmt.Printf("Raw: %s\n", f.Text)
		}
	}
}
