// test_ws connects to a running server's /mcp/ws endpoint, lists the
// tools, and optionally calls one.
//
//	go run ./cmd/test_ws -url ws://localhost:3000/mcp/ws -tool fetch_price -args '{"ticker":"ETH"}'
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"lighter-mcp/pkg/ws"
)

func main() {
	url := flag.String("url", "ws://localhost:3000/mcp/ws", "websocket endpoint")
	token := flag.String("token", os.Getenv("MCP_TOKEN"), "bearer token for wallet tools")
	session := flag.String("session", "", "Mcp-Session-Id to reuse")
	tool := flag.String("tool", "", "tool to call after listing")
	args := flag.String("args", "{}", "tool arguments as JSON")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	entry := logrus.NewEntry(log)

	header := http.Header{}
	if *token != "" {
		header.Set("Authorization", "Bearer "+*token)
	}
	if *session != "" {
		header.Set("Mcp-Session-Id", *session)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := ws.NewClient(*url, header, entry)
	if err := client.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	callCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	var initResult json.RawMessage
	if err := client.Call(callCtx, "initialize", map[string]any{"protocolVersion": "2025-03-26"}, &initResult); err != nil {
		log.Fatalf("initialize failed: %v", err)
	}
	if err := client.Notify("notifications/initialized", nil); err != nil {
		log.Fatalf("initialized notification failed: %v", err)
	}

	var list struct {
		Tools []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"tools"`
	}
	if err := client.Call(callCtx, "tools/list", nil, &list); err != nil {
		log.Fatalf("tools/list failed: %v", err)
	}
	for _, t := range list.Tools {
		entry.WithField("tool", t.Name).Info(t.Description)
	}

	if *tool == "" {
		return
	}
	if !json.Valid([]byte(*args)) {
		log.Fatalf("-args is not valid JSON: %s", *args)
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	params := map[string]any{"name": *tool, "arguments": json.RawMessage(*args)}
	if err := client.Call(callCtx, "tools/call", params, &result); err != nil {
		log.Fatalf("tools/call failed: %v", err)
	}
	for _, c := range result.Content {
		entry.WithFields(logrus.Fields{"tool": *tool, "is_error": result.IsError}).Info(c.Text)
	}
}
