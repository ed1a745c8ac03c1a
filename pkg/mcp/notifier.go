package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"

	"github.com/hassviz/hassviz/internal/streaming"
)

// HubNotifier forwards registry and index events to watching MCP
// sessions as notifications/message pushes.
type HubNotifier struct {
	mcpServer *server.MCPServer
	watches   *WatchRegistry
	hub       streaming.EventHub
}

// NewHubNotifier creates a notifier bridging the event hub to MCP push.
func NewHubNotifier(mcpServer *server.MCPServer, watches *WatchRegistry, hub streaming.EventHub) *HubNotifier {
	return &HubNotifier{mcpServer: mcpServer, watches: watches, hub: hub}
}

// Run subscribes to the hub and forwards events until ctx is cancelled.
func (n *HubNotifier) Run(ctx context.Context) error {
	ch, cancel, err := n.hub.Subscribe(ctx, streaming.EventFilter{})
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			n.notify(ctx, event)
		}
	}
}

// notify pushes one event to every watching session. Best-effort:
// expired sessions are dropped from the registry.
func (n *HubNotifier) notify(_ context.Context, event streaming.StreamEvent) {
	payload := map[string]any{
		"event_type":    event.EventType,
		"automation_id": event.AutomationID,
		"payload":       event.Payload,
	}
	for _, sid := range n.watches.SessionsFor(event.AutomationID) {
		err := n.mcpServer.SendNotificationToSpecificClient(sid, "notifications/message", payload)
		if errors.Is(err, server.ErrSessionNotFound) {
			n.watches.Remove(sid)
		}
	}
}
