package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/splax/installer/internal/domain"
	"github.com/splax/installer/internal/ws"
)

// HubSink streams notices to websocket and SSE clients.
type HubSink struct {
	hub *ws.Hub
}

func NewHubSink(hub *ws.Hub) *HubSink {
	return &HubSink{hub: hub}
}

func (s *HubSink) Name() string { return "hub" }

func (s *HubSink) Handle(ctx context.Context, notice domain.Notice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("encode notice: %w", err)
	}
	return s.hub.Broadcast(ctx, payload)
}
