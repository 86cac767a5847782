// Package broadcast defines the port for pushing real-time events to
// connected dashboard clients.
package broadcast

import "context"

// Broadcaster pushes typed events to clients subscribed to a chatbot.
// An empty chatbotID addresses every connected client.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, chatbotID, eventType string, payload any)
}
