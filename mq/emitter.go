package mq

import (
	"encoding/json"
	"log"

	"github.com/shehan-anujaya/SmartQ/globals"
	"github.com/shehan-anujaya/SmartQ/models"
	"github.com/shehan-anujaya/SmartQ/rdx"
)

// Channel carrying every queue state change; the display worker and
// any external consumer subscribe to it.
const QueueEventsChannel = "queue-events"

// Emit publishes a queue event to Redis. Delivery is best-effort:
// a publish failure is logged, never surfaced to the request path.
func Emit(eventName string, content models.QueueEvent) {
	content.Type = eventName

	data, err := json.Marshal(content)
	if err != nil {
		log.Printf("[Emit] Failed to marshal event content: %v", err)
		return
	}

	if err := rdx.Conn.Publish(globals.Ctx, QueueEventsChannel, data).Err(); err != nil {
		log.Printf("[Emit] Failed to publish %s to Redis: %v", eventName, err)
		return
	}
}
