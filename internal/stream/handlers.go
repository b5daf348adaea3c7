package stream

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// SampleSink consumes raw location samples sent by a connected device.
// Implemented by the ingest service; kept as an interface so the stream
// package stays transport-only.
type SampleSink interface {
	HandleRaw(ctx context.Context, sessionID string, raw []byte) error
}

// RegisterRoutes mounts the per-session live channel. A single socket both
// delivers events (live-point, geofence-alert, walk-started, walk-ended)
// and accepts location samples from the caretaker's device.
func RegisterRoutes(r fiber.Router, hub *Hub, sink SampleSink) {
	r.Get("/ws/:sessionID", websocket.New(func(c *websocket.Conn) {
		sessionID := c.Params("sessionID")
		client := hub.Register(sessionID)
		defer hub.Unregister(client)

		done := make(chan struct{})
		go func() {
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					break
				}
			}
			close(done)
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}
			if sink == nil || len(msg) == 0 {
				continue
			}
			if err := sink.HandleRaw(context.Background(), sessionID, msg); err != nil {
				// A bad sample is reported to the sender only; the
				// connection and other sessions stay untouched.
				select {
				case client.Send <- errorPayload(err):
				default:
				}
			}
		}
		<-done
	}))
}

func errorPayload(err error) []byte {
	payload, _ := json.Marshal(Event{Type: EventError, Data: fiber.Map{"message": err.Error()}})
	return payload
}
