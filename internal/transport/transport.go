// Package transport defines the capability contract of the underlying
// messaging transport. The real protocol client lives outside this repo; the
// supervisor only consumes this interface and the event stream it returns.
package transport

import (
	"context"
	"time"

	"github.com/bulkwave/bulkwave-backend/internal/model"
)

type EventType string

const (
	EventPairingToken  EventType = "pairing-token"
	EventAuthenticated EventType = "authenticated"
	EventReady         EventType = "ready"
	EventAuthFailure   EventType = "auth-failure"
	EventDisconnected  EventType = "disconnected"
	EventError         EventType = "error"
)

// Error reasons the supervisor treats as recoverable (one automatic
// recreation attempt before the device is reclaimed).
const (
	ReasonSessionClosed   = "session_closed"
	ReasonTransportClosed = "transport_closed"
)

// Event is one transport-reported lifecycle event for a device. Events may
// arrive at any time and in any order.
type Event struct {
	Type          EventType
	Token         string // pairing token, EventPairingToken only
	BoundIdentity string // phone identifier, EventReady only
	Reason        string
}

// Recoverable reports whether the event is an error class worth an automatic
// session recreation.
func (e Event) Recoverable() bool {
	if e.Type != EventError && e.Type != EventDisconnected {
		return false
	}
	return e.Reason == ReasonSessionClosed || e.Reason == ReasonTransportClosed
}

// Receipt acknowledges a transmitted message.
type Receipt struct {
	MessageID string
	Timestamp time.Time
}

// Transport opens, drives and tears down device sessions.
type Transport interface {
	// Initialize opens a session for the device and returns its event
	// stream. The stream is closed when the session is destroyed.
	Initialize(deviceID string) (<-chan Event, error)

	// SendMessage transmits one message through the device's session. The
	// session is not safe for concurrent use; callers serialize per device.
	SendMessage(ctx context.Context, deviceID, chatTarget, content string, attachment *model.Attachment) (*Receipt, error)

	// Destroy tears down the session and its on-disk authentication
	// material. Idempotent.
	Destroy(deviceID string) error
}
