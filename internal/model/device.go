// internal/model/device.go
package model

import "time"

// Device session statuses.
const (
    DeviceStatusInitializing      = "initializing"
    DeviceStatusWaitingForPairing = "waiting_for_pairing"
    DeviceStatusAuthenticated     = "authenticated"
    DeviceStatusReady             = "ready"
    DeviceStatusDisconnected      = "disconnected"
    DeviceStatusError             = "error"
)

// Device is one logical, independently authenticated messaging endpoint
// owned by exactly one user. At most one live transport session exists per
// device ID; Ready is true iff Status is "ready".
type Device struct {
    ID           string    `json:"id"`
    UserID       string    `json:"user_id"`
    Name         string    `json:"name"`
    Status       string    `json:"status"`
    Ready        bool      `json:"ready"`
    PhoneNumber  string    `json:"phone_number,omitempty"` // bound identity, set once authenticated
    QRCode       string    `json:"qr_code,omitempty"`      // rendered pairing token, transient
    CreatedAt    time.Time `json:"created_at"`
    LastActivity time.Time `json:"last_activity"`
}
