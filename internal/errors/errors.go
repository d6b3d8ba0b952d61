// internal/errors/errors.go
package appErrors

import (
    "errors"
    "fmt"
)

// ValidationError reports bad campaign or send input. Surfaced to the caller
// synchronously, never retried.
type ValidationError struct {
    Field  string
    Reason string
}

func (e *ValidationError) Error() string {
    return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) error {
    return &ValidationError{Field: field, Reason: reason}
}

func IsValidation(err error) bool {
    var ve *ValidationError
    return errors.As(err, &ve)
}

// DeviceNotReadyError means no eligible device could take the send. Retried
// via backoff, never a terminal failure.
type DeviceNotReadyError struct {
    DeviceID string
}

func (e *DeviceNotReadyError) Error() string {
    if e.DeviceID == "" {
        return "no device is ready"
    }
    return fmt.Sprintf("device %s is not ready", e.DeviceID)
}

func NewDeviceNotReady(deviceID string) error {
    return &DeviceNotReadyError{DeviceID: deviceID}
}

func IsDeviceNotReady(err error) bool {
    var de *DeviceNotReadyError
    return errors.As(err, &de)
}

// TransportError wraps a failed send. Recorded against the recipient, which
// is not retried; the campaign continues.
type TransportError struct {
    DeviceID string
    Err      error
}

func (e *TransportError) Error() string {
    return fmt.Sprintf("send via device %s failed: %v", e.DeviceID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func NewTransport(deviceID string, err error) error {
    return &TransportError{DeviceID: deviceID, Err: err}
}

// PersistenceError marks a storage write that failed. Logged, process
// continues with in-memory state; the next successful write self-heals.
type PersistenceError struct {
    Op  string
    Err error
}

func (e *PersistenceError) Error() string {
    return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func NewPersistence(op string, err error) error {
    return &PersistenceError{Op: op, Err: err}
}

// RecoverableTransportError means a device session died in a way worth one
// automatic recreation attempt (session/transport closed unexpectedly).
type RecoverableTransportError struct {
    DeviceID string
    Reason   string
}

func (e *RecoverableTransportError) Error() string {
    return fmt.Sprintf("device %s session lost: %s", e.DeviceID, e.Reason)
}

// CampaignNotFoundError is returned when a campaign ID does not exist.
type CampaignNotFoundError struct {
    CampaignID string
}

func (e *CampaignNotFoundError) Error() string {
    return fmt.Sprintf("campaign %s not found", e.CampaignID)
}

func NewCampaignNotFound(id string) error {
    return &CampaignNotFoundError{CampaignID: id}
}

func IsCampaignNotFound(err error) bool {
    var ce *CampaignNotFoundError
    return errors.As(err, &ce)
}
