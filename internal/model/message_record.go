// internal/model/message_record.go
package model

import "time"

// Message record outcomes.
const (
    MessageStatusSent   = "sent"
    MessageStatusFailed = "failed"
)

// MessageRecord is one entry of the send history: exactly one per attempted
// recipient. Append-only; never mutated after creation.
type MessageRecord struct {
    ID         string    `db:"id" json:"id"`
    UserID     string    `db:"user_id" json:"user_id"`
    CampaignID string    `db:"campaign_id" json:"campaign_id,omitempty"` // empty for single sends
    Recipient  Recipient `db:"recipient" json:"recipient"`
    Content    string    `db:"content" json:"content"`
    DeviceID   string    `db:"device_id" json:"device_id,omitempty"` // empty if no device was available
    Status     string    `db:"status" json:"status"`
    LastError  string    `db:"last_error,omitempty" json:"last_error,omitempty"`
    CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
