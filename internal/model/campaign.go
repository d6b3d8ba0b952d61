// internal/model/campaign.go
package model

import "time"

// Campaign lifecycle statuses.
const (
    CampaignStatusActive    = "active"
    CampaignStatusCompleted = "completed"
    CampaignStatusStopped   = "stopped"
)

// Rotation policies.
const (
    RotationRoundRobin   = "round-robin"
    RotationRandom       = "random"
    RotationLoadBalanced = "load-balanced"
    RotationCustomCount  = "custom-count"
    RotationManual       = "manual"
)

// Recipient is one entry of a campaign's recipient list. Immutable once
// the campaign is created.
type Recipient struct {
    Phone string            `json:"phone"`
    Name  string            `json:"name,omitempty"`
    Tags  map[string]string `json:"tags,omitempty"`
}

// Attachment is an opaque reference to media sent along with a message.
type Attachment struct {
    URL      string `json:"url"`
    MimeType string `json:"mime_type,omitempty"`
    FileName string `json:"file_name,omitempty"`
}

// CampaignConfig carries the per-campaign sending knobs.
type CampaignConfig struct {
    DelayPolicy           string   `json:"delay_policy"`
    CustomDelayMinSeconds int      `json:"custom_delay_min_seconds,omitempty"`
    CustomDelayMaxSeconds int      `json:"custom_delay_max_seconds,omitempty"`
    RotationPolicy        string   `json:"rotation_policy"`
    DeviceIDs             []string `json:"device_ids,omitempty"` // empty = all ready devices
    MessagesPerDevice     int      `json:"messages_per_device,omitempty"`
    TypingSimulation      bool     `json:"typing_simulation"`
}

// RotationState is the rotation-policy bookkeeping embedded in a campaign.
// It is owned exclusively by that campaign and mutated only from its own tick.
type RotationState struct {
    Cursor         int                  `json:"cursor"`
    Usage          map[string]int       `json:"usage"`
    LastUsed       map[string]time.Time `json:"last_used"`
    PinnedDeviceID string               `json:"pinned_device_id,omitempty"`
    PinnedCount    int                  `json:"pinned_count"`
}

func NewRotationState() RotationState {
    return RotationState{
        Usage:    map[string]int{},
        LastUsed: map[string]time.Time{},
    }
}

// Clone returns a copy whose maps are independent of the receiver's, safe to
// hand out while the original keeps being mutated.
func (s RotationState) Clone() RotationState {
    cp := s
    cp.Usage = make(map[string]int, len(s.Usage))
    for k, v := range s.Usage {
        cp.Usage[k] = v
    }
    cp.LastUsed = make(map[string]time.Time, len(s.LastUsed))
    for k, v := range s.LastUsed {
        cp.LastUsed[k] = v
    }
    return cp
}

// RecordUse bumps the usage counters for a device after a successful send.
func (s *RotationState) RecordUse(deviceID string, at time.Time) {
    if s.Usage == nil {
        s.Usage = map[string]int{}
    }
    if s.LastUsed == nil {
        s.LastUsed = map[string]time.Time{}
    }
    s.Usage[deviceID]++
    s.LastUsed[deviceID] = at
}

type Campaign struct {
    ID              string         `db:"id" json:"id"`
    UserID          string         `db:"user_id" json:"user_id"`
    Name            string         `db:"name" json:"name"`
    Template        string         `db:"template" json:"template"`
    Recipients      []Recipient    `db:"recipients" json:"recipients"`
    Attachment      *Attachment    `db:"attachment" json:"attachment,omitempty"`
    Config          CampaignConfig `db:"config" json:"config"`
    Status          string         `db:"status" json:"status"`
    Total           int            `db:"total" json:"total"`
    Sent            int            `db:"sent" json:"sent"`
    Failed          int            `db:"failed" json:"failed"`
    NextIndex       int            `db:"next_index" json:"next_index"`
    Rotation        RotationState  `db:"rotation_state" json:"rotation_state"`
    CreatedAt       time.Time      `db:"created_at" json:"created_at"`
    UpdatedAt       *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
    LastProcessedAt *time.Time     `db:"last_processed_at" json:"last_processed_at,omitempty"`
}
