// internal/service/single_send.go
package service

import (
    "context"
    "math/rand"
    "time"

    "github.com/google/uuid"
    "github.com/sirupsen/logrus"

    appErrors "github.com/bulkwave/bulkwave-backend/internal/errors"
    "github.com/bulkwave/bulkwave-backend/internal/model"
    "github.com/bulkwave/bulkwave-backend/internal/notify"
)

// SingleSendRequest is a one-off send outside any campaign.
type SingleSendRequest struct {
    DeviceID   string            `json:"device_id,omitempty"` // empty = any ready device
    Phone      string            `json:"phone"`
    Name       string            `json:"name,omitempty"`
    Content    string            `json:"content"`
    Attachment *model.Attachment `json:"attachment,omitempty"`
}

// SendSingle attempts one send and appends exactly one message record,
// whatever the outcome. The record's campaign ID stays empty.
func (e *CampaignEngine) SendSingle(userID string, req SingleSendRequest) (*model.MessageRecord, error) {
    if req.Phone == "" {
        return nil, appErrors.NewValidation("phone", "recipient phone is required")
    }
    if req.Content == "" {
        return nil, appErrors.NewValidation("content", "message content is required")
    }

    recipient := model.Recipient{Phone: req.Phone, Name: req.Name}
    content := RenderTemplate(req.Content, recipient)
    record := &model.MessageRecord{
        ID:        uuid.NewString(),
        UserID:    userID,
        Recipient: recipient,
        Content:   content,
        CreatedAt: time.Now(),
    }

    devices := e.Devices.GetReadyDevices(userID)
    if req.DeviceID != "" {
        filtered := devices[:0:0]
        for _, d := range devices {
            if d.ID == req.DeviceID {
                filtered = append(filtered, d)
            }
        }
        devices = filtered
    }

    if len(devices) == 0 {
        record.Status = model.MessageStatusFailed
        record.LastError = appErrors.NewDeviceNotReady(req.DeviceID).Error()
    } else {
        dev := devices[rand.Intn(len(devices))]
        record.DeviceID = dev.ID
        _, err := e.Devices.SendMessage(context.Background(), dev.ID, req.Phone, content, req.Attachment)
        if err != nil {
            record.Status = model.MessageStatusFailed
            record.LastError = err.Error()
        } else {
            record.Status = model.MessageStatusSent
        }
    }

    if err := e.MessageRepo.Create(record); err != nil {
        logrus.Errorf("failed to persist single send record: %v", err)
    }
    if record.Status == model.MessageStatusFailed {
        e.Notifier.Publish(userID, notify.EventMessageFailed, map[string]string{
            "phone":  req.Phone,
            "reason": record.LastError,
        })
    }
    return record, nil
}
