// internal/service/campaign_engine.go
package service

import (
    "context"
    "sync"
    "time"

    "github.com/google/uuid"
    "github.com/sirupsen/logrus"

    "github.com/bulkwave/bulkwave-backend/internal/delay"
    appErrors "github.com/bulkwave/bulkwave-backend/internal/errors"
    "github.com/bulkwave/bulkwave-backend/internal/model"
    "github.com/bulkwave/bulkwave-backend/internal/notify"
    "github.com/bulkwave/bulkwave-backend/internal/repository"
    "github.com/bulkwave/bulkwave-backend/internal/rotation"
    "github.com/bulkwave/bulkwave-backend/internal/transport"
)

// DeviceSupervisor is the slice of the device supervisor the engine needs.
type DeviceSupervisor interface {
    GetReadyDevices(userID string) []*model.Device
    SendMessage(ctx context.Context, deviceID, recipientPhone, content string, attachment *model.Attachment) (*transport.Receipt, error)
}

type Options struct {
    EmptyDeviceBackoff time.Duration // retry when no eligible device is ready
    TickFailureBackoff time.Duration // retry after a tick panics
    RecoveryDelay      time.Duration // wait before resuming campaigns at boot
}

func (o *Options) defaults() {
    if o.EmptyDeviceBackoff == 0 {
        o.EmptyDeviceBackoff = 30 * time.Second
    }
    if o.TickFailureBackoff == 0 {
        o.TickFailureBackoff = 60 * time.Second
    }
    if o.RecoveryDelay == 0 {
        o.RecoveryDelay = 5 * time.Second
    }
}

// CampaignEngine drives one-message-at-a-time campaign processing. Each
// campaign owns one timer handle; a tick only reschedules itself after
// completing, so a campaign never runs two ticks concurrently. Every
// mutation is persisted before the next tick is scheduled.
type CampaignEngine struct {
    CampaignRepo repository.CampaignRepositoryInterface
    MessageRepo  repository.MessageRecordRepositoryInterface
    Devices      DeviceSupervisor
    Notifier     notify.Notifier

    mu        sync.Mutex
    campaigns map[string]*model.Campaign
    timers    map[string]*time.Timer
    epochs    map[string]uint64 // bumped on stop/restart; stale ticks discard their outcome
    opts      Options

    sleep func(time.Duration) // typing-simulation pause, replaced in tests
}

func NewCampaignEngine(
    campaignRepo repository.CampaignRepositoryInterface,
    messageRepo repository.MessageRecordRepositoryInterface,
    devices DeviceSupervisor,
    notifier notify.Notifier,
    opts Options,
) *CampaignEngine {
    opts.defaults()
    if notifier == nil {
        notifier = notify.Nop{}
    }
    return &CampaignEngine{
        CampaignRepo: campaignRepo,
        MessageRepo:  messageRepo,
        Devices:      devices,
        Notifier:     notifier,
        campaigns:    make(map[string]*model.Campaign),
        timers:       make(map[string]*time.Timer),
        epochs:       make(map[string]uint64),
        opts:         opts,
        sleep:        time.Sleep,
    }
}

// StartCampaignRequest is the bulk-start surface consumed by the engine.
type StartCampaignRequest struct {
    Name                  string            `json:"name"`
    Template              string            `json:"message_template"`
    Recipients            []model.Recipient `json:"recipients"`
    Attachment            *model.Attachment `json:"attachment,omitempty"`
    DelayPolicy           string            `json:"delay_policy"`
    CustomDelayMinSeconds int               `json:"custom_delay_min_seconds,omitempty"`
    CustomDelayMaxSeconds int               `json:"custom_delay_max_seconds,omitempty"`
    RotationPolicy        string            `json:"rotation_policy"`
    DeviceIDs             []string          `json:"device_ids,omitempty"`
    MessagesPerDevice     int               `json:"messages_per_device,omitempty"`
    TypingSimulation      bool              `json:"typing_simulation"`
}

// StartCampaign validates the request, persists the new campaign and
// schedules its first tick immediately.
func (e *CampaignEngine) StartCampaign(userID string, req StartCampaignRequest) (*model.Campaign, error) {
    if req.Template == "" {
        return nil, appErrors.NewValidation("message_template", "message template is required")
    }
    recipients := make([]model.Recipient, 0, len(req.Recipients))
    for _, r := range req.Recipients {
        if r.Phone == "" {
            continue
        }
        recipients = append(recipients, r)
    }
    if len(recipients) == 0 {
        return nil, appErrors.NewValidation("recipients", "recipient list is empty")
    }

    now := time.Now()
    name := req.Name
    if name == "" {
        name = "Bulk send " + now.Format("2006-01-02 15:04")
    }
    rotationPolicy := req.RotationPolicy
    if rotationPolicy == "" {
        rotationPolicy = model.RotationRoundRobin
    }
    delayPolicy := req.DelayPolicy
    if delayPolicy == "" {
        delayPolicy = delay.PolicyNormal
    }
    messagesPerDevice := req.MessagesPerDevice
    if rotationPolicy == model.RotationCustomCount && messagesPerDevice < 1 {
        messagesPerDevice = 1
    }

    c := &model.Campaign{
        ID:         uuid.NewString(),
        UserID:     userID,
        Name:       name,
        Template:   req.Template,
        Recipients: recipients,
        Attachment: req.Attachment,
        Config: model.CampaignConfig{
            DelayPolicy:           delayPolicy,
            CustomDelayMinSeconds: req.CustomDelayMinSeconds,
            CustomDelayMaxSeconds: req.CustomDelayMaxSeconds,
            RotationPolicy:        rotationPolicy,
            DeviceIDs:             req.DeviceIDs,
            MessagesPerDevice:     messagesPerDevice,
            TypingSimulation:      req.TypingSimulation,
        },
        Status:    model.CampaignStatusActive,
        Total:     len(recipients),
        Rotation:  model.NewRotationState(),
        CreatedAt: now,
    }

    if err := e.CampaignRepo.Create(c); err != nil {
        return nil, appErrors.NewPersistence("campaign create", err)
    }

    e.mu.Lock()
    e.campaigns[c.ID] = c
    e.scheduleTickLocked(c.ID, 0)
    e.mu.Unlock()

    logrus.Infof("campaign %s started for user %s: %d recipients", c.ID, userID, c.Total)
    return c, nil
}

// StopCampaign flips the campaign to stopped, cancels its pending tick and
// invalidates any in-flight tick in the same critical section: nothing
// mutates the campaign after this returns. Returns false when the campaign
// is unknown, not owned or not active.
func (e *CampaignEngine) StopCampaign(campaignID, userID string) bool {
    e.mu.Lock()
    c, ok := e.campaigns[campaignID]
    if !ok || c.UserID != userID || c.Status != model.CampaignStatusActive {
        e.mu.Unlock()
        return false
    }
    c.Status = model.CampaignStatusStopped
    now := time.Now()
    c.UpdatedAt = &now
    e.epochs[campaignID]++
    e.cancelTickLocked(campaignID)
    err := e.CampaignRepo.Update(c)
    e.mu.Unlock()

    if err != nil {
        logrus.Errorf("failed to persist stop of campaign %s: %v", campaignID, err)
    }
    logrus.Infof("campaign %s stopped at index %d/%d", campaignID, c.NextIndex, c.Total)
    return true
}

// RestartCampaign resets a completed or stopped campaign to the beginning
// and schedules it immediately. No-op on active campaigns.
func (e *CampaignEngine) RestartCampaign(campaignID, userID string) bool {
    e.mu.Lock()
    c, ok := e.campaigns[campaignID]
    if !ok || c.UserID != userID || c.Status == model.CampaignStatusActive {
        e.mu.Unlock()
        return false
    }
    c.Status = model.CampaignStatusActive
    c.Sent = 0
    c.Failed = 0
    c.NextIndex = 0
    c.Rotation = model.NewRotationState()
    now := time.Now()
    c.UpdatedAt = &now
    err := e.CampaignRepo.Update(c)
    e.epochs[campaignID]++
    e.scheduleTickLocked(campaignID, 0)
    e.mu.Unlock()

    if err != nil {
        logrus.Errorf("failed to persist restart of campaign %s: %v", campaignID, err)
    }
    logrus.Infof("campaign %s restarted", campaignID)
    return true
}

// GetCampaign returns a snapshot of the live campaign. The rotation maps are
// cloned so callers can read or encode the snapshot while ticks keep
// mutating the original.
func (e *CampaignEngine) GetCampaign(campaignID string) (*model.Campaign, bool) {
    e.mu.Lock()
    defer e.mu.Unlock()
    c, ok := e.campaigns[campaignID]
    if !ok {
        return nil, false
    }
    cp := *c
    cp.Rotation = c.Rotation.Clone()
    return &cp, true
}

// Recover loads every stored campaign and resumes the interrupted ones after
// a startup delay, giving the supervisor time to re-establish device
// readiness first. Unreadable storage is treated as empty, never fatal.
func (e *CampaignEngine) Recover() {
    campaigns, err := e.CampaignRepo.ListAll()
    if err != nil {
        logrus.Errorf("campaign recovery: storage unreadable, starting empty: %v", err)
        return
    }

    e.mu.Lock()
    defer e.mu.Unlock()
    resumed := 0
    for _, c := range campaigns {
        e.campaigns[c.ID] = c
        if c.Status != model.CampaignStatusActive {
            continue
        }
        if c.NextIndex >= c.Total {
            // Crashed between the last persist and the completion flip.
            c.Status = model.CampaignStatusCompleted
            if err := e.CampaignRepo.UpdateStatus(c.ID, c.Status); err != nil {
                logrus.Errorf("failed to complete campaign %s during recovery: %v", c.ID, err)
            }
            continue
        }
        e.scheduleTickLocked(c.ID, e.opts.RecoveryDelay)
        resumed++
    }
    logrus.Infof("campaign recovery: %d campaigns loaded, %d resumed", len(campaigns), resumed)
}

// ====================== tick processing ======================

func (e *CampaignEngine) scheduleTickLocked(campaignID string, after time.Duration) {
    if t, ok := e.timers[campaignID]; ok {
        t.Stop()
    }
    epoch := e.epochs[campaignID]
    e.timers[campaignID] = time.AfterFunc(after, func() {
        e.processTick(campaignID, epoch)
    })
}

func (e *CampaignEngine) cancelTickLocked(campaignID string) {
    if t, ok := e.timers[campaignID]; ok {
        t.Stop()
        delete(e.timers, campaignID)
    }
}

// processTick handles exactly one recipient or one retry backoff. It is the
// single state-transition function of the engine. A tick carries the epoch
// it was scheduled under; when a stop or restart bumped the epoch while the
// tick was suspended in the send, the tick discards its outcome instead of
// mutating a campaign that has moved on.
func (e *CampaignEngine) processTick(campaignID string, epoch uint64) {
    defer func() {
        if r := recover(); r != nil {
            logrus.Errorf("tick for campaign %s panicked: %v", campaignID, r)
            e.mu.Lock()
            if c, ok := e.campaigns[campaignID]; ok && c.Status == model.CampaignStatusActive && e.epochs[campaignID] == epoch {
                e.scheduleTickLocked(campaignID, e.opts.TickFailureBackoff)
            }
            e.mu.Unlock()
        }
    }()

    e.mu.Lock()
    c, ok := e.campaigns[campaignID]
    if !ok || c.Status != model.CampaignStatusActive || e.epochs[campaignID] != epoch {
        e.mu.Unlock()
        return
    }

    eligible := e.eligibleDevices(c)
    if len(eligible) == 0 {
        // Device unavailability is a retry, not a failure: no recipient is
        // consumed and the same tick runs again after the backoff.
        e.scheduleTickLocked(campaignID, e.opts.EmptyDeviceBackoff)
        e.mu.Unlock()
        logrus.Warnf("campaign %s: no eligible device, retrying in %s", campaignID, e.opts.EmptyDeviceBackoff)
        return
    }

    recipient := c.Recipients[c.NextIndex]
    cfg := c.Config
    userID := c.UserID
    attachment := c.Attachment
    dev := rotation.Pick(eligible, &c.Rotation, cfg.RotationPolicy, cfg.MessagesPerDevice)
    content := RenderTemplate(c.Template, recipient)
    e.mu.Unlock()

    // Suspension points live outside the lock so other campaigns keep
    // ticking while this one waits on the transport.
    if cfg.TypingSimulation {
        e.sleep(delay.ComputeTypingPause(len(content)))
    }
    _, sendErr := e.Devices.SendMessage(context.Background(), dev.ID, recipient.Phone, content, attachment)

    e.mu.Lock()
    c, ok = e.campaigns[campaignID]
    if !ok || e.epochs[campaignID] != epoch {
        e.mu.Unlock()
        return
    }

    if sendErr != nil && appErrors.IsDeviceNotReady(sendErr) {
        // The device vanished between selection and send: transient, retry
        // the same recipient.
        if c.Status == model.CampaignStatusActive {
            e.scheduleTickLocked(campaignID, e.opts.EmptyDeviceBackoff)
        }
        e.mu.Unlock()
        return
    }

    now := time.Now()
    record := &model.MessageRecord{
        ID:         uuid.NewString(),
        UserID:     userID,
        CampaignID: campaignID,
        Recipient:  recipient,
        Content:    content,
        DeviceID:   dev.ID,
        CreatedAt:  now,
    }
    if sendErr != nil {
        // Terminal for this recipient: failures are recorded, never retried.
        c.Failed++
        record.Status = model.MessageStatusFailed
        record.LastError = sendErr.Error()
    } else {
        c.Sent++
        record.Status = model.MessageStatusSent
        c.Rotation.RecordUse(dev.ID, now)
    }
    c.NextIndex++
    c.UpdatedAt = &now
    c.LastProcessedAt = &now

    completed := c.NextIndex >= c.Total && c.Status == model.CampaignStatusActive
    if completed {
        c.Status = model.CampaignStatusCompleted
        e.cancelTickLocked(campaignID)
    }

    if err := e.MessageRepo.Create(record); err != nil {
        logrus.Errorf("campaign %s: failed to persist message record: %v", campaignID, err)
    }
    if err := e.CampaignRepo.Update(c); err != nil {
        // Best-effort: in-memory state stays authoritative and the next
        // successful write self-heals.
        logrus.Errorf("campaign %s: failed to persist progress: %v", campaignID, err)
    }

    if !completed && c.Status == model.CampaignStatusActive {
        e.scheduleTickLocked(campaignID, delay.ComputeDelay(cfg.DelayPolicy, cfg.CustomDelayMinSeconds, cfg.CustomDelayMaxSeconds))
    }
    sent, failed, total := c.Sent, c.Failed, c.Total
    e.mu.Unlock()

    if record.Status == model.MessageStatusFailed {
        e.Notifier.Publish(userID, notify.EventMessageFailed, map[string]string{
            "campaign_id": campaignID,
            "phone":       recipient.Phone,
            "reason":      record.LastError,
        })
    }
    e.Notifier.Publish(userID, notify.EventCampaignProgress, map[string]int{
        "sent": sent, "failed": failed, "total": total,
    })
    if completed {
        logrus.Infof("campaign %s completed: %d sent, %d failed", campaignID, sent, failed)
        e.Notifier.Publish(userID, notify.EventCampaignCompleted, map[string]any{
            "campaign_id": campaignID,
            "sent":        sent,
            "failed":      failed,
            "total":       total,
        })
    }
}

// eligibleDevices intersects the user's ready devices with the campaign's
// configured subset. Caller holds e.mu.
func (e *CampaignEngine) eligibleDevices(c *model.Campaign) []*model.Device {
    ready := e.Devices.GetReadyDevices(c.UserID)
    if len(c.Config.DeviceIDs) == 0 {
        return ready
    }
    allowed := make(map[string]bool, len(c.Config.DeviceIDs))
    for _, id := range c.Config.DeviceIDs {
        allowed[id] = true
    }
    eligible := ready[:0:0]
    for _, d := range ready {
        if allowed[d.ID] {
            eligible = append(eligible, d)
        }
    }
    return eligible
}
