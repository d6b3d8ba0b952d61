// Package device owns the lifecycle of each device's authenticated transport
// session: creation, QR pairing, readiness, disconnects and timeout-based
// reclamation. It knows nothing about campaigns.
package device

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	appErrors "github.com/bulkwave/bulkwave-backend/internal/errors"
	"github.com/bulkwave/bulkwave-backend/internal/model"
	"github.com/bulkwave/bulkwave-backend/internal/notify"
	"github.com/bulkwave/bulkwave-backend/internal/qr"
	"github.com/bulkwave/bulkwave-backend/internal/transport"
)

type Options struct {
	QRTokenTTL        time.Duration // pairing token expiry
	InactivityTimeout time.Duration // force-reclaim regardless of state, reset on send
	ReclaimGrace      time.Duration // delay between a dead session and its teardown
}

func (o *Options) defaults() {
	if o.QRTokenTTL == 0 {
		o.QRTokenTTL = 25 * time.Second
	}
	if o.InactivityTimeout == 0 {
		o.InactivityTimeout = time.Hour
	}
	if o.ReclaimGrace == 0 {
		o.ReclaimGrace = 30 * time.Second
	}
}

// session pairs a device record with its transport-side bookkeeping. The
// send mutex serializes sends per device; a transport session is not safe
// for concurrent use.
type session struct {
	device *model.Device
	sendMu sync.Mutex

	qrTimer      *time.Timer
	idleTimer    *time.Timer
	reclaimTimer *time.Timer
	recreated    bool // one automatic recreation attempt per failure episode
}

// Supervisor owns the device registry. All state mutation happens under its
// mutex; transport sends happen outside it under the per-device send mutex.
type Supervisor struct {
	mu      sync.Mutex
	devices map[string]*session

	transport transport.Transport
	notifier  notify.Notifier
	opts      Options
}

func NewSupervisor(t transport.Transport, n notify.Notifier, opts Options) *Supervisor {
	opts.defaults()
	if n == nil {
		n = notify.Nop{}
	}
	return &Supervisor{
		devices:   make(map[string]*session),
		transport: t,
		notifier:  n,
		opts:      opts,
	}
}

// CreateDevice allocates a device, opens its transport session and returns
// immediately in the initializing state. Pairing is asynchronous: the token
// arrives later as a transport event.
func (s *Supervisor) CreateDevice(userID, name string) (*model.Device, error) {
	now := time.Now()
	d := &model.Device{
		ID:           uuid.NewString(),
		UserID:       userID,
		Name:         name,
		Status:       model.DeviceStatusInitializing,
		CreatedAt:    now,
		LastActivity: now,
	}
	sess := &session{device: d}

	events, err := s.transport.Initialize(d.ID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.devices[d.ID] = sess
	sess.idleTimer = time.AfterFunc(s.opts.InactivityTimeout, func() {
		s.reclaim(d.ID, "inactivity timeout")
	})
	s.mu.Unlock()

	go s.consumeEvents(d.ID, events)

	logrus.Infof("device %s created for user %s", d.ID, userID)
	return snapshot(d), nil
}

func (s *Supervisor) consumeEvents(deviceID string, events <-chan transport.Event) {
	for ev := range events {
		s.handleEvent(deviceID, ev)
	}
}

// handleEvent translates one transport event into a state transition. Events
// can arrive at any time and in any order, including error after ready.
func (s *Supervisor) handleEvent(deviceID string, ev transport.Event) {
	s.mu.Lock()
	sess, ok := s.devices[deviceID]
	if !ok {
		s.mu.Unlock()
		return
	}
	d := sess.device
	userID := d.UserID

	var eventName string
	var payload any

	switch ev.Type {
	case transport.EventPairingToken:
		d.Status = model.DeviceStatusWaitingForPairing
		d.Ready = false
		img, err := qr.RenderToken(ev.Token)
		if err != nil {
			logrus.Errorf("failed to render pairing token for device %s: %v", deviceID, err)
		}
		d.QRCode = img
		if sess.qrTimer != nil {
			sess.qrTimer.Stop()
		}
		sess.qrTimer = time.AfterFunc(s.opts.QRTokenTTL, func() {
			s.expireToken(deviceID)
		})
		eventName = notify.EventDeviceQR
		payload = map[string]string{"device_id": deviceID, "qr_code": img}

	case transport.EventAuthenticated:
		d.Status = model.DeviceStatusAuthenticated
		d.QRCode = ""
		if sess.qrTimer != nil {
			sess.qrTimer.Stop()
		}

	case transport.EventReady:
		d.Status = model.DeviceStatusReady
		d.Ready = true
		d.PhoneNumber = ev.BoundIdentity
		d.QRCode = ""
		d.LastActivity = time.Now()
		if sess.qrTimer != nil {
			sess.qrTimer.Stop()
		}
		if sess.reclaimTimer != nil {
			sess.reclaimTimer.Stop()
			sess.reclaimTimer = nil
		}
		sess.recreated = false
		eventName = notify.EventDeviceReady
		payload = map[string]string{"device_id": deviceID, "phone_number": d.PhoneNumber}

	case transport.EventAuthFailure:
		d.Status = model.DeviceStatusError
		d.Ready = false
		s.scheduleReclaimLocked(sess)
		eventName = notify.EventDeviceDisconnected
		payload = map[string]string{"device_id": deviceID, "reason": ev.Reason}

	case transport.EventDisconnected, transport.EventError:
		d.Ready = false
		if ev.Type == transport.EventDisconnected {
			d.Status = model.DeviceStatusDisconnected
		} else {
			d.Status = model.DeviceStatusError
		}
		if ev.Recoverable() && !sess.recreated {
			sess.recreated = true
			go s.recreate(deviceID)
		} else {
			s.scheduleReclaimLocked(sess)
		}
		eventName = notify.EventDeviceDisconnected
		payload = map[string]string{"device_id": deviceID, "reason": ev.Reason}
	}
	s.mu.Unlock()

	if eventName != "" {
		s.notifier.Publish(userID, eventName, payload)
	}
}

// expireToken clears an unclaimed pairing token; the transport is expected
// to issue a fresh one on its own schedule.
func (s *Supervisor) expireToken(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.devices[deviceID]
	if !ok || sess.device.Ready || sess.device.QRCode == "" {
		return
	}
	sess.device.QRCode = ""
	logrus.Debugf("pairing token expired for device %s", deviceID)
}

// recreate tears down a dead session and opens a fresh one for the same
// device. Runs at most once per failure episode.
func (s *Supervisor) recreate(deviceID string) {
	s.transport.Destroy(deviceID)

	s.mu.Lock()
	sess, ok := s.devices[deviceID]
	if !ok {
		s.mu.Unlock()
		return
	}
	sess.device.Status = model.DeviceStatusInitializing
	sess.device.Ready = false
	s.mu.Unlock()

	logrus.Warnf("recreating transport session for device %s", deviceID)
	events, err := s.transport.Initialize(deviceID)
	if err != nil {
		logrus.Errorf("failed to recreate session for device %s: %v", deviceID, err)
		s.mu.Lock()
		s.scheduleReclaimLocked(sess)
		s.mu.Unlock()
		return
	}
	go s.consumeEvents(deviceID, events)
}

func (s *Supervisor) scheduleReclaimLocked(sess *session) {
	if sess.reclaimTimer != nil {
		sess.reclaimTimer.Stop()
	}
	id := sess.device.ID
	sess.reclaimTimer = time.AfterFunc(s.opts.ReclaimGrace, func() {
		s.reclaim(id, "session not recovered within grace period")
	})
}

func (s *Supervisor) reclaim(deviceID, reason string) {
	logrus.Warnf("reclaiming device %s: %s", deviceID, reason)
	if err := s.DeleteDevice(deviceID); err != nil {
		logrus.Errorf("failed to reclaim device %s: %v", deviceID, err)
	}
}

// SendMessage delegates one send to the device's transport session,
// serialized per device. Fails fast when the device is not ready; transport
// failures propagate to the caller, which owns the retry policy.
func (s *Supervisor) SendMessage(ctx context.Context, deviceID, recipientPhone, content string, attachment *model.Attachment) (*transport.Receipt, error) {
	s.mu.Lock()
	sess, ok := s.devices[deviceID]
	if !ok || !sess.device.Ready {
		s.mu.Unlock()
		return nil, appErrors.NewDeviceNotReady(deviceID)
	}
	s.mu.Unlock()

	sess.sendMu.Lock()
	defer sess.sendMu.Unlock()

	receipt, err := s.transport.SendMessage(ctx, deviceID, recipientPhone, content, attachment)
	if err != nil {
		return nil, appErrors.NewTransport(deviceID, err)
	}
	s.touch(deviceID)
	return receipt, nil
}

// touch resets the inactivity clock after a successful send.
func (s *Supervisor) touch(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.devices[deviceID]
	if !ok {
		return
	}
	sess.device.LastActivity = time.Now()
	if sess.idleTimer != nil {
		sess.idleTimer.Reset(s.opts.InactivityTimeout)
	}
}

// DeleteDevice tears down the session, timers and auth material. Idempotent.
func (s *Supervisor) DeleteDevice(deviceID string) error {
	s.mu.Lock()
	sess, ok := s.devices[deviceID]
	if ok {
		delete(s.devices, deviceID)
		stopTimers(sess)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.transport.Destroy(deviceID)
}

func (s *Supervisor) GetDevice(deviceID string) (*model.Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.devices[deviceID]
	if !ok {
		return nil, false
	}
	return snapshot(sess.device), true
}

func (s *Supervisor) ListDevices(userID string) []*model.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	devices := []*model.Device{}
	for _, sess := range s.devices {
		if sess.device.UserID == userID {
			devices = append(devices, snapshot(sess.device))
		}
	}
	sortDevices(devices)
	return devices
}

// GetReadyDevices returns the user's ready devices in a stable order, so
// rotation cursors walk a deterministic list.
func (s *Supervisor) GetReadyDevices(userID string) []*model.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	devices := []*model.Device{}
	for _, sess := range s.devices {
		if sess.device.UserID == userID && sess.device.Ready {
			devices = append(devices, snapshot(sess.device))
		}
	}
	sortDevices(devices)
	return devices
}

func sortDevices(devices []*model.Device) {
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].CreatedAt.Equal(devices[j].CreatedAt) {
			return devices[i].ID < devices[j].ID
		}
		return devices[i].CreatedAt.Before(devices[j].CreatedAt)
	})
}

func stopTimers(sess *session) {
	for _, t := range []*time.Timer{sess.qrTimer, sess.idleTimer, sess.reclaimTimer} {
		if t != nil {
			t.Stop()
		}
	}
}

func snapshot(d *model.Device) *model.Device {
	cp := *d
	return &cp
}
