package transport

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bulkwave/bulkwave-backend/internal/model"
)

// Simulator is an in-process stand-in for the real messaging transport:
// sessions pair automatically after a short delay and sends succeed with a
// configurable probability. Used for local development and tests.
type Simulator struct {
	mu       sync.Mutex
	sessions map[string]chan Event

	// FailureRate is the probability in [0,1] that a send fails.
	FailureRate  float64
	PairingDelay time.Duration
	ReadyDelay   time.Duration
	AutoPair     bool // emit authenticated/ready without a scan
}

func NewSimulator(failureRate float64) *Simulator {
	return &Simulator{
		sessions:     make(map[string]chan Event),
		FailureRate:  failureRate,
		PairingDelay: 200 * time.Millisecond,
		ReadyDelay:   time.Second,
		AutoPair:     true,
	}
}

func (s *Simulator) Initialize(deviceID string) (<-chan Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[deviceID]; ok {
		return nil, fmt.Errorf("session already open for device %s", deviceID)
	}

	events := make(chan Event, 8)
	s.sessions[deviceID] = events

	go func() {
		time.Sleep(s.PairingDelay)
		if !s.emit(deviceID, Event{Type: EventPairingToken, Token: uuid.NewString()}) {
			return
		}
		if !s.AutoPair {
			return
		}
		time.Sleep(s.ReadyDelay)
		if !s.emit(deviceID, Event{Type: EventAuthenticated}) {
			return
		}
		phone := fmt.Sprintf("+1555%07d", rand.Intn(10000000))
		s.emit(deviceID, Event{Type: EventReady, BoundIdentity: phone})
	}()

	return events, nil
}

// emit delivers an event unless the session has been destroyed meanwhile.
func (s *Simulator) emit(deviceID string, ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	events, ok := s.sessions[deviceID]
	if !ok {
		return false
	}
	select {
	case events <- ev:
		return true
	default:
		return false
	}
}

func (s *Simulator) SendMessage(ctx context.Context, deviceID, chatTarget, content string, attachment *model.Attachment) (*Receipt, error) {
	s.mu.Lock()
	_, ok := s.sessions[deviceID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no open session for device %s", deviceID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rand.Float64() < s.FailureRate {
		return nil, fmt.Errorf("simulated send to %s failed", chatTarget)
	}
	return &Receipt{MessageID: uuid.NewString(), Timestamp: time.Now()}, nil
}

func (s *Simulator) Destroy(deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if events, ok := s.sessions[deviceID]; ok {
		delete(s.sessions, deviceID)
		close(events)
	}
	return nil
}

var _ Transport = (*Simulator)(nil)
