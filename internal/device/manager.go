package device

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	// ErrAlreadyConnected is returned by Connect when a live subscription
	// already exists for the greenhouse's endpoint.
	ErrAlreadyConnected = errors.New("device is already connected")
	// ErrNotConnected is returned by Disconnect when no live subscription
	// exists for the greenhouse's endpoint, and by Connect when a concurrent
	// Disconnect removed the reservation before the dial completed.
	ErrNotConnected = errors.New("device is not connected")
)

// EndpointSource resolves a greenhouse to its device's transport address.
type EndpointSource interface {
	GetDeviceEndpoint(ctx context.Context, greenhouseID string) (string, error)
}

// MessageHandler processes one inbound payload for a greenhouse.
type MessageHandler interface {
	Process(ctx context.Context, greenhouseID string, payload []byte)
}

// Session is one live link to a device endpoint's telemetry topic.
type Session interface {
	Close()
}

// Dialer opens a Session against an endpoint and delivers messages for the
// topic to onMessage in arrival order. onClose runs when the transport
// terminates the session.
type Dialer interface {
	Dial(endpoint, topic string, onMessage func(payload []byte), onClose func(err error)) (Session, error)
}

// liveEntry is one slot in the subscription table. Its pointer identity ties
// close callbacks and the dial-error path to the connect attempt that created
// it, so a stale callback from an old session cannot evict a newer one.
type liveEntry struct {
	sess Session // nil while the dial is in flight; guarded by Manager.mu
}

// Manager owns the live-subscription table: at most one Session per device
// endpoint at any time. Connect/Disconnect on the same endpoint are mutually
// exclusive; the table lock is never held across a dial, so operations on
// different endpoints proceed independently.
type Manager struct {
	endpoints EndpointSource
	dialer    Dialer
	handler   MessageHandler

	mu   sync.Mutex
	live map[string]*liveEntry
}

func NewManager(endpoints EndpointSource, dialer Dialer, handler MessageHandler) *Manager {
	return &Manager{
		endpoints: endpoints,
		dialer:    dialer,
		handler:   handler,
		live:      make(map[string]*liveEntry),
	}
}

// Connect resolves the greenhouse's endpoint and opens a subscription to its
// telemetry topic. It returns once the subscribe has been requested; it does
// not wait for the first message.
func (m *Manager) Connect(ctx context.Context, greenhouseID string) error {
	endpoint, err := m.endpoints.GetDeviceEndpoint(ctx, greenhouseID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if _, ok := m.live[endpoint]; ok {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	entry := &liveEntry{}
	m.live[endpoint] = entry
	m.mu.Unlock()

	topic := fmt.Sprintf("greenhouse/%s/data", greenhouseID)
	log.Info().Str("greenhouse_id", greenhouseID).Str("endpoint", endpoint).Str("topic", topic).Msg("connecting to device")

	onMessage := func(payload []byte) {
		m.handler.Process(context.Background(), greenhouseID, payload)
	}
	onClose := func(err error) {
		log.Warn().Err(err).Str("endpoint", endpoint).Msg("device session closed")
		m.drop(endpoint, entry)
	}

	sess, err := m.dialer.Dial(endpoint, topic, onMessage, onClose)
	if err != nil {
		m.drop(endpoint, entry)
		return fmt.Errorf("connect %s: %w", endpoint, err)
	}

	m.mu.Lock()
	if m.live[endpoint] != entry {
		// Disconnected while the dial was in flight.
		m.mu.Unlock()
		sess.Close()
		return fmt.Errorf("connect %s: %w", endpoint, ErrNotConnected)
	}
	entry.sess = sess
	m.mu.Unlock()
	return nil
}

// Disconnect closes the greenhouse's subscription and removes it from the
// live set.
func (m *Manager) Disconnect(ctx context.Context, greenhouseID string) error {
	endpoint, err := m.endpoints.GetDeviceEndpoint(ctx, greenhouseID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	entry, ok := m.live[endpoint]
	if !ok {
		m.mu.Unlock()
		return ErrNotConnected
	}
	delete(m.live, endpoint)
	sess := entry.sess
	m.mu.Unlock()

	if sess != nil {
		sess.Close()
	}
	log.Info().Str("greenhouse_id", greenhouseID).Str("endpoint", endpoint).Msg("disconnected from device")
	return nil
}

// DisconnectAll tears down every live session. Used at shutdown.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	entries := m.live
	m.live = make(map[string]*liveEntry)
	m.mu.Unlock()

	for endpoint, entry := range entries {
		if entry.sess != nil {
			entry.sess.Close()
		}
		log.Info().Str("endpoint", endpoint).Msg("disconnected from device")
	}
}

// drop removes the endpoint's entry only while it is still owned by the given
// connect attempt. A callback outliving its session is a no-op here.
func (m *Manager) drop(endpoint string, entry *liveEntry) {
	m.mu.Lock()
	if m.live[endpoint] == entry {
		delete(m.live, endpoint)
	}
	m.mu.Unlock()
}
