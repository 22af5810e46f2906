package hass

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ConnectionState describes the WebSocket connection lifecycle.
//
// The state is owned solely by the reconnection supervisor; every other
// component observes it and never sets it.
type ConnectionState string

// ConnectionState values.
const (
	StateDisconnected   ConnectionState = "disconnected"
	StateConnecting     ConnectionState = "connecting"
	StateAuthenticating ConnectionState = "authenticating"
	StateConnected      ConnectionState = "connected"
)

// backoffDelay computes the delay before reconnection attempt n (0-based):
// min(base × 2^(n+1), cap). With base 1s and cap 30s the sequence is
// 2s, 4s, 8s, 16s, 30s, 30s, …
func backoffDelay(base, cap time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i <= attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}

// supervisor owns the hub WebSocket connection's lifetime.
//
// It establishes the connection, replays the authentication handshake and
// the event subscription on every (re)connect, and applies bounded
// exponential backoff after connection loss. It never retries after the hub
// rejects the token: that requires reconfiguration with a new credential.
type supervisor struct {
	cfg     Config
	onEvent func(stateChangedData)
	logger  Logger

	mu      sync.RWMutex
	state   ConnectionState
	sock    *hubSocket
	lastErr error

	done *closeOnce
	wg   sync.WaitGroup
}

// newSupervisor creates a supervisor for the given configuration.
// Call Start to establish the first connection.
func newSupervisor(cfg Config, onEvent func(stateChangedData), logger Logger) *supervisor {
	return &supervisor{
		cfg:     cfg,
		onEvent: onEvent,
		logger:  logger,
		state:   StateDisconnected,
		done:    newCloseOnce(),
	}
}

// Start performs the initial connection attempt synchronously, then hands
// supervision to a background goroutine.
//
// A rejected token fails Start with ErrAuthRejected and leaves the
// supervisor disconnected. A transient failure starts the background retry
// loop and returns nil: the bridge is usable for REST reads while the
// supervisor works on the connection.
func (s *supervisor) Start(ctx context.Context) error {
	err := s.connectOnce(ctx)
	if errors.Is(err, ErrAuthRejected) {
		s.setState(StateDisconnected, err)
		return err
	}
	if err != nil {
		s.logger.Warn("initial hub connection failed, retrying in background", "error", err)
		s.setState(StateDisconnected, err)
	}

	s.wg.Add(1)
	go s.run(err != nil)
	return nil
}

// run supervises the connection until Stop is called or retries are
// exhausted. retrying indicates the initial attempt already failed, so the
// loop starts in backoff rather than waiting for a healthy socket to die.
func (s *supervisor) run(retrying bool) {
	defer s.wg.Done()

	for {
		if !retrying {
			sock := s.currentSock()
			if sock == nil {
				return
			}
			select {
			case <-s.done.Done():
				return
			case <-sock.Closed():
			}
			if s.isClosed() {
				return
			}
			s.logger.Warn("hub connection lost", "error", sock.CloseErr())
			s.setState(StateDisconnected, sock.CloseErr())
		}

		if !s.reconnect() {
			return
		}
		retrying = false
	}
}

// reconnect retries the connection with exponential backoff.
// Returns false when supervision should end: shutdown, a rejected token, or
// the attempt cap reached.
func (s *supervisor) reconnect() bool {
	for attempt := 0; attempt < s.cfg.Reconnect.MaxAttempts; attempt++ {
		delay := backoffDelay(s.cfg.Reconnect.BackoffBase, s.cfg.Reconnect.BackoffCap, attempt)
		s.logger.Info("reconnecting to hub", "attempt", attempt+1, "delay", delay.String())

		select {
		case <-s.done.Done():
			return false
		case <-time.After(delay):
		}

		err := s.connectOnce(context.Background())
		if err == nil {
			return true
		}
		if errors.Is(err, ErrAuthRejected) {
			s.logger.Error("hub rejected credentials, reconnection stopped", "error", err)
			s.setState(StateDisconnected, err)
			return false
		}
		s.logger.Warn("reconnection attempt failed", "attempt", attempt+1, "error", err)
		s.setState(StateDisconnected, err)
	}

	s.logger.Error("reconnection attempts exhausted", "attempts", s.cfg.Reconnect.MaxAttempts)
	return false
}

// connectOnce dials, authenticates, and re-subscribes. The subscription is
// re-sent on every connection: the hub keeps no session state across
// connections, and the new connection starts a fresh request id space.
func (s *supervisor) connectOnce(ctx context.Context) error {
	sock, err := dialSocket(ctx, s.cfg, s.observeState, s.onEvent, s.logger)
	if err != nil {
		return err
	}

	if err := sock.SubscribeStateChanges(ctx); err != nil {
		sock.Close()
		return err
	}

	s.mu.Lock()
	s.sock = sock
	s.state = StateConnected
	s.lastErr = nil
	s.mu.Unlock()

	s.logger.Info("hub connection established")
	return nil
}

// observeState publishes intermediate handshake states.
func (s *supervisor) observeState(state ConnectionState) {
	s.setState(state, nil)
}

// setState records the connection state and, when provided, the error that
// caused it.
func (s *supervisor) setState(state ConnectionState, err error) {
	s.mu.Lock()
	s.state = state
	if err != nil {
		s.lastErr = err
	}
	s.mu.Unlock()
}

// State returns the current connection state.
func (s *supervisor) State() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastErr returns the most recent connection error, or nil.
func (s *supervisor) LastErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// currentSock returns the active socket, or nil.
func (s *supervisor) currentSock() *hubSocket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sock
}

// isClosed reports whether Stop has been called.
func (s *supervisor) isClosed() bool {
	select {
	case <-s.done.Done():
		return true
	default:
		return false
	}
}

// Stop tears the connection down and ends supervision. Pending requests on
// the active socket fail with ErrConnectionLost. Safe to call repeatedly.
func (s *supervisor) Stop() {
	s.done.Close()
	if sock := s.currentSock(); sock != nil {
		sock.Close()
	}
	s.wg.Wait()
	s.setState(StateDisconnected, nil)
}
