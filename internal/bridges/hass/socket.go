package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// socketReadLimit caps inbound WebSocket messages.
const socketReadLimit = 4 << 20 // 4MB

// pendingResult carries the outcome of one correlated request.
type pendingResult struct {
	payload json.RawMessage
	err     error
}

// hubSocket is one authenticated WebSocket connection to the hub.
//
// Request ids are strictly increasing starting at 1 and are never reused
// within the connection's lifetime. A new connection starts a new id space;
// requests still pending when the connection drops fail with
// ErrConnectionLost — no response is assumed to be in flight after a
// reconnect.
//
// Thread Safety: all methods are safe for concurrent use. Events are
// dispatched from the single receive goroutine in the order received, so
// cache updates preserve the hub's per-connection FIFO ordering.
type hubSocket struct {
	conn *websocket.Conn

	// writeMu serialises writes; gorilla connections allow one writer.
	writeMu sync.Mutex

	// pending maps request ids to their waiting callers.
	pendingMu sync.Mutex
	pending   map[int64]chan pendingResult
	nextID    int64

	// onEvent receives state_changed payloads from the receive loop.
	onEvent func(stateChangedData)

	// closed is closed when the receive loop exits; closeErr records why.
	closed   chan struct{}
	closeErr error

	done   *closeOnce
	logger Logger
}

// dialSocket establishes and authenticates a WebSocket connection.
//
// The hub issues an auth_required challenge immediately after the upgrade;
// the client answers with its token and waits for auth_ok or auth_invalid.
// The whole exchange is bounded by handshakeTimeout: expiry is a transient
// failure (ErrHandshakeTimeout), a rejected token is terminal
// (ErrAuthRejected).
//
// onState is invoked as the handshake progresses so the supervisor can
// surface connecting/authenticating to observers.
func dialSocket(ctx context.Context, cfg Config, onState func(ConnectionState), onEvent func(stateChangedData), logger Logger) (*hubSocket, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.HandshakeTimeout)
	defer cancel()
	deadline, _ := ctx.Deadline()

	onState(StateConnecting)

	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, cfg.websocketURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial failed: %w", ErrNotConnected, err)
	}
	conn.SetReadLimit(socketReadLimit)

	onState(StateAuthenticating)

	if err := authenticate(conn, cfg.Token, deadline); err != nil {
		conn.Close()
		return nil, err
	}

	// Handshake complete; disarm the deadline for the receive loop.
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: clearing read deadline: %w", ErrNotConnected, err)
	}

	s := &hubSocket{
		conn:    conn,
		pending: make(map[int64]chan pendingResult),
		onEvent: onEvent,
		closed:  make(chan struct{}),
		done:    newCloseOnce(),
		logger:  logger,
	}
	go s.receiveLoop()
	return s, nil
}

// authenticate drives the challenge/response exchange on a fresh connection.
func authenticate(conn *websocket.Conn, token string, deadline time.Time) error {
	if err := conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("%w: setting read deadline: %w", ErrNotConnected, err)
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: setting write deadline: %w", ErrNotConnected, err)
	}

	var challenge serverMessage
	if err := conn.ReadJSON(&challenge); err != nil {
		return handshakeReadError("reading challenge", err)
	}
	if challenge.Type != msgTypeAuthRequired {
		return fmt.Errorf("%w: expected %s, got %q", ErrNotConnected, msgTypeAuthRequired, challenge.Type)
	}

	if err := conn.WriteJSON(authMessage{Type: msgTypeAuth, AccessToken: token}); err != nil {
		return fmt.Errorf("%w: sending credentials: %w", ErrNotConnected, err)
	}

	var verdict serverMessage
	if err := conn.ReadJSON(&verdict); err != nil {
		return handshakeReadError("reading auth result", err)
	}

	switch verdict.Type {
	case msgTypeAuthOK:
		return nil
	case msgTypeAuthInvalid:
		return fmt.Errorf("%w: %s", ErrAuthRejected, verdict.Message)
	default:
		return fmt.Errorf("%w: unexpected handshake message %q", ErrNotConnected, verdict.Type)
	}
}

// handshakeReadError classifies a read failure during the handshake.
// Deadline expiry maps to ErrHandshakeTimeout so the supervisor treats it as
// transient, distinct from a rejected credential.
func handshakeReadError(stage string, err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %s: %w", ErrHandshakeTimeout, stage, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrNotConnected, stage, err)
}

// isTimeout reports whether err is a network timeout.
func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	for e := err; e != nil; {
		if t, ok := e.(timeout); ok && t.Timeout() {
			return true
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		e = u.Unwrap()
	}
	return false
}

// roundTrip sends one request that expects a correlated result.
//
// The request is recorded in the pending map before it is written, so a
// fast response cannot race its registration. makeMsg receives the assigned
// id and returns the message to send.
func (s *hubSocket) roundTrip(ctx context.Context, makeMsg func(id int64) any) (json.RawMessage, error) {
	s.pendingMu.Lock()
	s.nextID++
	id := s.nextID
	ch := make(chan pendingResult, 1)
	s.pending[id] = ch
	s.pendingMu.Unlock()

	if err := s.writeJSON(makeMsg(id)); err != nil {
		s.removePending(id)
		return nil, fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}

	select {
	case res := <-ch:
		return res.payload, res.err
	case <-ctx.Done():
		s.removePending(id)
		return nil, fmt.Errorf("awaiting result %d: %w", id, ctx.Err())
	}
}

// SubscribeStateChanges requests delivery of state_changed events on this
// connection. Must be called once after every (re)connect: the hub keeps no
// server-side session across connections.
func (s *hubSocket) SubscribeStateChanges(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultRequestTimeout)
	defer cancel()

	_, err := s.roundTrip(ctx, func(id int64) any {
		return subscribeMessage{ID: id, Type: msgTypeSubscribe, EventType: eventTypeStateChanged}
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", eventTypeStateChanged, err)
	}
	return nil
}

// writeJSON serialises a single frame write.
func (s *hubSocket) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

// receiveLoop reads messages until the connection fails or Close is called.
// Events are applied in receive order; results resolve their pending entry.
func (s *hubSocket) receiveLoop() {
	defer func() {
		s.failAllPending(ErrConnectionLost)
		close(s.closed)
	}()

	for {
		var msg serverMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			select {
			case <-s.done.Done():
				s.closeErr = nil // deliberate shutdown
			default:
				s.closeErr = err
				s.logger.Warn("hub socket read failed", "error", err)
			}
			return
		}

		switch msg.Type {
		case msgTypeResult:
			s.resolvePending(msg)
		case msgTypeEvent:
			if msg.Event != nil && msg.Event.EventType == eventTypeStateChanged && s.onEvent != nil {
				s.onEvent(msg.Event.Data)
			}
		default:
			s.logger.Debug("ignoring hub message", "type", msg.Type)
		}
	}
}

// resolvePending delivers a result message to its waiting caller.
func (s *hubSocket) resolvePending(msg serverMessage) {
	s.pendingMu.Lock()
	ch, ok := s.pending[msg.ID]
	delete(s.pending, msg.ID)
	s.pendingMu.Unlock()

	if !ok {
		s.logger.Debug("result for unknown request id", "id", msg.ID)
		return
	}

	if msg.Success != nil && !*msg.Success {
		reason := "unknown error"
		if msg.Error != nil {
			reason = fmt.Sprintf("%s: %s", msg.Error.Code, msg.Error.Message)
		}
		ch <- pendingResult{err: fmt.Errorf("%w: %s", ErrCommandFailed, reason)}
		return
	}
	ch <- pendingResult{payload: msg.Result}
}

// failAllPending rejects every outstanding request with the given reason.
// Called exactly once, when the receive loop exits.
func (s *hubSocket) failAllPending(reason error) {
	s.pendingMu.Lock()
	pending := s.pending
	s.pending = make(map[int64]chan pendingResult)
	s.pendingMu.Unlock()

	for id, ch := range pending {
		ch <- pendingResult{err: fmt.Errorf("request %d: %w", id, reason)}
	}
}

// removePending drops a pending entry after a local failure (write error,
// caller timeout). The entry may already be gone if a result raced us.
func (s *hubSocket) removePending(id int64) {
	s.pendingMu.Lock()
	delete(s.pending, id)
	s.pendingMu.Unlock()
}

// Close shuts the connection down. Pending requests fail via the receive
// loop's exit path. Safe to call more than once.
func (s *hubSocket) Close() {
	s.done.Close()
	s.conn.Close()
}

// Closed returns a channel that is closed once the receive loop has exited.
func (s *hubSocket) Closed() <-chan struct{} {
	return s.closed
}

// CloseErr reports why the connection closed; nil after a deliberate Close.
func (s *hubSocket) CloseErr() error {
	return s.closeErr
}
