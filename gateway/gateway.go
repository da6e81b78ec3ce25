// Package gateway owns the physical realtime connection: session
// registration, heartbeat, reconnection policy, and the typed public event
// stream consumed by the rest of the engine.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bsekhosana/sechat-app-sub011/contract"
	"github.com/bsekhosana/sechat-app-sub011/domain/event"
	"github.com/bsekhosana/sechat-app-sub011/errors"
)

type State string

const (
	StateDisconnected         State = "disconnected"
	StateConnecting           State = "connecting"
	StateAwaitingRegistration State = "awaitingRegistration"
	StateReady                State = "ready"
)

const (
	DefaultBackoffBase = 800 * time.Millisecond
	DefaultBackoffMax  = 30 * time.Second
)

// Gateway maintains exactly one logical connection per process lifetime.
// Reconnection is automatic and unbounded unless the last disconnect was
// requested explicitly.
type Gateway struct {
	log    *slog.Logger
	dialer contract.ISocketDialer

	mu            sync.Mutex
	state         State
	sock          contract.ISocket
	cancelRun     context.CancelFunc
	manuallyClose bool
	sessionID     string
	endpoint      string
	extra         map[string]string
	wg            sync.WaitGroup

	events      chan event.GatewayEvent
	backoffBase time.Duration
	backoffMax  time.Duration
}

func New(log *slog.Logger, dialer contract.ISocketDialer, streamBuffer int) *Gateway {
	if streamBuffer <= 0 {
		streamBuffer = 64
	}
	return &Gateway{
		log:         log,
		dialer:      dialer,
		state:       StateDisconnected,
		events:      make(chan event.GatewayEvent, streamBuffer),
		backoffBase: DefaultBackoffBase,
		backoffMax:  DefaultBackoffMax,
	}
}

// Events is the gateway's public stream. Every decoded inbound event is
// republished here in wire-arrival order; heartbeats never appear.
func (g *Gateway) Events() <-chan event.GatewayEvent {
	return g.events
}

// State returns the current connection state, the source of the UI's
// connectivity indicator.
func (g *Gateway) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// SessionID returns the identity registered with the remote peer-discovery
// service, empty until the first registration acknowledgment.
func (g *Gateway) SessionID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessionID
}

// Connect is idempotent: an already connected gateway tears its transport
// down first and starts fresh, so at most one socket is ever live. The
// extra parameters are carried on the registration handshake.
func (g *Gateway) Connect(ctx context.Context, endpoint, sessionID string, extra map[string]string) {
	g.teardown()

	runCtx, cancel := context.WithCancel(ctx)

	g.mu.Lock()
	g.endpoint = endpoint
	g.sessionID = sessionID
	g.extra = extra
	g.manuallyClose = false
	g.cancelRun = cancel
	g.state = StateConnecting
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.run(runCtx)
	}()
}

// Disconnect suppresses auto-reconnect, tears the transport down and halts
// the connection loop. It is the only terminal failure path.
func (g *Gateway) Disconnect() {
	g.mu.Lock()
	g.manuallyClose = true
	g.mu.Unlock()
	g.teardown()

	g.mu.Lock()
	g.state = StateDisconnected
	g.mu.Unlock()
}

// Emit writes a frame immediately. Without a live socket it fails fast so
// the caller's own retry loop can re-attempt later; it does not block on
// registration, callers must not emit user traffic before the session is
// registered.
func (g *Gateway) Emit(eventName string, payload map[string]any) error {
	g.mu.Lock()
	sock := g.sock
	g.mu.Unlock()

	if sock == nil {
		return errors.ErrNoTransport
	}
	if err := sock.WriteFrame(context.Background(), event.Frame{Event: eventName, Data: payload}); err != nil {
		return fmt.Errorf("emit %s: %w", eventName, err)
	}
	return nil
}

// SendTyping forwards the local typing indicator to the peer.
func (g *Gateway) SendTyping(toSessionID string, isTyping bool) error {
	return g.Emit(event.NameTypingUpdate, map[string]any{
		"toSessionId": toSessionID,
		"isTyping":    isTyping,
	})
}

// run is the connection loop: dial, register, read until failure, back off,
// repeat. Connect errors and mid-session disconnects never terminate the
// loop; only a requested disconnect or context cancellation does.
func (g *Gateway) run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil || g.closedManually() {
			return
		}

		g.setState(StateConnecting)
		sock, err := g.dialer.Dial(ctx, g.endpoint)
		if err != nil {
			g.log.Warn("Gateway connect failed", "endpoint", g.endpoint, "error", err)
			if !g.waitBackoff(ctx, attempt) {
				return
			}
			attempt++
			continue
		}

		g.mu.Lock()
		g.sock = sock
		g.mu.Unlock()

		if err = g.register(ctx, sock); err != nil {
			g.log.Warn("Session registration emit failed", "error", err)
			_ = sock.Close()
			g.clearSocket()
			if !g.waitBackoff(ctx, attempt) {
				return
			}
			attempt++
			continue
		}
		g.setState(StateAwaitingRegistration)
		attempt = 0

		err = g.readLoop(ctx, sock)
		_ = sock.Close()
		g.clearSocket()

		if ctx.Err() != nil || g.closedManually() {
			g.setState(StateDisconnected)
			return
		}
		g.log.Warn("Gateway connection lost, reconnecting", "error", err)
		if !g.waitBackoff(ctx, attempt) {
			return
		}
		attempt++
	}
}

// register emits the session handshake; the server answers with
// session_registered which moves the gateway to ready.
func (g *Gateway) register(ctx context.Context, sock contract.ISocket) error {
	data := map[string]any{"sessionId": g.sessionID}
	g.mu.Lock()
	for k, v := range g.extra {
		data[k] = v
	}
	g.mu.Unlock()
	return sock.WriteFrame(ctx, event.Frame{Event: event.NameRegisterSession, Data: data})
}

func (g *Gateway) readLoop(ctx context.Context, sock contract.ISocket) error {
	for {
		frame, err := sock.ReadFrame(ctx)
		if err != nil {
			return err
		}
		g.handleFrame(ctx, sock, frame)
	}
}

// handleFrame answers heartbeats inline and republishes everything else on
// the public stream after decoding. Malformed payloads are dropped and
// logged; they must never corrupt downstream state.
func (g *Gateway) handleFrame(ctx context.Context, sock contract.ISocket, frame event.Frame) {
	switch frame.Event {
	case event.NameHeartbeatPing:
		g.pong(ctx, sock, event.NameHeartbeatPong)
		return
	case event.NameConnectionPing:
		g.pong(ctx, sock, event.NameConnectionPong)
		return
	case event.NameSessionRegistered:
		g.setState(StateReady)
	}

	evt, err := event.Decode(frame)
	if err != nil {
		g.log.Warn("Dropping undecodable frame", "event", frame.Event, "error", err)
		return
	}
	g.publish(ctx, evt)
}

func (g *Gateway) pong(ctx context.Context, sock contract.ISocket, name string) {
	err := sock.WriteFrame(ctx, event.Frame{
		Event: name,
		Data:  map[string]any{"ts": time.Now().UnixMilli()},
	})
	if err != nil {
		g.log.Debug("Heartbeat reply failed", "error", err)
	}
}

func (g *Gateway) publish(ctx context.Context, evt event.GatewayEvent) {
	select {
	case g.events <- evt:
	case <-ctx.Done():
	}
}

// waitBackoff sleeps the bounded exponential delay for the given attempt.
// It returns false when the wait was interrupted by cancellation.
func (g *Gateway) waitBackoff(ctx context.Context, attempt int) bool {
	delay := g.backoffBase << attempt
	if delay > g.backoffMax || delay <= 0 {
		delay = g.backoffMax
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return !g.closedManually()
	case <-ctx.Done():
		return false
	}
}

// teardown cancels the connection loop and closes any live socket. It
// leaves the manual-close flag untouched so Connect can reuse it.
func (g *Gateway) teardown() {
	g.mu.Lock()
	cancel := g.cancelRun
	sock := g.sock
	g.cancelRun = nil
	g.sock = nil
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sock != nil {
		_ = sock.Close()
	}
	g.wg.Wait()
}

func (g *Gateway) clearSocket() {
	g.mu.Lock()
	g.sock = nil
	g.mu.Unlock()
}

func (g *Gateway) closedManually() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.manuallyClose
}

func (g *Gateway) setState(s State) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
}
