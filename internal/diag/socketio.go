package diag

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
)

// DefaultEventName is the socket.io event diagnostics are emitted under.
const DefaultEventName = "graph_diagnostic"

// SocketIOOptions configures DialSocketIO.
type SocketIOOptions struct {
	URL                string
	Namespace          string
	Event              string
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// SocketIOSink forwards events to a socket.io server.
type SocketIOSink struct {
	event string
	emit  func(event string, args ...any) error
	close func()
}

// NewSocketIOSink builds a sink around an emit function. DialSocketIO uses it
// with a connected client; tests pass a recorder.
func NewSocketIOSink(event string, emit func(event string, args ...any) error, closeFn func()) *SocketIOSink {
	if event == "" {
		event = DefaultEventName
	}
	if closeFn == nil {
		closeFn = func() {}
	}
	return &SocketIOSink{event: event, emit: emit, close: closeFn}
}

// DialSocketIO connects to a socket.io server and waits for the handshake.
func DialSocketIO(ctx context.Context, o SocketIOOptions) (*SocketIOSink, error) {
	logger := ctxlog.FromContext(ctx).With("sink", "socketio", "url", o.URL)
	logger.Info("Connecting diagnostics sink...")

	parsedURL, err := url.Parse(o.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if o.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	connectChan := make(chan error, 1)
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(o.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Diagnostics sink connected.", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err, _ := errs[0].(error)
		if err == nil {
			err = fmt.Errorf("%v", errs[0])
		}
		connectChan <- err
	})
	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}

	emit := func(event string, args ...any) error {
		if !io.Connected() {
			return fmt.Errorf("socket.io client %s is not connected", io.Id())
		}
		io.Emit(event, args...)
		return nil
	}
	return NewSocketIOSink(o.Event, emit, func() { io.Disconnect() }), nil
}

// Emit sends the event as a JSON-shaped map. Failures are logged, never
// returned, so a broken collector cannot affect the graph.
func (s *SocketIOSink) Emit(ctx context.Context, ev Event) {
	payload := map[string]any{
		"kind":    string(ev.Kind),
		"graph":   ev.Graph,
		"node":    ev.Node,
		"pad":     ev.Pad,
		"link":    ev.Link,
		"format":  ev.Format,
		"message": ev.Message,
		"time":    ev.Time.UTC().Format(time.RFC3339Nano),
	}
	if err := s.emit(s.event, payload); err != nil {
		ctxlog.FromContext(ctx).Debug("Failed to forward diagnostic event.", "error", err, "kind", string(ev.Kind))
	}
}

// Close disconnects the underlying client.
func (s *SocketIOSink) Close() { s.close() }
