// Package transport provides the persistent bidirectional message channel
// a voice session runs over: one ordered stream of complete JSON text
// frames per connection.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voicedeck/voicedeck/internal/shared"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	writeWait               = 10 * time.Second
	maxMessageSize          = 512 * 1024
)

// Channel is one open websocket connection. Inbound frames arrive on
// Messages in delivery order; Closed fires exactly once per channel no
// matter how the connection ends.
type Channel struct {
	ws  *websocket.Conn
	log *slog.Logger

	messages  chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	writeMu sync.Mutex
	mu      sync.RWMutex
	open    bool
}

// Dial opens a channel with a bounded handshake. It fails with
// shared.ErrConnectionTimeout when the transport is not ready within the
// timeout and shared.ErrConnectionFailed on any other transport error.
func Dial(ctx context.Context, url string, timeout time.Duration, log *slog.Logger) (*Channel, error) {
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ws, _, err := dialer.DialContext(dialCtx, url, nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, fmt.Errorf("dial %s: %w", url, shared.ErrConnectionTimeout)
		}
		return nil, fmt.Errorf("dial %s: %v: %w", url, err, shared.ErrConnectionFailed)
	}

	c := &Channel{
		ws:       ws,
		log:      log.With("component", "transport"),
		messages: make(chan []byte, 128),
		closed:   make(chan struct{}),
		open:     true,
	}

	go c.readPump()

	return c, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *Channel) readPump() {
	// The pump is the sole writer to messages, so it alone may close it.
	defer func() {
		c.markClosed()
		close(c.messages)
	}()

	c.ws.SetReadLimit(maxMessageSize)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("read pump ended", "error", err)
			}
			return
		}

		select {
		case c.messages <- data:
		case <-c.closed:
			return
		}
	}
}

// Send writes one event frame. A send on a channel that is no longer open
// is logged and dropped, never an error: audio frames are gated upstream
// and control events are attempted opportunistically on close.
func (c *Channel) Send(event any) error {
	c.mu.RLock()
	open := c.open
	c.mu.RUnlock()

	if !open {
		c.log.Debug("send on closed channel dropped")
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.Debug("send failed", "error", err)
		return nil
	}
	return nil
}

// Messages delivers inbound frames in arrival order. The channel is closed
// when the connection ends.
func (c *Channel) Messages() <-chan []byte {
	return c.messages
}

// Closed fires exactly once, whether the close was local, remote, or a
// network failure.
func (c *Channel) Closed() <-chan struct{} {
	return c.closed
}

func (c *Channel) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.open
}

// Close tears down the connection. Safe to call more than once.
func (c *Channel) Close() error {
	var err error
	c.mu.RLock()
	wasOpen := c.open
	c.mu.RUnlock()

	if wasOpen {
		c.writeMu.Lock()
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
	}

	err = c.ws.Close()
	c.markClosed()
	return err
}

func (c *Channel) markClosed() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.open = false
		c.mu.Unlock()
		close(c.closed)
		_ = c.ws.Close()
	})
}
