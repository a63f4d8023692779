// Package websocket connects an extension to its host over a single
// websocket, the server-side analogue of browser window messaging.
// Requests and responses are correlated by id; frames carrying an "event"
// are host notifications and are re-emitted on an Emitter from their own
// goroutine, so handlers may send requests on the same connection.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	extension "github.com/effectus/extension-sdk"
	"github.com/effectus/extension-sdk/events"
)

// ErrClosed is returned for requests on a closed connection
var ErrClosed = errors.New("websocket connection closed")

// Config holds websocket configuration
type Config struct {
	URL              string        `json:"url" yaml:"url" split_words:"true"`
	Token            string        `json:"token" yaml:"token" split_words:"true"`
	HandshakeTimeout time.Duration `json:"handshake_timeout" yaml:"handshake_timeout" split_words:"true"`
}

// Conn is an extension.Connection over a websocket
type Conn struct {
	ws      *websocket.Conn
	emitter extension.Emitter
	logger  *zap.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan *extension.Response
	closed  bool

	queueMu sync.Mutex
	queue   []notification
	wake    chan struct{}

	done chan struct{}
}

// notification is a host event waiting for delivery
type notification struct {
	name string
	data map[string]interface{}
}

// Dial connects to the host and starts the read loop. emitter may be nil
// when notifications are not needed.
func Dial(ctx context.Context, config Config, emitter extension.Emitter, logger *zap.Logger) (*Conn, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("websocket URL is required")
	}
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: config.HandshakeTimeout,
	}
	header := http.Header{}
	if config.Token != "" {
		header.Set("Authorization", "Bearer "+config.Token)
	}

	ws, _, err := dialer.DialContext(ctx, config.URL, header)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", config.URL, err)
	}

	c := &Conn{
		ws:      ws,
		emitter: emitter,
		logger:  logger,
		pending: make(map[string]chan *extension.Response),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	go c.deliverLoop()

	logger.Info("websocket connected", zap.String("url", config.URL))
	return c, nil
}

// SendRequest implements extension.Connection. It blocks until the host
// answers, ctx is done or the connection closes.
func (c *Conn) SendRequest(ctx context.Context, action string, payload interface{}) (*extension.Response, error) {
	req := extension.Request{ID: uuid.NewString(), Action: action, Payload: payload}
	reply := make(chan *extension.Response, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[req.ID] = reply
	c.mu.Unlock()
	defer c.forget(req.ID)

	c.writeMu.Lock()
	err := c.ws.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("sending %s: %w", action, err)
	}

	select {
	case resp := <-reply:
		if resp.Error != "" {
			return resp, fmt.Errorf("sending %s: %s", action, resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}
}

// Done is closed when the read loop ends
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection; pending requests fail with ErrClosed
func (c *Conn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	err := c.ws.Close()
	<-c.done
	return err
}

func (c *Conn) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Conn) readLoop() {
	defer func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
		c.logger.Info("websocket disconnected")
	}()

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("websocket read ended", zap.Error(err))
			}
			return
		}
		c.dispatch(frame)
	}
}

func (c *Conn) dispatch(frame []byte) {
	if !gjson.ValidBytes(frame) {
		c.logger.Warn("dropping invalid frame")
		return
	}

	if gjson.GetBytes(frame, "event").Exists() {
		name, data, err := events.DecodeNotification(string(frame))
		if err != nil {
			c.logger.Warn("dropping notification", zap.Error(err))
			return
		}
		if c.emitter != nil {
			c.enqueue(notification{name: name, data: data})
		}
		return
	}

	var resp extension.Response
	if err := json.Unmarshal(frame, &resp); err != nil || resp.ID == "" {
		c.logger.Warn("dropping frame without request id")
		return
	}

	c.mu.Lock()
	reply, ok := c.pending[resp.ID]
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("response for unknown request", zap.String("id", resp.ID))
		return
	}
	reply <- &resp
}

func (c *Conn) enqueue(n notification) {
	c.queueMu.Lock()
	c.queue = append(c.queue, n)
	c.queueMu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// deliverLoop emits queued notifications in arrival order. It drains the
// queue once more after the read loop ends.
func (c *Conn) deliverLoop() {
	for {
		select {
		case <-c.wake:
			c.drain()
		case <-c.done:
			c.drain()
			return
		}
	}
}

func (c *Conn) drain() {
	for {
		c.queueMu.Lock()
		batch := c.queue
		c.queue = nil
		c.queueMu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, n := range batch {
			c.emitter.Emit(context.Background(), n.name, n.data)
		}
	}
}
