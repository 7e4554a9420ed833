package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/yecs/pkg/logger"
	"github.com/okian/yecs/pkg/metrics"
)

// Conn is one websocket connection. Inbound envelopes arrive on Frames;
// the channel closes when the connection ends, after which Err reports why.
type Conn struct {
	ws     *websocket.Conn
	frames chan Envelope
	s      settings
	log    logger.Logger

	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}

	errMu sync.Mutex
	err   error
}

func newConn(c *websocket.Conn, s settings) *Conn {
	if s.log == nil {
		s.log = logger.Get().Named("ws")
	}
	conn := &Conn{
		ws:     c,
		frames: make(chan Envelope, s.frameBuffer),
		s:      s,
		log:    s.log,
		closed: make(chan struct{}),
	}
	c.SetReadLimit(s.readLimit)
	_ = c.SetReadDeadline(time.Now().Add(s.pongWait()))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(s.pongWait()))
	})

	go conn.readLoop()
	go conn.pingLoop()
	return conn
}

// Frames returns inbound envelopes.
func (c *Conn) Frames() <-chan Envelope { return c.frames }

// Err is nil after a clean close and the read error otherwise. It is only
// meaningful once Frames is closed.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Done is closed when Close is called.
func (c *Conn) Done() <-chan struct{} { return c.closed }

// Send writes one envelope. ctx's deadline bounds the write when it is
// earlier than the write timeout.
func (c *Conn) Send(ctx context.Context, event string, payload any) error {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	select {
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	deadline := time.Now().Add(c.s.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
		metrics.RecordTransportError("write")
		return fmt.Errorf("write %s: %w", event, err)
	}
	return nil
}

// Close sends a normal close frame and tears the connection down.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) readLoop() {
	defer close(c.frames)
	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			c.finish(err)
			return
		}
		if typ != websocket.TextMessage {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			metrics.RecordFrameDropped("malformed")
			c.log.Warn(context.Background(), "dropping malformed frame", logger.Int("bytes", len(data)))
			continue
		}
		metrics.RecordFrameReceived(env.Event)

		select {
		case c.frames <- env:
		case <-c.closed:
			c.finish(nil)
			return
		}
	}
}

func (c *Conn) finish(err error) {
	select {
	case <-c.closed:
		err = nil
	default:
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		err = nil
	}
	if err != nil {
		metrics.RecordTransportError("read")
		c.log.Debug(context.Background(), "read loop ended", logger.Error(err))
	}
	c.errMu.Lock()
	c.err = err
	c.errMu.Unlock()
	_ = c.ws.Close()
}

func (c *Conn) pingLoop() {
	t := time.NewTicker(c.s.pingInterval)
	defer t.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-t.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.s.writeTimeout))
			c.writeMu.Unlock()
			if err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					metrics.RecordTransportError("ping")
				}
				return
			}
		}
	}
}

// Dialer opens client connections.
type Dialer struct {
	d websocket.Dialer
	s settings
}

// NewDialer creates a dialer.
func NewDialer(opts ...Option) *Dialer {
	s := defaults()
	for _, opt := range opts {
		opt(&s)
	}
	return &Dialer{
		d: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: s.handshakeTimeout,
		},
		s: s,
	}
}

// Dial connects to url.
func (d *Dialer) Dial(ctx context.Context, url string) (*Conn, error) {
	c, resp, err := d.d.DialContext(ctx, url, d.s.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		metrics.RecordTransportError("dial")
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return newConn(c, d.s), nil
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// Upgrade accepts a server-side connection.
func Upgrade(w http.ResponseWriter, r *http.Request, opts ...Option) (*Conn, error) {
	s := defaults()
	for _, opt := range opts {
		opt(&s)
	}
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade: %w", err)
	}
	return newConn(c, s), nil
}
