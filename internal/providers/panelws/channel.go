package panelws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"interviewlive/internal/ports"
)

var (
	ErrChannelClosed = errors.New("interview channel is closed")
	ErrSendQueueFull = errors.New("interview channel send queue is full")
)

// Config controls the interview backend connection.
type Config struct {
	HandshakeTimeout time.Duration
	SendQueue        int
	Logger           *slog.Logger
}

// Dialer implements ports.Dialer over gorilla/websocket.
type Dialer struct {
	cfg Config
}

func NewDialer(cfg Config) *Dialer {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = 8
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Dialer{cfg: cfg}
}

func (d *Dialer) Dial(ctx context.Context, baseURL string, token string) (ports.Channel, error) {
	endpoint, err := BuildInterviewURL(baseURL, token)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: d.cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to interview websocket: %w", err)
	}

	ch := &channel{
		conn:     conn,
		logger:   d.cfg.Logger.With(slog.String("component", "panelws")),
		messages: make(chan ports.InboundMessage, 64),
		outbound: make(chan []byte, d.cfg.SendQueue),
		closing:  make(chan struct{}),
		readDone: make(chan struct{}),
		done:     make(chan struct{}),
	}

	ch.wg.Add(2)
	go ch.readLoop()
	go ch.writeLoop()
	go func() {
		ch.wg.Wait()
		close(ch.messages)
		close(ch.done)
		_ = conn.Close()
	}()

	return ch, nil
}

type channel struct {
	conn   *websocket.Conn
	logger *slog.Logger

	messages chan ports.InboundMessage
	outbound chan []byte
	closing  chan struct{}
	readDone chan struct{}
	done     chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

// Send queues one binary frame. It never blocks on the network.
func (c *channel) Send(frame []byte) error {
	if len(frame) == 0 {
		return nil
	}
	if !c.Open() {
		return ErrChannelClosed
	}

	select {
	case c.outbound <- frame:
		return nil
	case <-c.closing:
		return ErrChannelClosed
	case <-c.done:
		return ErrChannelClosed
	default:
		return ErrSendQueueFull
	}
}

func (c *channel) Open() bool {
	select {
	case <-c.closing:
		return false
	case <-c.readDone:
		return false
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *channel) Messages() <-chan ports.InboundMessage {
	return c.messages
}

func (c *channel) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close is idempotent and waits for the read and write loops to exit.
func (c *channel) Close() error {
	c.closeOnce.Do(func() {
		close(c.closing)
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadline,
		)
		_ = c.conn.Close()
	})
	<-c.done
	return nil
}

func (c *channel) setErr(err error) {
	if err == nil {
		return
	}
	select {
	case <-c.closing:
		return
	default:
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		err = errors.New("interview backend closed the connection")
	}

	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *channel) writeLoop() {
	defer c.wg.Done()

	for {
		select {
		case frame := <-c.outbound:
			if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				c.setErr(fmt.Errorf("failed to send audio: %w", err))
				_ = c.conn.Close()
				return
			}
		case <-c.readDone:
			return
		case <-c.closing:
			return
		}
	}
}

// readLoop owns the connection lifetime: once it returns, the write loop
// stops too and the channel reports closed.
func (c *channel) readLoop() {
	defer c.wg.Done()
	defer close(c.readDone)

	for {
		kind, payload, err := c.conn.ReadMessage()
		if err != nil {
			c.setErr(fmt.Errorf("interview connection lost: %w", err))
			return
		}

		msg := ports.InboundMessage{Binary: kind == websocket.BinaryMessage, Data: payload}
		select {
		case c.messages <- msg:
		case <-c.closing:
			return
		}
	}
}

// BuildInterviewURL returns {baseURL}/ws/interview/{token}/, mapping http(s)
// schemes onto ws(s).
func BuildInterviewURL(baseURL string, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("interview token is required")
	}

	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = "ws://localhost:8000"
	}
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	parsed, err := url.Parse(base + "/ws/interview/" + url.PathEscape(token) + "/")
	if err != nil {
		return "", fmt.Errorf("invalid interview websocket URL: %w", err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return "", fmt.Errorf("invalid interview websocket URL scheme %q", parsed.Scheme)
	}
	return parsed.String(), nil
}
