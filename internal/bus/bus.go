// Package bus connects to the shared WebSocket message bus. Every frame is a
// JSON Message; a shard only handles frames addressed to its own name.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

var (
	ErrClosed = errors.New("bus client closed")

	// ErrMalformed marks a frame that was read but is not a Message.
	ErrMalformed = errors.New("malformed bus message")
)

const (
	KindReply = "reply"
	KindError = "error"
)

type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
	Audio   []byte `json:"audio,omitempty"`
}

// Reply addresses a response back to the sender of m.
func (m *Message) Reply(from, kind, content string) *Message {
	return &Message{From: from, To: m.From, Kind: kind, Content: content}
}

type Client struct {
	url       string
	reconnect time.Duration

	writeMu sync.Mutex

	mu     sync.Mutex
	conn   *ws.Conn
	closed bool
}

func Dial(ctx context.Context, url string, reconnect time.Duration) (*Client, error) {
	log.Debug("Dialing bus", "url", url)

	if reconnect <= 0 {
		reconnect = time.Second
	}

	conn, _, err := ws.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial bus: %w", err)
	}

	log.Info("Connected to bus", "url", url)
	return &Client{url: url, reconnect: reconnect, conn: conn}, nil
}

func (c *Client) current() (*ws.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	return c.conn, nil
}

func (c *Client) Read() (*Message, error) {
	conn, err := c.current()
	if err != nil {
		return nil, err
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return &m, nil
}

func (c *Client) Write(m *Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	conn, err := c.current()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(ws.TextMessage, data)
}

// Reconnect redials until it succeeds or ctx is done.
func (c *Client) Reconnect(ctx context.Context) error {
	for {
		conn, _, err := ws.DefaultDialer.DialContext(ctx, c.url, nil)
		if err == nil {
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				conn.Close()
				return ErrClosed
			}
			old := c.conn
			c.conn = conn
			c.mu.Unlock()
			if old != nil {
				old.Close()
			}
			return nil
		}

		log.Debug("Bus redial failed", "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnect):
		}
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func isClosed(err error) bool {
	return ws.IsCloseError(err,
		ws.CloseNormalClosure,
		ws.CloseGoingAway,
		ws.CloseAbnormalClosure)
}

// Handler answers one message. A nil reply sends nothing.
type Handler func(ctx context.Context, m *Message) *Message

// Serve reads until ctx is done, reconnecting when the bus drops. Messages not
// addressed to name are ignored and each accepted one is handled concurrently.
func Serve(ctx context.Context, c *Client, name string, handle Handler) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		m, err := c.Read()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ErrMalformed) {
				log.Warn("Failed to parse bus message", "err", err)
				continue
			}
			if errors.Is(err, ErrClosed) {
				return err
			}

			if isClosed(err) {
				log.Warn("Bus closed, reconnecting", "url", c.url)
			} else {
				log.Error("Bus read failed, reconnecting", "err", err)
			}
			if err := c.Reconnect(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			log.Info("Reconnected to bus", "url", c.url)
			continue
		}

		if m.To != name {
			continue
		}

		log.Debug("Bus message", "from", m.From, "kind", m.Kind)

		wg.Add(1)
		go func() {
			defer wg.Done()
			reply := handle(ctx, m)
			if reply == nil {
				return
			}
			if err := c.Write(reply); err != nil && ctx.Err() == nil {
				log.Error("Failed to write bus reply", "to", reply.To, "err", err)
			}
		}()
	}
}
