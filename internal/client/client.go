// Package client is a small websocket client for the event server. It is used
// by the rehearsal tool and by end-to-end tests.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned once the connection has gone away.
var ErrClosed = errors.New("connection closed")

// Message is one server message. Raw holds the full object, including "type".
type Message struct {
	Type string
	Raw  json.RawMessage
}

// Decode unmarshals the message into v.
func (m Message) Decode(v interface{}) error {
	return json.Unmarshal(m.Raw, v)
}

// Client is a single connection to /api/v1/ws.
type Client struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	pending []Message
	notify  chan struct{}
	closed  bool
	done    chan struct{}
}

// Dial connects to the websocket endpoint at url (ws:// or wss://).
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{
		conn:   conn,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[CLIENT] read error: %v", err)
			}
			return
		}
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &head); err != nil {
			log.Printf("[CLIENT] ignoring malformed message: %v", err)
			continue
		}
		c.mu.Lock()
		c.pending = append(c.pending, Message{Type: head.Type, Raw: data})
		c.mu.Unlock()
		select {
		case c.notify <- struct{}{}:
		default:
		}
	}
}

// Send writes a {"type", "data"} frame.
func (c *Client) Send(msgType string, data interface{}) error {
	frame := map[string]interface{}{"type": msgType}
	if data != nil {
		frame["data"] = data
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(frame)
}

// Await returns the oldest unread message of any of the given types, waiting
// for one to arrive. Messages of other types stay queued.
func (c *Client) Await(ctx context.Context, types ...string) (Message, error) {
	for {
		c.mu.Lock()
		for i, m := range c.pending {
			if contains(types, m.Type) {
				c.pending = append(c.pending[:i], c.pending[i+1:]...)
				c.mu.Unlock()
				return m, nil
			}
		}
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return Message{}, ErrClosed
		}

		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-c.notify:
		case <-c.done:
		}
	}
}

// Drain removes and returns every queued message.
func (c *Client) Drain() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.pending
	c.pending = nil
	return out
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close sends a close frame and tears the connection down.
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func contains(types []string, t string) bool {
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}
