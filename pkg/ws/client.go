// Package ws is a small JSON-RPC 2.0 client over websocket, used to talk
// to the MCP server's /mcp/ws endpoint.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var ErrClosed = errors.New("websocket closed")

type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

type Client struct {
	url    string
	header http.Header
	log    *logrus.Entry

	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[int64]chan Response
	nextID    atomic.Int64

	pingInterval time.Duration
	stopCh       chan struct{}
	closeOnce    sync.Once
	// SessionID is what the server assigned in the upgrade response.
	SessionID string
}

// NewClient prepares a client; header is sent with the upgrade request
// (Authorization, Mcp-Session-Id).
func NewClient(url string, header http.Header, log *logrus.Entry) *Client {
	return &Client{
		url:          url,
		header:       header,
		log:          log,
		pending:      make(map[int64]chan Response),
		pingInterval: 30 * time.Second,
		stopCh:       make(chan struct{}),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, resp, err := dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return errors.Wrapf(err, "failed to connect to %s", c.url)
	}
	if resp != nil {
		c.SessionID = resp.Header.Get("Mcp-Session-Id")
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{"url": c.url, "session_id": c.SessionID}).Info("websocket connected")

	go c.handleMessages()
	go c.handlePingPong()
	return nil
}

// Call sends one request and waits for the response with the same id.
// When out is non-nil the result is decoded into it.
func (c *Client) Call(ctx context.Context, method string, params any, out any) error {
	id := c.nextID.Add(1)
	ch := make(chan Response, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.sendMessage(Request{JSONRPC: "2.0", ID: &id, Method: method, Params: params}); err != nil {
		return err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return ErrClosed
		}
		if resp.Error != nil {
			return resp.Error
		}
		if out != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return errors.Wrapf(err, "decode %s result", method)
			}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopCh:
		return ErrClosed
	}
}

// Notify sends a request without an id; the server does not reply.
func (c *Client) Notify(method string, params any) error {
	return c.sendMessage(Request{JSONRPC: "2.0", Method: method, Params: params})
}

func (c *Client) sendMessage(msg any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return errors.New("websocket not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

func (c *Client) handleMessages() {
	defer c.failPending()

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	for {
		var resp Response
		if err := conn.ReadJSON(&resp); err != nil {
			select {
			case <-c.stopCh:
			default:
				c.log.WithError(err).Warn("websocket read error")
			}
			return
		}

		id, err := strconv.ParseInt(string(resp.ID), 10, 64)
		if err != nil {
			c.log.WithField("id", string(resp.ID)).Debug("response without a numeric id")
			continue
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[id]
		c.pendingMu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

// failPending closes every waiting channel once the read loop stops.
func (c *Client) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *Client) handlePingPong() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				c.log.WithError(err).Warn("websocket ping error")
			}
		}
	}
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stopCh)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.conn != nil {
			c.writeMu.Lock()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			c.writeMu.Unlock()
			err = c.conn.Close()
		}
	})
	return err
}
