// Package remote talks to a running controller over its WebSocket endpoint.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"nguctl/internal/logging"
)

// RetryDelay is the pause between reconnection attempts in Watch.
var RetryDelay = 5 * time.Second

// Event is a command the controller wrote to the listener pipe.
type Event struct {
	Type    string `json:"type"`
	Op      string `json:"op"`
	Command string `json:"command"`
	Time    int64  `json:"time"`
}

// Reply answers a Call.
type Reply struct {
	ID     string          `json:"id"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Client connects to the /ws endpoint of a controller.
type Client struct {
	addr  string
	token string
	log   logrus.FieldLogger
}

// New creates a client for the controller at addr (host:port).
func New(addr, token string, log logrus.FieldLogger) *Client {
	return &Client{addr: addr, token: token, log: logging.Component(log, "remote")}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u := url.URL{Scheme: "ws", Host: c.addr, Path: "/ws"}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: dial %s: %w", ErrUnreachable, u.String(), err)
	}
	return conn, nil
}

var (
	// ErrUnauthorized is returned when the controller rejects the token.
	ErrUnauthorized = errors.New("remote: unauthorized")

	// ErrUnreachable is returned when no controller answers at the address.
	ErrUnreachable = errors.New("remote: no controller")
)

// Watch streams command events to fn until ctx is cancelled, reconnecting
// after RetryDelay when the connection drops. A rejected token ends the
// watch.
func (c *Client) Watch(ctx context.Context, fn func(Event)) error {
	for {
		err := c.watchOnce(ctx, fn)
		if errors.Is(err, ErrUnauthorized) {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		c.log.WithError(err).Debug("Watch connection lost")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(RetryDelay):
			c.log.Info("Attempting reconnection...")
		}
	}
}

func (c *Client) watchOnce(ctx context.Context, fn func(Event)) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	c.log.Infof("Watching %s", c.addr)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.log.WithError(err).Warn("Invalid message")
			continue
		}
		if ev.Type == "command" {
			fn(ev)
		}
	}
}

// Call runs one action on the controller and waits for its reply. Command
// events arriving first are skipped.
func (c *Client) Call(ctx context.Context, action string, params any) (Reply, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return Reply{}, err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	raw, err := json.Marshal(params)
	if err != nil {
		return Reply{}, err
	}
	id := uuid.NewString()
	req := struct {
		ID     string          `json:"id"`
		Action string          `json:"action"`
		Params json.RawMessage `json:"params,omitempty"`
	}{id, action, raw}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(req); err != nil {
		return Reply{}, fmt.Errorf("remote: send %s: %w", action, err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return Reply{}, ctx.Err()
			}
			return Reply{}, fmt.Errorf("remote: await %s: %w", action, err)
		}
		var r Reply
		if err := json.Unmarshal(data, &r); err != nil || r.ID != id {
			continue
		}
		return r, nil
	}
}
