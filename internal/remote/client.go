package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/taote/taote/internal/session"
)

// Client is a control-socket connection to a running instance. Requests
// are serialised; a Client is not meant for concurrent use.
type Client struct {
	conn   *websocket.Conn
	nextID atomic.Uint64
}

// RemoteError is an error reply from the server.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote: %s: %s", e.Code, e.Message)
}

// Dial connects to the control server at addr (host:port).
func Dial(ctx context.Context, addr, token string) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, &RemoteError{Code: "UNAUTHORIZED", Message: "bad or missing token"}
		}
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	c := &Client{conn: conn}
	hello, err := c.read(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if hello.Type != "status" || hello.Event != "connected" {
		conn.Close()
		return nil, fmt.Errorf("remote: unexpected greeting %q", hello.Type)
	}
	return c, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}

// Ping round-trips a ping.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.roundTrip(ctx, Request{Type: "ping"})
	return err
}

// Snapshot fetches the current topology.
func (c *Client) Snapshot(ctx context.Context) (session.Snapshot, error) {
	resp, err := c.roundTrip(ctx, Request{Type: "snapshot"})
	if err != nil {
		return session.Snapshot{}, err
	}
	if resp.Snapshot == nil {
		return session.Snapshot{}, errors.New("remote: snapshot missing from reply")
	}
	return *resp.Snapshot, nil
}

// Send runs a named command against window (0 means the first window) and
// returns the topology afterwards.
func (c *Client) Send(ctx context.Context, window int, name string) (session.Snapshot, error) {
	resp, err := c.roundTrip(ctx, Request{Type: "command", Name: name, Window: window})
	if err != nil {
		return session.Snapshot{}, err
	}
	if resp.Snapshot == nil {
		return session.Snapshot{}, nil
	}
	return *resp.Snapshot, nil
}

func (c *Client) roundTrip(ctx context.Context, req Request) (Response, error) {
	req.ID = strconv.FormatUint(c.nextID.Add(1), 10)
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	} else {
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	}
	if err := c.conn.WriteJSON(req); err != nil {
		return Response{}, fmt.Errorf("remote: write: %w", err)
	}
	for {
		resp, err := c.read(ctx)
		if err != nil {
			return Response{}, err
		}
		if resp.ID != "" && resp.ID != req.ID {
			continue
		}
		if resp.Type == "error" {
			return resp, &RemoteError{Code: resp.Code, Message: resp.Message}
		}
		return resp, nil
	}
}

func (c *Client) read(ctx context.Context) (Response, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
	} else {
		_ = c.conn.SetReadDeadline(time.Now().Add(wsCallTimeout))
	}
	var resp Response
	if err := c.conn.ReadJSON(&resp); err != nil {
		return Response{}, fmt.Errorf("remote: read: %w", err)
	}
	return resp, nil
}
