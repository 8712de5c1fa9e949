package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"bitboard/internal/feed"

	"github.com/gorilla/websocket"
)

const (
	subscribeTimeout = 10 * time.Second
	closeGrace       = time.Second
)

// Handlers receive the changes of one subscription. Nil handlers are skipped.
// Handlers run on the subscription's read goroutine, one at a time.
type Handlers struct {
	OnInsert func(row json.RawMessage)
	OnUpdate func(row, old json.RawMessage)
	OnDelete func(old json.RawMessage)
	// OnChange sees every change before the typed handlers.
	OnChange func(feed.Change)
	// OnError reports a connection lost before the context was cancelled.
	OnError func(error)
}

func (h Handlers) dispatch(ch feed.Change) {
	if h.OnChange != nil {
		h.OnChange(ch)
	}
	switch ch.Type {
	case feed.Insert:
		if h.OnInsert != nil {
			h.OnInsert(ch.New)
		}
	case feed.Update:
		if h.OnUpdate != nil {
			h.OnUpdate(ch.New, ch.Old)
		}
	case feed.Delete:
		if h.OnDelete != nil {
			h.OnDelete(ch.Old)
		}
	}
}

// Subscription is a live table subscription. It ends when the context passed
// to Subscribe is cancelled or Close is called.
type Subscription struct {
	// Channel is the server-side channel name, e.g. realtime:posts:thread_id=eq.7.
	Channel string

	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Done is closed once the connection is torn down.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns the error that ended the subscription, or nil after a clean close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close unsubscribes and waits for the connection to close.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

type frame struct {
	Type   string `json:"type"`
	Table  string `json:"table,omitempty"`
	Filter string `json:"filter,omitempty"`
	Ref    string `json:"ref,omitempty"`
}

type envelope struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type replyPayload struct {
	Ref     string `json:"ref"`
	Message string `json:"message"`
}

// issueTicket fetches a single-use websocket ticket.
func (c *Client) issueTicket(ctx context.Context) (string, error) {
	var out struct {
		Ticket string `json:"ticket"`
	}
	if err := c.do(ctx, http.MethodPost, "/ws/ticket", nil, nil, &out); err != nil {
		return "", fmt.Errorf("issue websocket ticket: %w", err)
	}
	return out.Ticket, nil
}

func (c *Client) wsURL(ticket string) string {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = u.Path + "/api/ws"
	u.RawQuery = url.Values{"ticket": {ticket}}.Encode()
	return u.String()
}

// Subscribe opens a websocket, subscribes to table changes matching filter
// ("column=eq.value", or "" for the whole table) and dispatches each change
// to h. It returns once the server confirms the subscription. Cancelling ctx
// unsubscribes and closes the socket.
func (c *Client) Subscribe(ctx context.Context, table, filter string, h Handlers) (*Subscription, error) {
	ticket, err := c.issueTicket(ctx)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if c.apiKey != "" {
		header.Set("X-API-Key", c.apiKey)
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.wsURL(ticket), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial realtime: %w", err)
	}

	channel, err := handshake(conn, table, filter)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{Channel: channel, conn: conn, cancel: cancel, done: make(chan struct{})}

	readDone := make(chan struct{})
	go sub.read(subCtx, h, readDone)
	go sub.teardown(subCtx, table, filter, readDone)
	return sub, nil
}

// handshake sends the subscribe frame and waits for its reply.
func handshake(conn *websocket.Conn, table, filter string) (string, error) {
	const ref = "subscribe"
	_ = conn.SetWriteDeadline(time.Now().Add(subscribeTimeout))
	if err := conn.WriteJSON(frame{Type: "subscribe", Table: table, Filter: filter, Ref: ref}); err != nil {
		return "", fmt.Errorf("send subscribe: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Time{})

	_ = conn.SetReadDeadline(time.Now().Add(subscribeTimeout))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return "", fmt.Errorf("await subscribe reply: %w", err)
		}
		var reply replyPayload
		_ = json.Unmarshal(env.Payload, &reply)
		if reply.Ref != ref {
			// Frames for the user channel can arrive before the reply.
			continue
		}
		switch env.Type {
		case "subscribed":
			return env.Channel, nil
		case "error":
			return "", fmt.Errorf("subscribe %s: %s", table, reply.Message)
		}
	}
}

func (s *Subscription) read(ctx context.Context, h Handlers, readDone chan<- struct{}) {
	defer close(readDone)
	for {
		var env envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			if ctx.Err() == nil {
				s.fail(err, h)
			}
			return
		}
		if env.Type != "change" || env.Channel != s.Channel {
			continue
		}
		var ch feed.Change
		if err := json.Unmarshal(env.Payload, &ch); err != nil {
			continue
		}
		h.dispatch(ch)
	}
}

func (s *Subscription) fail(err error, h Handlers) {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		err = errors.New("realtime connection closed by server")
	}
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	if h.OnError != nil {
		h.OnError(err)
	}
	s.cancel()
}

// teardown unsubscribes and closes the socket once ctx ends.
func (s *Subscription) teardown(ctx context.Context, table, filter string, readDone <-chan struct{}) {
	defer close(s.done)
	<-ctx.Done()

	deadline := time.Now().Add(closeGrace)
	_ = s.conn.SetWriteDeadline(deadline)
	_ = s.conn.WriteJSON(frame{Type: "unsubscribe", Table: table, Filter: filter})
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

	select {
	case <-readDone:
	case <-time.After(closeGrace):
	}
	_ = s.conn.Close()
	<-readDone
}
