package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"bitboard/internal/middleware"
	"bitboard/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
	// Max channel subscriptions per connection
	maxSubsPerClient = 50
)

var (
	ErrServerFull       = errors.New("server connection limit reached")
	ErrUserLimit        = errors.New("user connection limit reached")
	ErrTooManyChannels  = errors.New("subscription limit reached")
	ErrUnknownTable     = errors.New("table is not available for realtime")
	ErrForbiddenChannel = errors.New("channel is restricted to its owner")
	errMalformedFrame   = errors.New("malformed frame")
	errUnknownFrameType = errors.New("unknown frame type")
)

// PublicTables can be subscribed to by any authenticated client. The
// notifications table is private and requires a user_id filter for the caller.
var PublicTables = map[string]bool{
	"threads":   true,
	"posts":     true,
	"comments":  true,
	"reactions": true,
}

// Frame is a client → server control message.
type Frame struct {
	Type   string `json:"type"`
	Table  string `json:"table,omitempty"`
	Filter string `json:"filter,omitempty"`
	Ref    string `json:"ref,omitempty"`
}

// Hub tracks websocket clients by user and by subscribed channel.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	channels   map[string]map[*Client]struct{}
	totalConns int
	log        *observability.WSLogger
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		conns:    make(map[uint]map[*Client]struct{}),
		channels: make(map[string]map[*Client]struct{}),
		log:      observability.NewWSLogger(middleware.Logger, "realtime"),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "realtime hub" }

// Register adds a connection for userID. conn may be nil in tests.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.totalConns >= maxTotalConns {
		return nil, ErrServerFull
	}
	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		return nil, ErrUserLimit
	}

	client := newClient(h, conn, userID)
	m[client] = struct{}{}
	h.totalConns++
	observability.WebSocketConnectionsTotal.Inc()
	h.log.LogConnect(context.Background(), userID)
	return client, nil
}

// UnregisterClient removes the client and every subscription it holds.
// Calling it more than once is safe.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	removed := false
	if m, ok := h.conns[client.UserID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
			removed = true
		}
		if len(m) == 0 {
			delete(h.conns, client.UserID)
		}
	}
	for _, ch := range client.Channels() {
		h.removeSubscriptionLocked(client, ch)
	}
	h.mu.Unlock()

	client.close()
	if removed {
		observability.WebSocketConnectionsTotal.Dec()
		h.log.LogDisconnect(context.Background(), client.UserID, "closed")
	}
}

// Subscribe adds client to the channel for table and filter and returns the channel name.
func (h *Hub) Subscribe(client *Client, table, filter string) (string, error) {
	f, err := ParseFilter(filter)
	if err != nil {
		return "", err
	}
	if err := authorizeChannel(client.UserID, table, f); err != nil {
		return "", err
	}
	channel := Channel(table, f)

	h.mu.Lock()
	defer h.mu.Unlock()

	client.mu.Lock()
	if _, ok := client.channels[channel]; ok {
		client.mu.Unlock()
		return channel, nil
	}
	if len(client.channels) >= maxSubsPerClient {
		client.mu.Unlock()
		return "", ErrTooManyChannels
	}
	client.channels[channel] = struct{}{}
	client.mu.Unlock()

	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[*Client]struct{})
		h.channels[channel] = subs
	}
	subs[client] = struct{}{}
	observability.RealtimeSubscriptions.Inc()
	h.log.LogSubscription(context.Background(), client.UserID, channel, true)
	return channel, nil
}

func authorizeChannel(userID uint, table string, f *Filter) error {
	if PublicTables[table] {
		return nil
	}
	if table != "notifications" {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	if f == nil || f.Column != "user_id" || f.Value != fmt.Sprint(userID) {
		return ErrForbiddenChannel
	}
	return nil
}

// Unsubscribe removes client from channel. Unknown channels are ignored.
func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.mu.Lock()
	h.removeSubscriptionLocked(client, channel)
	h.mu.Unlock()
}

func (h *Hub) removeSubscriptionLocked(client *Client, channel string) {
	client.mu.Lock()
	_, had := client.channels[channel]
	delete(client.channels, channel)
	client.mu.Unlock()

	if subs, ok := h.channels[channel]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
	if had {
		observability.RealtimeSubscriptions.Dec()
		h.log.LogSubscription(context.Background(), client.UserID, channel, false)
	}
}

// HandleFrame applies one control frame sent by client and queues the reply.
func (h *Hub) HandleFrame(client *Client, raw []byte) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		h.reply(client, "error", "", f.Ref, errMalformedFrame)
		return
	}

	switch f.Type {
	case "subscribe":
		channel, err := h.Subscribe(client, f.Table, f.Filter)
		h.reply(client, "subscribed", channel, f.Ref, err)
	case "unsubscribe":
		fl, err := ParseFilter(f.Filter)
		if err != nil {
			h.reply(client, "error", "", f.Ref, err)
			return
		}
		channel := Channel(f.Table, fl)
		h.Unsubscribe(client, channel)
		h.reply(client, "unsubscribed", channel, f.Ref, nil)
	case "ping":
		h.reply(client, "pong", "", f.Ref, nil)
	default:
		h.reply(client, "error", "", f.Ref, errUnknownFrameType)
	}
}

func (h *Hub) reply(client *Client, frameType, channel, ref string, err error) {
	payload := map[string]string{}
	if ref != "" {
		payload["ref"] = ref
	}
	if err != nil {
		frameType = "error"
		payload["message"] = err.Error()
	}
	b, mErr := json.Marshal(Envelope{Type: frameType, Channel: channel, Payload: payload})
	if mErr != nil {
		return
	}
	client.TrySend(b)
}

// DeliverChange forwards an encoded event to every subscriber of channel.
func (h *Hub) DeliverChange(channel string, encoded []byte) {
	evt, err := DecodeEvent(encoded)
	if err != nil {
		middleware.Logger.Warn("dropping undecodable realtime event", slog.String("channel", channel), slog.String("error", err.Error()))
		return
	}
	frame, err := json.Marshal(Envelope{Type: "change", Channel: channel, Payload: evt})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.channels[channel] {
		c.TrySend(frame)
	}
}

// Broadcast sends message to all connections for userID
func (h *Hub) Broadcast(userID uint, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns[userID] {
		c.TrySend(message)
	}
}

// BroadcastAll sends message to every connected websocket client.
func (h *Hub) BroadcastAll(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, clients := range h.conns {
		for c := range clients {
			c.TrySend(message)
		}
	}
}

// SubscriberCount reports how many clients listen on channel.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// ConnectionCount reports the number of registered clients.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// StartWiring routes messages from the publisher's Redis subscription into the hub.
func (h *Hub) StartWiring(ctx context.Context, p *Publisher) error {
	return p.StartSubscriber(ctx, h.route)
}

func (h *Hub) route(channel string, payload []byte) {
	switch {
	case channel == broadcastChannel:
		h.BroadcastAll(payload)
	case strings.HasPrefix(channel, userChannelPrefix):
		var userID uint
		if _, err := fmt.Sscanf(channel, userChannelPrefix+"%d", &userID); err != nil {
			middleware.Logger.Warn("invalid notification channel", slog.String("channel", channel))
			return
		}
		h.Broadcast(userID, payload)
	case strings.HasPrefix(channel, channelPrefix):
		h.DeliverChange(channel, payload)
	}
}

// Shutdown unregisters every client. Closing a client's Send channel makes
// its WritePump send a close frame and drop the socket.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	var clients []*Client
	for _, userConns := range h.conns {
		for c := range userConns {
			clients = append(clients, c)
		}
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.UnregisterClient(c)
	}
	return nil
}
