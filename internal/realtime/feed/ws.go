package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/internal/realtime"
	"github.com/wonny/confluence/backend/pkg/logger"
)

const (
	// Reconnect settings
	reconnectDelay    = 5 * time.Second
	maxReconnectDelay = 5 * time.Minute

	// Ping/Pong settings
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

// subscribeMessage is sent once per connection
type subscribeMessage struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

// wsTick is one price message; messages without a symbol are ignored
type wsTick struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Price  float64   `json:"price"`
	Time   time.Time `json:"time"`
}

// WebSocketFeed streams prices from a WebSocket endpoint and reconnects
// with exponential backoff
// ⭐ SSOT: WebSocket 연결/재연결은 이 피드에서만
type WebSocketFeed struct {
	url       string
	symbols   []string
	publisher Publisher
	logger    *logger.Logger

	minDelay time.Duration
	maxDelay time.Duration
	dialer   *websocket.Dialer
}

// NewWebSocketFeed creates a WebSocket feed for symbols
func NewWebSocketFeed(url string, symbols []string, pub Publisher, log *logger.Logger) *WebSocketFeed {
	if log == nil {
		log = logger.Nop()
	}
	return &WebSocketFeed{
		url:       url,
		symbols:   symbols,
		publisher: pub,
		logger:    log.WithField("source", string(realtime.SourceWebSocket)),
		minDelay:  reconnectDelay,
		maxDelay:  maxReconnectDelay,
		dialer:    websocket.DefaultDialer,
	}
}

func (f *WebSocketFeed) Name() string { return string(realtime.SourceWebSocket) }

// Run keeps a connection open until ctx is done
func (f *WebSocketFeed) Run(ctx context.Context) error {
	f.logger.WithField("url", f.url).Info("Starting WebSocket feed")

	delay := f.minDelay
	for {
		connected, err := f.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			delay = f.minDelay
		}

		f.logger.WithError(err).WithField("delay", delay.String()).Warn("WebSocket disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		if !connected {
			// Exponential backoff
			delay *= 2
			if delay > f.maxDelay {
				delay = f.maxDelay
			}
		}
	}
}

// session runs one connection. connected reports whether the dial and
// subscription succeeded.
func (f *WebSocketFeed) session(ctx context.Context) (bool, error) {
	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(subscribeMessage{Action: "subscribe", Symbols: f.symbols}); err != nil {
		return false, fmt.Errorf("subscribe failed: %w", err)
	}
	f.logger.WithField("symbols", len(f.symbols)).Info("Connected to WebSocket feed")

	done := make(chan struct{})
	defer close(done)
	go f.pingLoop(ctx, conn, done)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		if err := f.handleMessage(ctx, message); err != nil {
			f.logger.WithError(err).Debug("Failed to handle message")
		}
	}
}

// pingLoop sends periodic pings and closes the connection when ctx ends
func (f *WebSocketFeed) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				f.logger.WithError(err).Warn("Failed to send ping")
			}
		}
	}
}

// handleMessage processes a WebSocket message
func (f *WebSocketFeed) handleMessage(ctx context.Context, message []byte) error {
	var msg wsTick
	if err := json.Unmarshal(message, &msg); err != nil {
		return fmt.Errorf("unmarshal message: %w", err)
	}
	if msg.Symbol == "" {
		return nil
	}

	f.publisher.Publish(ctx, contracts.PriceTick{
		Symbol: msg.Symbol,
		Bid:    msg.Bid,
		Ask:    msg.Ask,
		Price:  msg.Price,
		Source: string(realtime.SourceWebSocket),
		At:     msg.Time,
	})
	return nil
}
