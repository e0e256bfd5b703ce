package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSConfig configures WebSocket subscriber behavior.
type WSConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// CampaignUpdate is a publisher notification that the campaign set
// changed. The orchestrator uses it to trigger an early cycle instead
// of waiting for the next tick.
type CampaignUpdate struct {
	Pool       string `json:"pool"`
	CampaignID string `json:"campaign_id"`
	Kind       string `json:"kind"` // "created", "updated", "retired"
}

// WSSubscriber listens for campaign-update notifications over a
// WebSocket connection, reconnecting with exponential backoff.
type WSSubscriber struct {
	endpoint string
	config   WSConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	updates chan CampaignUpdate

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWSSubscriber connects to the publisher's WebSocket endpoint and
// starts listening.
func NewWSSubscriber(ctx context.Context, endpoint string, config *WSConfig) (*WSSubscriber, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	s := &WSSubscriber{
		endpoint: endpoint,
		config:   cfg,
		updates:  make(chan CampaignUpdate, 64),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

// Updates returns the notification channel. It is closed when the
// subscriber shuts down.
func (s *WSSubscriber) Updates() <-chan CampaignUpdate {
	return s.updates
}

// connect establishes the WebSocket connection.
func (s *WSSubscriber) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.conn = conn
	return nil
}

// Close closes the subscriber and its notification channel.
func (s *WSSubscriber) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.updates)
	return nil
}

// readLoop reads notifications and dispatches them, reconnecting with
// exponential backoff on connection errors.
func (s *WSSubscriber) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			if !s.reconnectOnce(reconnectDelay) {
				return
			}
			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > s.config.MaxReconnectDelay {
				reconnectDelay = s.config.MaxReconnectDelay
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}

			s.connMu.Lock()
			if s.conn != nil {
				s.conn.Close()
				s.conn = nil
			}
			s.connMu.Unlock()
			continue
		}

		// Reset delay on successful read
		reconnectDelay = s.config.ReconnectDelay

		s.handleMessage(message)
	}
}

// reconnectOnce waits for the backoff delay and makes one reconnect
// attempt. Returns false when the subscriber is shutting down.
func (s *WSSubscriber) reconnectOnce(delay time.Duration) bool {
	select {
	case <-s.done:
		return false
	case <-time.After(delay):
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.connect(ctx); err != nil {
		log.Printf("[publisher] reconnect failed: %v", err)
	}
	return true
}

// handleMessage parses an incoming notification and forwards it.
func (s *WSSubscriber) handleMessage(message []byte) {
	var update CampaignUpdate
	if err := json.Unmarshal(message, &update); err != nil {
		log.Printf("[publisher] malformed update: %v", err)
		return
	}
	if update.CampaignID == "" {
		return
	}

	select {
	case s.updates <- update:
	case <-s.done:
	default:
		// A full buffer means a cycle trigger is already pending;
		// dropping the update loses nothing.
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (s *WSSubscriber) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			s.connMu.Unlock()
		}
	}
}
