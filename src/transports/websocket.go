package transports

import (
	"context"
	"fmt"
	"sync"
	"time"

	"activ-subscriber/src/interfaces"
	"activ-subscriber/src/logger"
	"activ-subscriber/src/models"
	"activ-subscriber/src/utils"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	reconnectDelay   = 1 * time.Second
	writeTimeout     = 5 * time.Second
)

// -----------------------------------------------------------------------------

func init() {
	if err := Register("websocket", NewWebSocketTransport); err != nil {
		fmt.Printf("Error registering websocket transport: %v\n", err)
	}
}

// -----------------------------------------------------------------------------

// WebSocketClient implements IConnectionClient using Gorilla WebSocket
type WebSocketClient struct {
	conn         *websocket.Conn
	name         string
	endpoint     string
	config       *models.MSessionConfig
	logger       *logger.Logger
	events       interfaces.IConnectionEvents
	isRunning    bool
	mu           sync.RWMutex
	writeMu      sync.Mutex
	recvMsgChann chan []byte
	errChann     chan error
	done         chan struct{}
}

// -----------------------------------------------------------------------------

// NewWebSocketTransport matches interfaces.IConnectionConstructor
func NewWebSocketTransport(config *models.MSessionConfig, endpoint string, logger *logger.Logger, events interfaces.IConnectionEvents) (interfaces.IConnectionClient, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("websocket endpoint cannot be empty")
	}
	return NewWebSocketClient(config, endpoint, logger, "websocket", events), nil
}

// -----------------------------------------------------------------------------

// NewWebSocketClient creates a new WebSocket client
func NewWebSocketClient(config *models.MSessionConfig, endpoint string, logger *logger.Logger, name string, events interfaces.IConnectionEvents) *WebSocketClient {
	return &WebSocketClient{
		name:     name,
		endpoint: endpoint,
		config:   config,
		logger:   logger,
		events:   events,
		done:     make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

// Connect establishes WebSocket connection and starts processing
func (w *WebSocketClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return nil
	}

	conn, err := w.dial(ctx)
	if err != nil {
		w.logger.Error("%s : failed to connect to %s: %v", w.name, utils.MaskEndpoint(w.endpoint), err)
		return fmt.Errorf("failed to connect to %s: %w", utils.MaskEndpoint(w.endpoint), err)
	}

	// Recreate channels for new connection
	w.recvMsgChann = make(chan []byte, w.bufferSize())
	w.errChann = make(chan error, 10)
	w.done = make(chan struct{})

	w.conn = conn
	w.isRunning = true

	w.logger.Info("%s : WebSocket connected to %s", w.name, utils.MaskEndpoint(w.endpoint))

	// Start message processing
	go w.receiveMessages(ctx, w.done)
	go w.processIncomingMessages(ctx, w.done, w.recvMsgChann)
	go w.processErrors(ctx, w.done, w.errChann)

	return nil
}

// -----------------------------------------------------------------------------

// Disconnect closes the connection
func (w *WebSocketClient) Disconnect() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isRunning {
		return nil
	}

	w.isRunning = false
	close(w.done)

	if w.conn != nil {
		w.writeMu.Lock()
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeTimeout))
		w.writeMu.Unlock()

		err := w.conn.Close()
		w.conn = nil
		if err != nil {
			return fmt.Errorf("failed to close connection: %s: %w", utils.MaskEndpoint(w.endpoint), err)
		}
	}

	w.logger.Info("%s : WebSocket disconnected from %s", w.name, utils.MaskEndpoint(w.endpoint))
	return nil
}

// -----------------------------------------------------------------------------

// GetName returns the client name
func (w *WebSocketClient) GetName() string {
	return w.name
}

// -----------------------------------------------------------------------------

// GetType returns the transport type
func (w *WebSocketClient) GetType() string {
	return "websocket"
}

// -----------------------------------------------------------------------------

// GetEndpoint returns the masked endpoint
func (w *WebSocketClient) GetEndpoint() string {
	return utils.MaskEndpoint(w.endpoint)
}

// -----------------------------------------------------------------------------

// IsRunning returns the connection status
func (w *WebSocketClient) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.isRunning
}

// -----------------------------------------------------------------------------

// SendMessage sends a text frame to the WebSocket
func (w *WebSocketClient) SendMessage(data []byte) error {
	w.mu.RLock()
	conn := w.conn
	w.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("connection is nil")
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// receiveMessages reads frames until the client is closed or reconnects are exhausted
func (w *WebSocketClient) receiveMessages(ctx context.Context, done chan struct{}) {
	reconnectAttempts := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn == nil {
			return
		}

		messageType, message, err := conn.ReadMessage()
		if err != nil {
			// Check if we are shutting down
			select {
			case <-done:
				return
			default:
			}

			w.pushError(done, fmt.Errorf("read message error: %w", err))

			if reconnectAttempts < w.maxReconnects() {
				reconnectAttempts++
				w.logger.Info("%s : attempting to reconnect (attempt %d/%d)", w.name, reconnectAttempts, w.maxReconnects())
				if w.attemptReconnect(ctx, done) {
					w.events.OnReconnected()
				}
				continue
			}

			w.logger.Warning("%s : giving up on %s after %d reconnect attempts", w.name, utils.MaskEndpoint(w.endpoint), reconnectAttempts)
			w.markClosed()
			w.events.OnClosed()
			return
		}

		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			select {
			case w.recvMsgChann <- message:
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}

		// Reset reconnect attempts on successful read
		reconnectAttempts = 0
	}
}

// -----------------------------------------------------------------------------

// processIncomingMessages hands received frames to the events sink, one at a time
func (w *WebSocketClient) processIncomingMessages(ctx context.Context, done chan struct{}, recv chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case message := <-recv:
			w.events.OnRawData(message)
		}
	}
}

// -----------------------------------------------------------------------------

// processErrors forwards transport errors to the events sink
func (w *WebSocketClient) processErrors(ctx context.Context, done chan struct{}, errs chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case err := <-errs:
			w.logger.Error("%s : websocket error: %v", w.name, err)
			w.events.OnTransportError(err)
		}
	}
}

// -----------------------------------------------------------------------------

func (w *WebSocketClient) pushError(done chan struct{}, err error) {
	select {
	case w.errChann <- err:
	case <-done:
	default:
		w.logger.Warning("%s : error channel full, dropping: %v", w.name, err)
	}
}

// -----------------------------------------------------------------------------

// attemptReconnect replaces the connection after a read failure
func (w *WebSocketClient) attemptReconnect(ctx context.Context, done chan struct{}) bool {
	// Wait before reconnecting
	select {
	case <-ctx.Done():
		return false
	case <-done:
		return false
	case <-time.After(reconnectDelay):
	}

	conn, err := w.dial(ctx)
	if err != nil {
		w.logger.Error("%s : reconnection failed: %v", w.name, err)
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isRunning {
		conn.Close()
		return false
	}
	if w.conn != nil {
		w.conn.Close()
	}
	w.conn = conn

	w.logger.Info("%s : successfully reconnected to %s", w.name, utils.MaskEndpoint(w.endpoint))
	return true
}

// -----------------------------------------------------------------------------

func (w *WebSocketClient) markClosed() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isRunning {
		return
	}
	w.isRunning = false
	close(w.done)
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
}

// -----------------------------------------------------------------------------

func (w *WebSocketClient) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, w.endpoint, nil)
	return conn, err
}

// -----------------------------------------------------------------------------

func (w *WebSocketClient) maxReconnects() int {
	if w.config == nil {
		return 0
	}
	return w.config.ReconnectAttempts
}

func (w *WebSocketClient) bufferSize() int {
	if w.config != nil && w.config.MessageBuffer > 0 {
		return w.config.MessageBuffer
	}
	return 1000
}
