package interfaces

import (
	"context"

	"activ-subscriber/src/logger"
	"activ-subscriber/src/models"
)

// -----------------------------------------------------------------------------

// IConnectionConstructor defines the function signature for creating a transport by name.
type IConnectionConstructor func(config *models.MSessionConfig, endpoint string, logger *logger.Logger, events IConnectionEvents) (IConnectionClient, error)

// -----------------------------------------------------------------------------

// IConnectionClient defines the transport carrying frames to and from the gateway
type IConnectionClient interface {
	// Connect opens the transport; received frames are pushed to the callback
	// passed during client initialization.
	Connect(ctx context.Context) error

	// Disconnect closes the connection
	Disconnect() error

	// IsRunning returns the connection status
	IsRunning() bool

	// GetName returns the client name
	GetName() string

	// GetType returns the transport type
	GetType() string

	// GetEndpoint returns the endpoint for display (no credentials)
	GetEndpoint() string

	// SendMessage sends one frame
	SendMessage([]byte) error
}

// -----------------------------------------------------------------------------

// IConnectionEvents receives transport events the session reacts to
type IConnectionEvents interface {
	// OnRawData is called for every received frame, sequentially
	OnRawData(data []byte)

	// OnTransportError reports a read or connect failure
	OnTransportError(err error)

	// OnReconnected is called after the transport re-established itself
	OnReconnected()

	// OnClosed is called when the transport gave up or was closed remotely
	OnClosed()
}
