package interfaces

import (
	"context"
	"time"

	"activ-subscriber/src/models"
)

// -----------------------------------------------------------------------------

// ISession is one authenticated connection to the market-data gateway
type ISession interface {
	// GetID returns the unique id of this session instance
	GetID() string

	// Connect establishes the gateway connection, blocking up to timeout for the login ack
	Connect(ctx context.Context, timeout time.Duration) error

	// Subscribe registers handler for real-time updates of symbol and returns the subscription handle
	Subscribe(symbol string, handler ISubscriptionHandler, opts models.MSubscribeOptions) (int64, error)

	// Run blocks on the session message loop until ctx is done or the session disconnects
	Run(ctx context.Context) error

	// Disconnect releases the session; calling it more than once is a no-op
	Disconnect() error

	// IsConnected returns true between login ack and disconnect
	IsConnected() bool

	// Metadata returns the field dictionary (empty when download is disabled)
	Metadata() *models.MMetadata

	// GetStatus returns a snapshot of the session state
	GetStatus() *models.MSessionStatus
}
