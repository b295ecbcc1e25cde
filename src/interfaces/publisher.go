package interfaces

import "activ-subscriber/src/models"

// -----------------------------------------------------------------------------

// IMessageSink receives a copy of every refresh and update a subscription handler sees
type IMessageSink interface {
	// OnRefresh consumes a refresh message
	OnRefresh(msg *models.MRefreshMessage)

	// OnUpdate consumes an update message
	OnUpdate(msg *models.MUpdateMessage)
}

// -----------------------------------------------------------------------------

// IPublisher distributes received market data to an external bus
type IPublisher interface {
	IMessageSink

	// Connect establishes connection to the message broker
	Connect() error

	// Disconnect closes the connection to the message broker
	Disconnect() error

	// IsConnected returns the current connection status
	IsConnected() bool
}
