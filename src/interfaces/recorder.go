package interfaces

import (
	"context"

	"activ-subscriber/src/models"
)

// -----------------------------------------------------------------------------

// IRecorder persists received frames so a session can be replayed later
type IRecorder interface {
	IMessageSink

	// Initialize opens the store and creates the schema
	Initialize() error

	// Record stores one frame
	Record(frame *models.MFrame) error

	// Frames returns the recorded frames of symbol in arrival order
	Frames(ctx context.Context, symbol string) ([]*models.MFrame, error)

	// Close releases the store
	Close() error
}
