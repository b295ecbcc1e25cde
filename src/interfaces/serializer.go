package interfaces

// -----------------------------------------------------------------------------

// ISerializer defines the contract for marshaling and unmarshaling data.
// Publishers stay agnostic about the actual format (JSON, protobuf, gob).
type ISerializer interface {
	// Name returns the format name, used as a content-type hint
	Name() string

	// Marshal converts a Go value into a byte slice.
	Marshal(obj interface{}) ([]byte, error)

	// Unmarshal converts a byte slice back into a Go value.
	Unmarshal(data []byte, obj interface{}) error
}
