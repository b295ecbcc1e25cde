package serializers

import (
	"fmt"

	"activ-subscriber/src/interfaces"
)

// New returns the serializer registered under name; an empty name selects JSON.
func New(name string) (interfaces.ISerializer, error) {
	switch name {
	case "", "json":
		return NewJSONSerializer(), nil
	case "proto", "protobuf":
		return NewProtoSerializer(), nil
	case "gob", "bin":
		return NewBinSerializer(), nil
	default:
		return nil, fmt.Errorf("unknown serializer: %s", name)
	}
}
