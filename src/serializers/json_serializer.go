package serializers

import (
	"encoding/json"
	"fmt"

	"activ-subscriber/src/interfaces"
)

// -----------------------------------------------------------------------------

// JSONSerializer encodes the gateway bridge frames (models.MFrame: type, handle
// and one typed payload) and is the default payload format for the sinks.
type JSONSerializer struct{}

// -----------------------------------------------------------------------------

// NewJSONSerializer creates a new instance of the JSON serializer.
func NewJSONSerializer() interfaces.ISerializer {
	return &JSONSerializer{}
}

// -----------------------------------------------------------------------------

func (s *JSONSerializer) Name() string {
	return "json"
}

// -----------------------------------------------------------------------------

// Marshal encodes a frame or message; field names follow the json tags.
func (s *JSONSerializer) Marshal(obj interface{}) ([]byte, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("json marshal error: %w", err)
	}
	return data, nil
}

// -----------------------------------------------------------------------------

// Unmarshal decodes one frame or message into obj.
func (s *JSONSerializer) Unmarshal(data []byte, obj interface{}) error {
	if err := json.Unmarshal(data, obj); err != nil {
		return fmt.Errorf("json unmarshal error: %w", err)
	}
	return nil
}
