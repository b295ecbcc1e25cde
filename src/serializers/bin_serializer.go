package serializers

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"activ-subscriber/src/interfaces"
	"activ-subscriber/src/models"
)

func init() {
	// field values travel as interface{} inside MFieldMap
	gob.Register(map[string]interface{}{})
	gob.Register([]interface{}{})
	gob.Register(models.MFieldMap{})
}

// -----------------------------------------------------------------------------

// BinSerializer encodes values with encoding/gob, for Go-only consumers of the bus.
type BinSerializer struct{}

// -----------------------------------------------------------------------------

// NewBinSerializer creates a new instance of the Gob serializer.
func NewBinSerializer() interfaces.ISerializer {
	return &BinSerializer{}
}

// -----------------------------------------------------------------------------

func (g *BinSerializer) Name() string {
	return "gob"
}

// -----------------------------------------------------------------------------

// Marshal converts a Go value into a Gob byte array.
func (g *BinSerializer) Marshal(obj interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	if err := enc.Encode(obj); err != nil {
		return nil, fmt.Errorf("gob marshal error: %w", err)
	}

	return buf.Bytes(), nil
}

// -----------------------------------------------------------------------------

// Unmarshal converts a Gob byte array back into the target value.
func (g *BinSerializer) Unmarshal(data []byte, obj interface{}) error {
	dec := gob.NewDecoder(bytes.NewReader(data))

	if err := dec.Decode(obj); err != nil {
		return fmt.Errorf("gob unmarshal error: %w", err)
	}
	return nil
}
