package serializers

import (
	"encoding/json"
	"fmt"

	"activ-subscriber/src/interfaces"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// -----------------------------------------------------------------------------

// ProtoSerializer encodes values as a google.protobuf.Struct, so consumers in any
// language can decode the payload with the well-known types only.
type ProtoSerializer struct{}

// -----------------------------------------------------------------------------

// NewProtoSerializer creates a new instance of the protobuf serializer.
func NewProtoSerializer() interfaces.ISerializer {
	return &ProtoSerializer{}
}

// -----------------------------------------------------------------------------

func (p *ProtoSerializer) Name() string {
	return "proto"
}

// -----------------------------------------------------------------------------

// Marshal converts a Go value into a protobuf Struct byte array.
// The value goes through its JSON form first so json tags define the field names.
func (p *ProtoSerializer) Marshal(obj interface{}) ([]byte, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("proto marshal error: %w", err)
	}

	var asMap map[string]interface{}
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return nil, fmt.Errorf("proto marshal error: value is not an object: %w", err)
	}

	st, err := structpb.NewStruct(asMap)
	if err != nil {
		return nil, fmt.Errorf("proto marshal error: %w", err)
	}

	data, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("proto marshal error: %w", err)
	}
	return data, nil
}

// -----------------------------------------------------------------------------

// Unmarshal converts a protobuf Struct byte array back into the target value.
func (p *ProtoSerializer) Unmarshal(data []byte, obj interface{}) error {
	st := &structpb.Struct{}
	if err := proto.Unmarshal(data, st); err != nil {
		return fmt.Errorf("proto unmarshal error: %w", err)
	}

	raw, err := json.Marshal(st.AsMap())
	if err != nil {
		return fmt.Errorf("proto unmarshal error: %w", err)
	}

	if err := json.Unmarshal(raw, obj); err != nil {
		return fmt.Errorf("proto unmarshal error: %w", err)
	}
	return nil
}
