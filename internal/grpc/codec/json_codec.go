// Package codec installs a JSON wire codec under grpc-go's default codec
// name so the control plane's hand-written message types can ride grpc.Server
// and grpc.ClientConn without a protoc-generated marshaler.
package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// Name deliberately shadows grpc-go's built-in "proto" codec. Registering
// under this name makes it the default for any call that doesn't set an
// explicit content-subtype, which is all the calls this server handles.
const Name = "proto"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Name() string {
	return Name
}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal: %w", err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("codec: unmarshal: %w", err)
	}
	return nil
}
