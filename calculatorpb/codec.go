package calculatorpb

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/proto"
)

// Name is the content subtype of Codec, the same as the stock protobuf codec.
const Name = "proto"

var _ encoding.Codec = Codec{}

// Codec is a gRPC codec for the messages of this package.
// Any other proto.Message, such as the health check messages, is handed to
// the protobuf runtime.
type Codec struct{}

func (Codec) Marshal(v interface{}) ([]byte, error) {
	switch m := v.(type) {
	case Message:
		return m.Marshal()
	case proto.Message:
		return proto.Marshal(m)
	}
	return nil, errors.Newf("[CALC] cannot marshal %T", v)
}

func (Codec) Unmarshal(data []byte, v interface{}) error {
	switch m := v.(type) {
	case Message:
		return m.Unmarshal(data)
	case proto.Message:
		return proto.Unmarshal(data, m)
	}
	return errors.Newf("[CALC] cannot unmarshal into %T", v)
}

func (Codec) Name() string {
	return Name
}

// ServerCodec makes a grpc.Server use Codec for every service it hosts.
func ServerCodec() grpc.ServerOption {
	return grpc.ForceServerCodec(Codec{})
}

// CallCodec makes a call use Codec.
func CallCodec() grpc.CallOption {
	return grpc.ForceCodec(Codec{})
}
