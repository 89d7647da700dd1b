// Package calculatorpb holds the protobuf messages and gRPC service glue of
// calculator.proto.
//
// The messages are plain structs. They are encoded through dynamicpb against
// File_calculator_proto, so the package needs no generated code. Encoding
// follows proto3 implicit presence: a double whose bit pattern is zero is not
// written.
package calculatorpb

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Message is implemented by the messages of this package.
type Message interface {
	Marshal() ([]byte, error)
	Unmarshal(b []byte) error
}

var marshalOptions = proto.MarshalOptions{Deterministic: true}

// TwoNumbers is the request of calculator.Calculator/Subtract.
type TwoNumbers struct {
	A float64
	B float64
}

func (x *TwoNumbers) GetA() float64 {
	if x != nil {
		return x.A
	}
	return 0
}

func (x *TwoNumbers) GetB() float64 {
	if x != nil {
		return x.B
	}
	return 0
}

func (x *TwoNumbers) Marshal() ([]byte, error) {
	m := dynamicpb.NewMessage(twoNumbersDesc)
	setDouble(m, 1, x.GetA())
	setDouble(m, 2, x.GetB())
	return marshalOptions.Marshal(m)
}

// Unmarshal decodes b into x, replacing its fields. Unknown fields are skipped.
func (x *TwoNumbers) Unmarshal(b []byte) error {
	m := dynamicpb.NewMessage(twoNumbersDesc)
	if err := proto.Unmarshal(b, m); err != nil {
		return errors.Wrap(err, "decode TwoNumbers")
	}
	*x = TwoNumbers{A: getDouble(m, 1), B: getDouble(m, 2)}
	return nil
}

func (x *TwoNumbers) String() string {
	return fmt.Sprintf("a:%v b:%v", x.GetA(), x.GetB())
}

// Number is the response of calculator.Calculator/Subtract.
type Number struct {
	Result float64
}

func (x *Number) GetResult() float64 {
	if x != nil {
		return x.Result
	}
	return 0
}

func (x *Number) Marshal() ([]byte, error) {
	m := dynamicpb.NewMessage(numberDesc)
	setDouble(m, 1, x.GetResult())
	return marshalOptions.Marshal(m)
}

// Unmarshal decodes b into x, replacing its fields. Unknown fields are skipped.
func (x *Number) Unmarshal(b []byte) error {
	m := dynamicpb.NewMessage(numberDesc)
	if err := proto.Unmarshal(b, m); err != nil {
		return errors.Wrap(err, "decode Number")
	}
	*x = Number{Result: getDouble(m, 1)}
	return nil
}

func (x *Number) String() string {
	return fmt.Sprintf("result:%v", x.GetResult())
}

func setDouble(m *dynamicpb.Message, num protoreflect.FieldNumber, v float64) {
	m.Set(m.Descriptor().Fields().ByNumber(num), protoreflect.ValueOfFloat64(v))
}

func getDouble(m *dynamicpb.Message, num protoreflect.FieldNumber) float64 {
	return m.Get(m.Descriptor().Fields().ByNumber(num)).Float()
}
