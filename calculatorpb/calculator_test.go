package calculatorpb

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

func TestTwoNumbersWireBytes(t *testing.T) {
	b, err := (&TwoNumbers{A: 5, B: 3}).Marshal()
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x09, 0, 0, 0, 0, 0, 0, 0x14, 0x40,
		0x11, 0, 0, 0, 0, 0, 0, 0x08, 0x40,
	}, b)

	b, err = (&Number{Result: 2}).Marshal()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x09, 0, 0, 0, 0, 0, 0, 0, 0x40}, b)
}

func TestZeroValuesAreOmitted(t *testing.T) {
	b, err := (&TwoNumbers{}).Marshal()
	require.NoError(t, err)
	assert.Empty(t, b)

	b, err = (&Number{}).Marshal()
	require.NoError(t, err)
	assert.Empty(t, b)

	// Negative zero has a non-zero bit pattern.
	b, err = (&Number{Result: math.Copysign(0, -1)}).Marshal()
	require.NoError(t, err)
	assert.Len(t, b, 9)

	var n Number
	require.NoError(t, n.Unmarshal(b))
	assert.True(t, math.Signbit(n.Result))
}

func TestUnmarshalSpecialValues(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), math.MaxFloat64, math.SmallestNonzeroFloat64} {
		b, err := (&Number{Result: v}).Marshal()
		require.NoError(t, err)

		var n Number
		require.NoError(t, n.Unmarshal(b))
		assert.Equal(t, math.Float64bits(v), math.Float64bits(n.Result))
	}
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, 150)
	b = protowire.AppendTag(b, 1, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(5))
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendString(b, "extra")
	b = protowire.AppendTag(b, 2, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(3))

	var req TwoNumbers
	require.NoError(t, req.Unmarshal(b))
	assert.Equal(t, TwoNumbers{A: 5, B: 3}, req)
}

func TestUnmarshalLastValueWins(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(1))
	b = protowire.AppendTag(b, 1, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(2))

	var n Number
	require.NoError(t, n.Unmarshal(b))
	assert.Equal(t, float64(2), n.Result)
}

func TestUnmarshalResets(t *testing.T) {
	req := TwoNumbers{A: 1, B: 2}
	require.NoError(t, req.Unmarshal(nil))
	assert.Equal(t, TwoNumbers{}, req)
}

func TestUnmarshalMalformed(t *testing.T) {
	tests := map[string][]byte{
		"truncated fixed64": {0x09, 0, 0, 0},
		"truncated tag":     {0x80},
		"field number zero": {0x01, 0, 0, 0, 0, 0, 0, 0, 0},
		"truncated bytes":   {0x1a, 0x05, 'a'},
	}

	for name, b := range tests {
		t.Run(name, func(t *testing.T) {
			var req TwoNumbers
			assert.Error(t, req.Unmarshal(b))
		})
	}
}

func TestGettersOnNil(t *testing.T) {
	var req *TwoNumbers
	var res *Number
	assert.Zero(t, req.GetA())
	assert.Zero(t, req.GetB())
	assert.Zero(t, res.GetResult())
}

func TestString(t *testing.T) {
	assert.Equal(t, "a:5 b:-3.5", (&TwoNumbers{A: 5, B: -3.5}).String())
	assert.Equal(t, "result:8.5", (&Number{Result: 8.5}).String())
}

// wireTwoNumbers encodes a and b field by field, leaving out doubles whose
// bit pattern is zero.
func wireTwoNumbers(a, b float64) []byte {
	out := []byte{}
	for i, v := range []float64{a, b} {
		if bits := math.Float64bits(v); bits != 0 {
			out = protowire.AppendTag(out, protowire.Number(i+1), protowire.Fixed64Type)
			out = protowire.AppendFixed64(out, bits)
		}
	}
	return out
}

func TestInteropWithProtobufRuntime(t *testing.T) {
	fd := File_calculator_proto
	assert.Equal(t, "calculator.proto", fd.Path())

	svc := fd.Services().ByName("Calculator")
	require.NotNil(t, svc)
	assert.Equal(t, Calculator_ServiceName, string(svc.FullName()))
	assert.Equal(t, Calculator_Subtract_FullMethodName, "/"+string(svc.FullName())+"/"+string(svc.Methods().Get(0).Name()))

	reqDesc := fd.Messages().ByName("TwoNumbers")
	resDesc := fd.Messages().ByName("Number")

	pairs := [][2]float64{{5, 3}, {-2, 7}, {0, 0}, {0, -1.5}, {math.Copysign(0, -1), 0}, {math.Inf(1), math.NaN()}}
	for _, p := range pairs {
		dyn := dynamicpb.NewMessage(reqDesc)
		dyn.Set(reqDesc.Fields().ByName("a"), protoreflect.ValueOfFloat64(p[0]))
		dyn.Set(reqDesc.Fields().ByName("b"), protoreflect.ValueOfFloat64(p[1]))

		want, err := proto.MarshalOptions{Deterministic: true}.Marshal(dyn)
		require.NoError(t, err)

		got, err := (&TwoNumbers{A: p[0], B: p[1]}).Marshal()
		require.NoError(t, err)
		assert.True(t, bytes.Equal(want, got), "%v: want %x got %x", p, want, got)
		assert.True(t, bytes.Equal(wireTwoNumbers(p[0], p[1]), got), "%v: wire %x", p, got)

		var req TwoNumbers
		require.NoError(t, req.Unmarshal(want))
		assert.Equal(t, math.Float64bits(p[0]), math.Float64bits(req.A))
		assert.Equal(t, math.Float64bits(p[1]), math.Float64bits(req.B))
	}

	b, err := (&Number{Result: -9}).Marshal()
	require.NoError(t, err)

	dyn := dynamicpb.NewMessage(resDesc)
	require.NoError(t, proto.Unmarshal(b, dyn))
	assert.Equal(t, float64(-9), dyn.Get(resDesc.Fields().ByName("result")).Float())
}

func TestCodec(t *testing.T) {
	codec := Codec{}
	assert.Equal(t, "proto", codec.Name())

	b, err := codec.Marshal(&TwoNumbers{A: 5, B: 3})
	require.NoError(t, err)

	var req TwoNumbers
	require.NoError(t, codec.Unmarshal(b, &req))
	assert.Equal(t, TwoNumbers{A: 5, B: 3}, req)

	_, err = codec.Marshal(struct{}{})
	assert.Error(t, err)
	assert.Error(t, codec.Unmarshal(b, &struct{}{}))
}

func TestCodecFallsBackToProtoMessages(t *testing.T) {
	resDesc := File_calculator_proto.Messages().ByName("Number")

	dyn := dynamicpb.NewMessage(resDesc)
	dyn.Set(resDesc.Fields().ByName("result"), protoreflect.ValueOfFloat64(2))

	b, err := Codec{}.Marshal(dyn)
	require.NoError(t, err)

	var n Number
	require.NoError(t, Codec{}.Unmarshal(b, &n))
	assert.Equal(t, float64(2), n.Result)

	out := dynamicpb.NewMessage(resDesc)
	require.NoError(t, Codec{}.Unmarshal(b, out))
	assert.Equal(t, float64(2), out.Get(resDesc.Fields().ByName("result")).Float())
}
