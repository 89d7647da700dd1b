package calculatorpb

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// File_calculator_proto describes calculator.proto.
var File_calculator_proto protoreflect.FileDescriptor

var (
	twoNumbersDesc protoreflect.MessageDescriptor
	numberDesc     protoreflect.MessageDescriptor
)

func init() {
	double := func(name string, num int32) *descriptorpb.FieldDescriptorProto {
		return &descriptorpb.FieldDescriptorProto{
			Name:     proto.String(name),
			JsonName: proto.String(name),
			Number:   proto.Int32(num),
			Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
			Type:     descriptorpb.FieldDescriptorProto_TYPE_DOUBLE.Enum(),
		}
	}

	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("calculator.proto"),
		Package: proto.String("calculator"),
		Syntax:  proto.String("proto3"),
		Options: &descriptorpb.FileOptions{
			GoPackage: proto.String("github.com/xizhibei/go-calculator-rpc/calculatorpb"),
		},
		MessageType: []*descriptorpb.DescriptorProto{
			{Name: proto.String("TwoNumbers"), Field: []*descriptorpb.FieldDescriptorProto{double("a", 1), double("b", 2)}},
			{Name: proto.String("Number"), Field: []*descriptorpb.FieldDescriptorProto{double("result", 1)}},
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("Calculator"),
			Method: []*descriptorpb.MethodDescriptorProto{{
				Name:       proto.String("Subtract"),
				InputType:  proto.String(".calculator.TwoNumbers"),
				OutputType: proto.String(".calculator.Number"),
			}},
		}},
	}

	fd, err := protodesc.NewFile(fdp, new(protoregistry.Files))
	if err != nil {
		panic(err)
	}

	File_calculator_proto = fd
	twoNumbersDesc = fd.Messages().ByName("TwoNumbers")
	numberDesc = fd.Messages().ByName("Number")
}
