package grpcserver

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	calculator "github.com/xizhibei/go-calculator-rpc"
	"github.com/xizhibei/go-calculator-rpc/calculatorpb"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

// Transport is the transport label of gRPC calls.
const Transport = "grpc"

// grpcContext is the calculator.Context of a unary gRPC call.
type grpcContext struct {
	calculator.BaseContext

	id     calculator.ID
	method string
	ctx    context.Context
	req    *calculatorpb.TwoNumbers
}

func newGRPCContext(ctx context.Context, id uint64, method string, req *calculatorpb.TwoNumbers) *grpcContext {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		ctx = otel.GetTextMapPropagator().Extract(ctx, metadataCarrier(md))
	}

	return &grpcContext{
		id:     calculator.ID{Num: id},
		method: method,
		ctx:    ctx,
		req:    req,
	}
}

func (c *grpcContext) ID() *calculator.ID {
	return &c.id
}

func (c *grpcContext) Method() string {
	return c.method
}

func (c *grpcContext) Ctx() context.Context {
	return c.ctx
}

// ReplyDesc returns the address of the calling peer.
func (c *grpcContext) ReplyDesc() string {
	if p, ok := peer.FromContext(c.ctx); ok && p.Addr != nil {
		return Transport + "://" + p.Addr.String()
	}
	return Transport
}

// Bind copies the decoded protobuf request into request, which must be a
// *calculator.TwoNumbers.
func (c *grpcContext) Bind(request interface{}) error {
	switch r := request.(type) {
	case *calculator.TwoNumbers:
		r.A = c.req.GetA()
		r.B = c.req.GetB()
		return nil
	}
	return errors.Newf("[CALC] cannot bind %s request into %T", c.method, request)
}

func (c *grpcContext) PrometheusLabels() prometheus.Labels {
	return prometheus.Labels{
		calculator.LabelMethod:    c.method,
		calculator.LabelTransport: Transport,
	}
}

// metadataCarrier adapts incoming gRPC metadata to propagation.TextMapCarrier.
// Metadata keys are lower case.
type metadataCarrier metadata.MD

func (mc metadataCarrier) Get(key string) string {
	vals := metadata.MD(mc).Get(key)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func (mc metadataCarrier) Set(key, value string) {
	metadata.MD(mc).Set(key, value)
}

func (mc metadataCarrier) Keys() []string {
	keys := make([]string, 0, len(mc))
	for k := range mc {
		keys = append(keys, strings.ToLower(k))
	}
	return keys
}
