// Package grpcserver serves the calculator.Calculator gRPC service on top of
// the calculator dispatcher.
package grpcserver

import (
	"context"
	"net"
	"time"

	calculator "github.com/xizhibei/go-calculator-rpc"
	"github.com/xizhibei/go-calculator-rpc/calculatorpb"
	_ "github.com/xizhibei/go-calculator-rpc/compressor" // registers br and deflate
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	_ "google.golang.org/grpc/encoding/gzip" // registers gzip
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Server implements calculatorpb.CalculatorServer by dispatching every call
// to a calculator.Server.
type Server struct {
	calculatorpb.UnimplementedCalculatorServer

	core   *calculator.Server
	grpc   *grpc.Server
	health *health.Server
	log    *zap.SugaredLogger
	lastID atomic.Uint64
}

// New creates the gRPC server of core. opts are appended to the codec and
// logging interceptor options.
func New(core *calculator.Server, opts ...grpc.ServerOption) *Server {
	s := &Server{
		core:   core,
		health: health.NewServer(),
		log:    zap.S().With("module", "calculator.grpcserver"),
	}

	serverOpts := append([]grpc.ServerOption{
		calculatorpb.ServerCodec(),
		grpc.ChainUnaryInterceptor(s.logInterceptor),
	}, opts...)

	s.grpc = grpc.NewServer(serverOpts...)
	calculatorpb.RegisterCalculatorServer(s.grpc, s)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(calculatorpb.Calculator_ServiceName, healthpb.HealthCheckResponse_SERVING)

	return s
}

// GRPCServer returns the underlying grpc.Server.
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpc
}

// Serve accepts connections on lis until the server stops.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// GracefulStop marks the services as not serving and waits for pending calls
// to finish. After timeout remaining calls are cancelled.
func (s *Server) GracefulStop(timeout time.Duration) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		s.log.Warnf("Graceful stop timed out after %v, stopping", timeout)
		s.grpc.Stop()
		<-done
	}
}

// Subtract runs the subtract method of the dispatcher.
func (s *Server) Subtract(ctx context.Context, in *calculatorpb.TwoNumbers) (*calculatorpb.Number, error) {
	c := newGRPCContext(ctx, s.lastID.Inc(), calculator.MethodSubtract, in)
	s.core.Call(c)

	res := c.GetResponse()
	if res == nil {
		return nil, status.Error(codes.Internal, calculator.ErrNoReply.Error())
	}
	if res.Status != calculator.RPCStatusOK {
		msg := "unknown error"
		if res.Error != nil {
			msg = res.Error.Error()
		}
		return nil, status.Error(StatusCode(res.Status), msg)
	}

	num, ok := res.Result.(*calculator.Number)
	if !ok {
		return nil, status.Errorf(codes.Internal, "unexpected result %T", res.Result)
	}
	return &calculatorpb.Number{Result: num.Result}, nil
}

// StatusCode maps a reply status to a gRPC code.
func StatusCode(rpcStatus int) codes.Code {
	switch rpcStatus {
	case calculator.RPCStatusOK:
		return codes.OK
	case calculator.RPCStatusClientError:
		return codes.InvalidArgument
	case calculator.RPCStatusNotFound:
		return codes.Unimplemented
	case calculator.RPCStatusRequestTimeout:
		return codes.DeadlineExceeded
	}
	return codes.Internal
}

func (s *Server) logInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	res, err := handler(ctx, req)

	code := status.Code(err)
	if code == codes.OK {
		s.log.Debugw("Handled call", "method", info.FullMethod, "duration", time.Since(start))
	} else {
		s.log.Warnw("Call failed", "method", info.FullMethod, "code", code.String(), "error", err, "duration", time.Since(start))
	}
	return res, err
}
