// Package muxer serves gRPC and HTTP on a single listener.
package muxer

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/soheilhy/cmux"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// GRPCServer is the part of grpcserver.Server the muxer drives.
type GRPCServer interface {
	Serve(lis net.Listener) error
	GracefulStop(timeout time.Duration)
}

// Serve splits lis into a gRPC and an HTTP/1 listener and serves both until
// ctx is cancelled or one of them fails. httpHandler may be nil, in which case
// only gRPC is served.
//
// On cancellation the HTTP server is shut down first, then gRPC calls get
// grace to finish. Serve returns nil after a clean stop.
func Serve(ctx context.Context, lis net.Listener, grpcServer GRPCServer, httpHandler http.Handler, grace time.Duration) error {
	log := zap.S().With("module", "calculator.muxer")

	m := cmux.New(lis)
	grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldPrefixSendSettings("content-type", "application/grpc"))

	var (
		httpL      net.Listener
		httpServer *http.Server
	)
	if httpHandler != nil {
		httpL = m.Match(cmux.HTTP1Fast())
		httpServer = &http.Server{
			Handler:           httpHandler,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	gctx, stop := context.WithCancel(gctx)

	g.Go(func() error {
		return ignoreClosed(grpcServer.Serve(grpcL))
	})

	if httpServer != nil {
		g.Go(func() error {
			return ignoreClosed(httpServer.Serve(httpL))
		})
	}

	g.Go(func() error {
		defer stop()
		return ignoreClosed(m.Serve())
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Infof("Stopping, grace period %v", grace)

		// Closing any child listener closes lis, so HTTP goes first to let
		// its in-flight requests drain.
		if httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Warnf("HTTP shutdown: %v", err)
			}
		}

		grpcServer.GracefulStop(grace)

		if err := lis.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	})

	return errors.Wrap(g.Wait(), "serve")
}

func ignoreClosed(err error) error {
	switch {
	case err == nil,
		errors.Is(err, cmux.ErrListenerClosed),
		errors.Is(err, cmux.ErrServerClosed),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, http.ErrServerClosed),
		errors.Is(err, grpc.ErrServerStopped):
		return nil
	}
	return err
}
