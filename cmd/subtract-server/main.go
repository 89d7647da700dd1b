// Command subtract-server serves the calculator over gRPC, HTTP and
// optionally MQTT on a single port.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli"
	calculator "github.com/xizhibei/go-calculator-rpc"
	"github.com/xizhibei/go-calculator-rpc/config"
	"github.com/xizhibei/go-calculator-rpc/gateway"
	"github.com/xizhibei/go-calculator-rpc/grpcserver"
	"github.com/xizhibei/go-calculator-rpc/mqttadapter"
	"github.com/xizhibei/go-calculator-rpc/mqttjson"
	"github.com/xizhibei/go-calculator-rpc/muxer"
	"github.com/xizhibei/go-calculator-rpc/telemetry"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	app := cli.NewApp()
	app.Name = "subtract-server"
	app.Usage = "serve the calculator Subtract RPC"
	app.Version = version
	app.Flags = config.Flags()
	app.Action = action

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func action(c *cli.Context) error {
	cfg := config.FromCLI(c)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("listen %s: %v", cfg.ListenAddr, err), 1)
	}

	return serve(ctx, cfg, lis, os.Stdout)
}

// serve runs every transport on lis until ctx ends.
func serve(ctx context.Context, cfg *config.Config, lis net.Listener, out io.Writer) error {
	log := zap.S().With("module", "calculator.cmd")

	tel, err := telemetry.NewFromEnv(ctx, "subtract-server", version)
	if err != nil {
		log.Warnf("Failed to initialize telemetry: %v", err)
		tel = telemetry.NewNoop()
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Shutdown telemetry: %v", err)
		}
	}()

	core := calculator.NewServer(cfg.ServerOptions()...)
	defer core.Close()
	core.SetTelemetry(tel)
	calculator.RegisterSubtract(core, cfg.HandlerTimeout)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	responseTime, errorCount := calculator.NewMetrics(cfg.MetricNamespace)
	registry.MustRegister(responseTime, errorCount)
	core.RegisterMetrics(responseTime, errorCount)

	if cfg.MQTTBroker != "" {
		mqttServer, err := newMQTTServer(core, cfg)
		if err != nil {
			return err
		}
		defer mqttServer.Close()
		log.Infof("Serving MQTT on %s", mqttServer.SubscribeTopic())
	}

	grpcServer := grpcserver.New(core)

	var httpHandler *gateway.Gateway
	if !cfg.DisableGateway {
		httpHandler = gateway.New(core, gateway.WithGatherer(registry))
	}

	fmt.Fprintf(out, "Subtract server started on port %d\n", portOf(lis))

	if httpHandler == nil {
		return muxer.Serve(ctx, lis, grpcServer, nil, cfg.GracePeriod)
	}
	return muxer.Serve(ctx, lis, grpcServer, httpHandler, cfg.GracePeriod)
}

func newMQTTServer(core *calculator.Server, cfg *config.Config) (*mqttjson.Server, error) {
	statusTopic := cfg.MQTTTopicPrefix + "/" + cfg.MQTTDevice + "/status"
	client, err := mqttadapter.New(cfg.MQTTBroker, "subtract-server-"+uuid.NewString(),
		mqttadapter.WithOfflineWill(statusTopic, []byte("offline")),
	)
	if err != nil {
		return nil, err
	}

	return mqttjson.NewServer(core, client, cfg.MQTTTopicPrefix, cfg.MQTTDevice, validator.New()), nil
}

func portOf(lis net.Listener) int {
	if addr, ok := lis.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}
