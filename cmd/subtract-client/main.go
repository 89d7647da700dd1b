// Command subtract-client calls Subtract on a subtract-server over gRPC, or
// over MQTT when a broker is given.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/urfave/cli"
	calculator "github.com/xizhibei/go-calculator-rpc"
	"github.com/xizhibei/go-calculator-rpc/calculatorpb"
	"github.com/xizhibei/go-calculator-rpc/config"
	"github.com/xizhibei/go-calculator-rpc/grpcserver"
	"github.com/xizhibei/go-calculator-rpc/mqttadapter"
	"github.com/xizhibei/go-calculator-rpc/mqttjson"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

var version = "dev"

func main() {
	app := cli.NewApp()
	app.Name = "subtract-client"
	app.Usage = "print a - b as computed by a subtract-server"
	app.Version = version
	app.Flags = config.ClientFlags()
	app.Action = action

	if err := app.Run(os.Args); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func action(c *cli.Context) error {
	cfg := config.ClientFromCLI(c)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	result, err := subtract(ctx, cfg)
	if err != nil {
		return err
	}

	render(c.App.Writer, cfg, result)
	return nil
}

func subtract(ctx context.Context, cfg *config.ClientConfig) (float64, error) {
	if cfg.MQTTBroker != "" {
		return subtractMQTT(ctx, cfg)
	}
	return subtractGRPC(ctx, cfg)
}

func subtractGRPC(ctx context.Context, cfg *config.ClientConfig) (float64, error) {
	conn, err := grpc.NewClient(cfg.Addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(grpcserver.TraceClientInterceptor()),
	)
	if err != nil {
		return 0, errors.Wrapf(err, "dial %s", cfg.Addr)
	}
	defer conn.Close()

	var opts []grpc.CallOption
	if cfg.Compressor != "" {
		opts = append(opts, grpc.UseCompressor(cfg.Compressor))
	}

	res, err := calculatorpb.NewCalculatorClient(conn).Subtract(ctx, &calculatorpb.TwoNumbers{A: cfg.A, B: cfg.B}, opts...)
	if err != nil {
		st := status.Convert(err)
		return 0, errors.Newf("%s: %s", st.Code(), st.Message())
	}
	return res.GetResult(), nil
}

func subtractMQTT(ctx context.Context, cfg *config.ClientConfig) (float64, error) {
	adapter, err := mqttadapter.New(cfg.MQTTBroker, "subtract-client-"+uuid.NewString())
	if err != nil {
		return 0, errors.Wrapf(err, "mqtt broker %s", cfg.MQTTBroker)
	}
	if err := adapter.Connect(ctx); err != nil {
		return 0, errors.Wrap(err, "connect mqtt broker")
	}

	client := mqttjson.NewClient(adapter, cfg.MQTTTopicPrefix)
	defer client.Close()

	return callMQTT(ctx, client, cfg)
}

func callMQTT(ctx context.Context, client *mqttjson.Client, cfg *config.ClientConfig) (float64, error) {
	var res calculator.Number
	err := client.Call(ctx, cfg.MQTTDevice, calculator.MethodSubtract, &calculator.TwoNumbers{A: cfg.A, B: cfg.B}, &res)
	if err != nil {
		return 0, err
	}
	return res.Result, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func render(w io.Writer, cfg *config.ClientConfig, result float64) {
	fmt.Fprintf(w, "%s - %s = ", formatFloat(cfg.A), formatFloat(cfg.B))
	color.New(color.FgGreen, color.Bold).Fprintln(w, formatFloat(result))
}
