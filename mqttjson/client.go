package mqttjson

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	calculator "github.com/xizhibei/go-calculator-rpc"
	"github.com/xizhibei/go-calculator-rpc/mqttadapter"
	"github.com/xizhibei/go-calculator-rpc/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// StatusError is returned by Call when the server replied with a status
// other than 200.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

// Client calls methods of devices served by Server.
type Client struct {
	mqttClient  mqttadapter.MQTTClientAdapter
	log         *zap.SugaredLogger
	telemetry   *telemetry.Telemetry
	topicPrefix string
	qos         byte
	seq         atomic.Uint64
}

// NewClient keeps client connected in the background.
func NewClient(client mqttadapter.MQTTClientAdapter, topicPrefix string) *Client {
	s := Client{
		mqttClient:  client,
		topicPrefix: topicPrefix,
		qos:         calculator.DefaultQoS,
		telemetry:   telemetry.NewNoop(),
		log:         zap.S().With("module", "calculator.mqttjson.client"),
	}

	client.EnsureConnected()

	return &s
}

// SetTelemetry sets the telemetry used for client spans.
func (s *Client) SetTelemetry(tel *telemetry.Telemetry) {
	if tel == nil {
		tel = telemetry.NewNoop()
	}
	s.telemetry = tel
}

func (s *Client) IsConnected() bool {
	return s.mqttClient.IsConnected()
}

func (s *Client) Close() error {
	s.mqttClient.Disconnect()
	return nil
}

// Call publishes method with args to deviceID and decodes the result into
// reply. It returns a *StatusError for non-200 replies and ctx.Err() when
// ctx ends first.
func (s *Client) Call(ctx context.Context, deviceID, method string, args, reply interface{}) error {
	ctx, span := s.telemetry.StartSpan(ctx, "calculator.client/"+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("device.id", deviceID)),
	)
	defer span.End()

	err := s.call(ctx, deviceID, method, args, reply)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	return err
}

func (s *Client) call(ctx context.Context, deviceID, method string, args, reply interface{}) error {
	params, err := json.Marshal(args)
	if err != nil {
		return errors.Wrap(err, "encode params")
	}

	req := Request{
		ID:       s.seq.Inc(),
		Method:   method,
		Metadata: map[string]string{},
		Params:   params,
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(req.Metadata))

	data, err := json.Marshal(&req)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}

	id := uuid.NewString()
	requestTopic := RequestTopic(s.topicPrefix, deviceID, id)
	responseTopic := ResponseTopic(s.topicPrefix, deviceID, id)

	resCh := make(chan *Response, 1)
	err = s.mqttClient.SubscribeWait(ctx, responseTopic, s.qos, func(_ mqttadapter.MQTTClientAdapter, m mqttadapter.Message) {
		var res Response
		if err := json.Unmarshal(m.Payload(), &res); err != nil {
			s.log.Errorf("Parse response from %s %v", m.Topic(), err)
			return
		}
		select {
		case resCh <- &res:
		default:
		}
	})
	if err != nil {
		return errors.Wrapf(err, "subscribe %s", responseTopic)
	}
	defer s.mqttClient.Unsubscribe(context.Background(), responseTopic)

	s.log.Debugf("Send %s to %s len=%d", method, requestTopic, len(data))
	if err := s.mqttClient.PublishBytesWait(ctx, requestTopic, s.qos, false, data); err != nil {
		return errors.Wrapf(err, "publish %s", requestTopic)
	}

	var res *Response
	select {
	case res = <-resCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	if res.Status != calculator.RPCStatusOK {
		var body errorBody
		if err := json.Unmarshal(res.Data, &body); err != nil {
			body.Message = string(res.Data)
		}
		return &StatusError{Status: res.Status, Message: body.Message}
	}

	if reply == nil {
		return nil
	}
	return errors.Wrap(json.Unmarshal(res.Data, reply), "decode result")
}
