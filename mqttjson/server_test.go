package mqttjson_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/suite"
	calculator "github.com/xizhibei/go-calculator-rpc"
	"github.com/xizhibei/go-calculator-rpc/mqttadapter"
	mock_mqttadapter "github.com/xizhibei/go-calculator-rpc/mqttadapter/mock"
	"github.com/xizhibei/go-calculator-rpc/mqttjson"
	"github.com/xizhibei/go-calculator-rpc/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

type fakeMessage struct {
	topic    string
	payload  []byte
	retained bool
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return m.retained }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

type publishedMessage struct {
	topic string
	res   mqttjson.Response
}

type MQTTJsonServerTestSuite struct {
	suite.Suite

	mockCtrl   *gomock.Controller
	mqttClient *mock_mqttadapter.MockMQTTClientAdapter
	core       *calculator.Server
	server     *mqttjson.Server
	onMessage  mqttadapter.MessageCallback
	published  chan publishedMessage
}

func TestMQTTJsonServer(t *testing.T) {
	suite.Run(t, new(MQTTJsonServerTestSuite))
}

func (suite *MQTTJsonServerTestSuite) SetupSuite() {
	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(log)
	otel.SetTextMapPropagator(propagation.TraceContext{})
}

func (suite *MQTTJsonServerTestSuite) SetupTest() {
	suite.mockCtrl = gomock.NewController(suite.T())
	suite.mqttClient = mock_mqttadapter.NewMockMQTTClientAdapter(suite.mockCtrl)
	suite.published = make(chan publishedMessage, 8)

	suite.mqttClient.EXPECT().
		OnConnect(gomock.Any()).
		DoAndReturn(func(cb mqttadapter.OnConnectCallback) int {
			cb()
			return 7
		})
	suite.mqttClient.EXPECT().
		Subscribe(gomock.Any(), "calc/dev-1/request/+", byte(calculator.DefaultQoS), gomock.Any()).
		Do(func(_ context.Context, _ string, _ byte, cb mqttadapter.MessageCallback) {
			suite.onMessage = cb
		})
	suite.mqttClient.EXPECT().
		EnsureConnected()
	suite.mqttClient.EXPECT().
		PublishBytes(gomock.Any(), gomock.Any(), byte(calculator.DefaultQoS), false, gomock.Any()).
		Do(func(_ context.Context, topic string, _ byte, _ bool, data []byte) {
			var res mqttjson.Response
			suite.Require().NoError(json.Unmarshal(data, &res))
			suite.published <- publishedMessage{topic: topic, res: res}
		}).
		AnyTimes()

	suite.core = calculator.NewServer(calculator.WithServerName("mqtt-test"), calculator.WithWorkerNum(4))
	calculator.RegisterSubtract(suite.core, time.Second)

	suite.server = mqttjson.NewServer(suite.core, suite.mqttClient, "calc", "dev-1", validator.New())
	suite.Require().NotNil(suite.onMessage)
}

func (suite *MQTTJsonServerTestSuite) TearDownTest() {
	suite.mqttClient.EXPECT().OffConnect(7)
	suite.mqttClient.EXPECT().Unsubscribe(gomock.Any(), "calc/dev-1/request/+")
	suite.mqttClient.EXPECT().Disconnect()

	suite.NoError(suite.server.Close())
	suite.core.Close()
}

func (suite *MQTTJsonServerTestSuite) send(topic string, payload []byte, retained bool) publishedMessage {
	suite.onMessage(suite.mqttClient, &fakeMessage{topic: topic, payload: payload, retained: retained})

	select {
	case msg := <-suite.published:
		return msg
	case <-time.After(2 * time.Second):
		suite.FailNow("no response published")
		return publishedMessage{}
	}
}

func (suite *MQTTJsonServerTestSuite) request(req mqttjson.Request) []byte {
	b, err := json.Marshal(req)
	suite.Require().NoError(err)
	return b
}

func (suite *MQTTJsonServerTestSuite) TestSubscribeTopic() {
	suite.Equal("calc/dev-1/request/+", suite.server.SubscribeTopic())
}

func (suite *MQTTJsonServerTestSuite) TestSubtract() {
	msg := suite.send("calc/dev-1/request/abc", suite.request(mqttjson.Request{
		ID:     1,
		Method: calculator.MethodSubtract,
		Params: json.RawMessage(`{"a":5,"b":3}`),
	}), false)

	suite.Equal("calc/dev-1/response/abc", msg.topic)
	suite.Equal(uint64(1), msg.res.ID)
	suite.Equal(calculator.MethodSubtract, msg.res.Method)
	suite.Equal(calculator.RPCStatusOK, msg.res.Status)
	suite.JSONEq(`{"result":2}`, string(msg.res.Data))
}

func (suite *MQTTJsonServerTestSuite) TestMissingParams() {
	msg := suite.send("calc/dev-1/request/abc", suite.request(mqttjson.Request{
		ID:     2,
		Method: calculator.MethodSubtract,
	}), false)

	suite.Equal(calculator.RPCStatusOK, msg.res.Status)
	suite.JSONEq(`{"result":0}`, string(msg.res.Data))
}

func (suite *MQTTJsonServerTestSuite) TestErrors() {
	tests := []struct {
		name     string
		payload  []byte
		retained bool
		status   int
		message  string
	}{
		{
			name:    "unknown method",
			payload: suite.request(mqttjson.Request{ID: 3, Method: "multiply", Params: json.RawMessage(`{}`)}),
			status:  calculator.RPCStatusNotFound,
			message: "unknown method",
		},
		{
			name:    "invalid params",
			payload: suite.request(mqttjson.Request{ID: 4, Method: calculator.MethodSubtract, Params: json.RawMessage(`{"a":"five"}`)}),
			status:  calculator.RPCStatusClientError,
			message: "invalid request",
		},
		{
			name:    "missing method",
			payload: []byte(`{"id":5,"params":{}}`),
			status:  calculator.RPCStatusClientError,
			message: "invalid request envelope",
		},
		{
			name:    "malformed envelope",
			payload: []byte(`{"id":`),
			status:  calculator.RPCStatusClientError,
			message: "invalid request envelope",
		},
		{
			name:     "retained",
			payload:  suite.request(mqttjson.Request{ID: 6, Method: calculator.MethodSubtract}),
			retained: true,
			status:   calculator.RPCStatusClientError,
			message:  "retained message is not allowed",
		},
	}

	for _, tt := range tests {
		msg := suite.send("calc/dev-1/request/"+tt.name, tt.payload, tt.retained)
		suite.Equal("calc/dev-1/response/"+tt.name, msg.topic, tt.name)
		suite.Equal(tt.status, msg.res.Status, tt.name)

		var body struct {
			Message string `json:"message"`
		}
		suite.Require().NoError(json.Unmarshal(msg.res.Data, &body), tt.name)
		suite.Contains(body.Message, tt.message, tt.name)
	}
}

func (suite *MQTTJsonServerTestSuite) TestConcurrentCalls() {
	suite.core.Register("slow", &calculator.Handler{
		Timeout: time.Second,
		Method: func(c calculator.Context) {
			time.Sleep(200 * time.Millisecond)
			c.ReplyOK("slow")
		},
	})

	suite.onMessage(suite.mqttClient, &fakeMessage{
		topic:   "calc/dev-1/request/slow",
		payload: suite.request(mqttjson.Request{ID: 1, Method: "slow"}),
	})

	// The slow call must not block the next message.
	msg := suite.send("calc/dev-1/request/fast", suite.request(mqttjson.Request{
		ID:     2,
		Method: calculator.MethodSubtract,
		Params: json.RawMessage(`{"a":1,"b":1}`),
	}), false)
	suite.Equal(uint64(2), msg.res.ID)

	select {
	case msg = <-suite.published:
		suite.Equal(uint64(1), msg.res.ID)
		suite.JSONEq(`"slow"`, string(msg.res.Data))
	case <-time.After(2 * time.Second):
		suite.Fail("slow call never replied")
	}
}

func (suite *MQTTJsonServerTestSuite) TestTracePropagation() {
	tel := telemetry.NewTestTelemetry(suite.T())
	suite.core.SetTelemetry(tel.Telemetry)

	traceParent := "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	suite.send("calc/dev-1/request/traced", suite.request(mqttjson.Request{
		ID:       8,
		Method:   calculator.MethodSubtract,
		Metadata: map[string]string{"traceparent": traceParent},
		Params:   json.RawMessage(`{"a":1,"b":2}`),
	}), false)

	suite.Eventually(func() bool { return len(tel.Spans()) == 1 }, time.Second, 10*time.Millisecond)
	span := tel.Spans()[0]
	suite.Equal("4bf92f3577b34da6a3ce929d0e0e4736", span.SpanContext().TraceID().String())
	suite.Equal("00f067aa0ba902b7", span.Parent().SpanID().String())
}
