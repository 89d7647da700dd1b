// Package mqttjson serves and calls calculator methods over MQTT with JSON
// envelopes.
package mqttjson

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	calculator "github.com/xizhibei/go-calculator-rpc"
	"github.com/xizhibei/go-calculator-rpc/mqttadapter"
	"go.uber.org/zap"
)

var (
	// ErrRetainedMessage is replied to retained request messages.
	ErrRetainedMessage = errors.New("[CALC] retained message is not allowed, please set retained=false")

	// ErrInvalidEnvelope is replied to request messages that are not a Request.
	ErrInvalidEnvelope = errors.New("[CALC] invalid request envelope")
)

// Server receives calls published to <prefix>/<device>/request/+ and runs
// them on the core server.
type Server struct {
	core      *calculator.Server
	iotClient mqttadapter.MQTTClientAdapter
	log       *zap.SugaredLogger
	validator *validator.Validate

	subscribeTopic string
	qos            byte
	connectIdx     int
}

// NewServer subscribes on every (re)connect of client and keeps client
// connected in the background.
func NewServer(core *calculator.Server, client mqttadapter.MQTTClientAdapter, topicPrefix, deviceID string, validate *validator.Validate) *Server {
	s := Server{
		core:           core,
		iotClient:      client,
		subscribeTopic: RequestTopic(topicPrefix, deviceID, "+"),
		qos:            calculator.DefaultQoS,
		log:            zap.S().With("module", "calculator.mqttjson.server"),
		validator:      validate,
	}

	s.connectIdx = client.OnConnect(func() {
		s.log.Infof("Subscribe %s", s.subscribeTopic)
		s.iotClient.Subscribe(context.TODO(), s.subscribeTopic, s.qos, s.onMessage)
	})

	client.EnsureConnected()

	return &s
}

// SubscribeTopic returns the topic filter requests are received on.
func (s *Server) SubscribeTopic() string {
	return s.subscribeTopic
}

// IsConnected reports whether the broker connection is open.
func (s *Server) IsConnected() bool {
	return s.iotClient.IsConnected()
}

// Close unsubscribes and disconnects from the broker.
func (s *Server) Close() error {
	s.iotClient.OffConnect(s.connectIdx)
	s.iotClient.Unsubscribe(context.TODO(), s.subscribeTopic)
	s.iotClient.Disconnect()
	return nil
}

func (s *Server) onMessage(_ mqttadapter.MQTTClientAdapter, m mqttadapter.Message) {
	topic := m.Topic()

	if m.Retained() {
		s.log.Warnf("Retained message on %s, ignore", topic)
		s.publish(topic, encodeResponse(0, "", &calculator.Response{
			Status: calculator.RPCStatusClientError,
			Error:  ErrRetainedMessage,
		}))
		return
	}

	var req Request
	if err := json.Unmarshal(m.Payload(), &req); err != nil {
		s.log.Errorf("Parse json from %s %v", topic, err)
		s.publish(topic, encodeResponse(0, "", &calculator.Response{
			Status: calculator.RPCStatusClientError,
			Error:  errors.Wrap(ErrInvalidEnvelope, err.Error()),
		}))
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		s.publish(topic, encodeResponse(req.ID, req.Method, &calculator.Response{
			Status: calculator.RPCStatusClientError,
			Error:  errors.Wrap(ErrInvalidEnvelope, err.Error()),
		}))
		return
	}

	s.log.Debugf("Request from topic %s, method %s", topic, req.Method)

	c := newMQTTContext(&req, topic, s.validator)
	c.BaseReply = func(res *calculator.Response) {
		s.publish(topic, encodeResponse(req.ID, req.Method, res))
	}

	// paho delivers messages sequentially.
	go s.core.Call(c)
}

func (s *Server) publish(requestTopic string, res *Response) {
	data, err := json.Marshal(res)
	if err != nil {
		s.log.Errorf("Encode response %v", err)
		return
	}

	topic := replyTopic(requestTopic)
	s.log.Infof("Response to topic %s, method %s size %d", topic, res.Method, len(data))
	s.iotClient.PublishBytes(context.TODO(), topic, s.qos, false, data)
}
