package mqttjson

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	calculator "github.com/xizhibei/go-calculator-rpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// mqttContext is the calculator.Context of one request message.
type mqttContext struct {
	calculator.BaseContext

	req       *Request
	topic     string
	ctx       context.Context
	validator *validator.Validate
}

func newMQTTContext(req *Request, topic string, validate *validator.Validate) *mqttContext {
	ctx := context.Background()
	if req.Metadata != nil {
		ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(req.Metadata))
	}
	return &mqttContext{
		req:       req,
		topic:     topic,
		ctx:       ctx,
		validator: validate,
	}
}

func (c *mqttContext) ID() *calculator.ID {
	return &calculator.ID{Num: c.req.ID}
}

func (c *mqttContext) Method() string {
	return c.req.Method
}

func (c *mqttContext) Ctx() context.Context {
	return c.ctx
}

// ReplyDesc returns the response topic.
func (c *mqttContext) ReplyDesc() string {
	return replyTopic(c.topic)
}

// Bind unmarshals the params and validates the result. Missing params leave
// request untouched.
func (c *mqttContext) Bind(request interface{}) error {
	if len(c.req.Params) == 0 || string(c.req.Params) == "null" {
		return nil
	}

	if err := json.Unmarshal(c.req.Params, request); err != nil {
		return errors.Wrap(err, "decode params")
	}

	return c.validator.Struct(request)
}

func (c *mqttContext) PrometheusLabels() prometheus.Labels {
	return prometheus.Labels{
		calculator.LabelMethod:    c.req.Method,
		calculator.LabelTransport: Transport,
	}
}

// encodeResponse turns res into an envelope. Results JSON cannot carry,
// such as NaN, become a 500.
func encodeResponse(id uint64, method string, res *calculator.Response) *Response {
	out := &Response{ID: id, Method: method}

	if res == nil {
		res = &calculator.Response{Status: calculator.RPCStatusServerError, Error: calculator.ErrNoReply}
	}

	if res.Error == nil && res.Status == calculator.RPCStatusOK {
		data, err := json.Marshal(res.Result)
		if err == nil {
			out.Status = res.Status
			out.Data = data
			return out
		}
		res = &calculator.Response{
			Status: calculator.RPCStatusServerError,
			Error:  errors.Wrap(err, "encode result"),
		}
	}

	msg := "unknown error"
	if res.Error != nil {
		msg = res.Error.Error()
	}
	out.Status = res.Status
	out.Data, _ = json.Marshal(errorBody{Message: msg})
	return out
}
