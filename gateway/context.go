package gateway

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vmihailenco/msgpack"
	calculator "github.com/xizhibei/go-calculator-rpc"
)

// Transport labels of gateway calls.
const (
	TransportHTTP      = "http"
	TransportWebSocket = "websocket"
)

type bodyFormat int

const (
	formatJSON bodyFormat = iota
	formatMsgpack
)

func (f bodyFormat) contentType() string {
	if f == formatMsgpack {
		return ContentTypeMsgpack
	}
	return ContentTypeJSON
}

func (f bodyFormat) marshal(v interface{}) ([]byte, error) {
	if f == formatMsgpack {
		return msgpack.Marshal(v)
	}
	return json.Marshal(v)
}

func (f bodyFormat) unmarshal(data []byte, v interface{}) error {
	if f == formatMsgpack {
		return msgpack.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}

// callContext is the calculator.Context of one HTTP request or WebSocket frame.
type callContext struct {
	calculator.BaseContext

	id        calculator.ID
	method    string
	ctx       context.Context
	params    []byte
	format    bodyFormat
	transport string
	replyDesc string
}

func (c *callContext) ID() *calculator.ID {
	return &c.id
}

func (c *callContext) Method() string {
	return c.method
}

func (c *callContext) Ctx() context.Context {
	return c.ctx
}

func (c *callContext) ReplyDesc() string {
	return c.replyDesc
}

// Bind decodes the request body. An empty body leaves request untouched.
func (c *callContext) Bind(request interface{}) error {
	if len(c.params) == 0 {
		return nil
	}
	if err := c.format.unmarshal(c.params, request); err != nil {
		return errors.Wrapf(err, "decode %s body", c.format.contentType())
	}
	return nil
}

func (c *callContext) PrometheusLabels() prometheus.Labels {
	return prometheus.Labels{
		calculator.LabelMethod:    c.method,
		calculator.LabelTransport: c.transport,
	}
}

// errorBody is the body of every failed reply.
type errorBody struct {
	Message string `json:"message" msgpack:"message"`
}

// encodeResponse encodes the payload of res. Payloads the format cannot
// represent, such as NaN in JSON, turn the reply into a 500.
func encodeResponse(f bodyFormat, res *calculator.Response) (int, []byte) {
	if res == nil {
		res = &calculator.Response{Status: calculator.RPCStatusServerError, Error: calculator.ErrNoReply}
	}

	if res.Error == nil && res.Status == calculator.RPCStatusOK {
		data, err := f.marshal(res.Result)
		if err == nil {
			return res.Status, data
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
	data, err := f.marshal(errorBody{Message: msg})
	if err != nil {
		// A string message always encodes.
		panic(err)
	}
	return res.Status, data
}
