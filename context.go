package calculator

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

// ID represents a request identifier with a numeric value and a string value.
type ID struct {
	Num uint64
	Str string
}

// String returns Str when it is set, otherwise the decimal form of Num.
func (id *ID) String() string {
	if id.Str != "" {
		return id.Str
	}
	return strconv.FormatUint(id.Num, 10)
}

// Response is the reply a handler produced for one call.
// Result holds the reply payload, Error the failure, Status an RPCStatus* code.
type Response struct {
	Result interface{}
	Error  error
	Status int
}

// Context represents one in-flight call as seen by a handler.
// Every transport (gRPC, HTTP, WebSocket, MQTT) provides its own implementation.
type Context interface {
	// ID returns the identifier of the call.
	ID() *ID

	// Method returns the name of the called method.
	Method() string

	// Ctx returns the context.Context of the call, carrying deadlines and trace state.
	Ctx() context.Context

	// ReplyDesc describes where the reply goes, for logging.
	ReplyDesc() string

	// Bind decodes the request payload into request.
	Bind(request interface{}) error

	// Reply sets the response of the call.
	// It returns false if a response was already set.
	Reply(res *Response) bool

	// ReplyOK replies with status 200 and the given data.
	ReplyOK(data interface{}) bool

	// ReplyError replies with the given status and error.
	ReplyError(status int, err error) bool

	// GetResponse returns the response, or nil if nothing replied yet.
	GetResponse() *Response

	// PrometheusLabels returns the labels describing this call.
	PrometheusLabels() prometheus.Labels
}

// BaseContext implements the reply half of Context.
// Only the first reply is kept; BaseReply, when set, is invoked with it so
// push-style transports can deliver it right away.
type BaseContext struct {
	res       *Response
	resMu     sync.Mutex
	replied   atomic.Bool
	BaseReply func(res *Response)
}

// Reply stores res as the response if no response was stored before.
func (c *BaseContext) Reply(res *Response) bool {
	if !c.replied.CompareAndSwap(false, true) {
		return false
	}

	c.setResponse(res)

	if c.BaseReply != nil {
		c.BaseReply(res)
	}

	return true
}

// ReplyOK sends a successful response with the given data.
func (c *BaseContext) ReplyOK(data interface{}) bool {
	return c.Reply(&Response{
		Status: RPCStatusOK,
		Result: data,
	})
}

// ReplyError sends an error response with the given status.
func (c *BaseContext) ReplyError(status int, err error) bool {
	return c.Reply(&Response{
		Status: status,
		Error:  err,
	})
}

func (c *BaseContext) setResponse(res *Response) {
	c.resMu.Lock()
	defer c.resMu.Unlock()
	c.res = res
}

// GetResponse returns the stored response.
func (c *BaseContext) GetResponse() *Response {
	c.resMu.Lock()
	defer c.resMu.Unlock()
	return c.res
}

// Handler represents a registered method.
// Method is executed for each call; Timeout bounds how long the caller waits for it.
type Handler struct {
	Method  func(c Context)
	Timeout time.Duration
}
