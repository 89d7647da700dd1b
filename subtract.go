package calculator

import (
	"time"

	"github.com/cockroachdb/errors"
)

// DefaultHandlerTimeout is used for handlers registered without a timeout.
const DefaultHandlerTimeout = 5 * time.Second

// SubtractHandler returns the handler of the subtract method.
// It binds a TwoNumbers request and replies with Number{a - b}.
// Nothing beyond decoding is validated.
func SubtractHandler(timeout time.Duration) *Handler {
	return &Handler{
		Timeout: timeout,
		Method: func(c Context) {
			var req TwoNumbers
			if err := c.Bind(&req); err != nil {
				c.ReplyError(RPCStatusClientError, errors.Wrap(err, "invalid request"))
				return
			}

			c.ReplyOK(&Number{Result: Subtract(req.A, req.B)})
		},
	}
}

// RegisterSubtract registers the subtract handler on s under MethodSubtract.
func RegisterSubtract(s *Server, timeout time.Duration) {
	s.Register(MethodSubtract, SubtractHandler(timeout))
}
