// Package calculator implements the calculator Subtract service core:
// the arithmetic, the request and response types, and the transport-agnostic
// dispatcher shared by the gRPC, HTTP, WebSocket and MQTT transports.
package calculator

// TwoNumbers is the request of a binary operation.
type TwoNumbers struct {
	A float64 `json:"a" msgpack:"a"`
	B float64 `json:"b" msgpack:"b"`
}

// Number is the result of an operation.
type Number struct {
	Result float64 `json:"result" msgpack:"result"`
}

// Subtract returns a - b using IEEE-754 double precision arithmetic.
// NaN and infinities propagate as the hardware produces them.
func Subtract(a, b float64) float64 {
	return a - b
}
