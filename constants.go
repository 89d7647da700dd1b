package calculator

const (
	// Reply statuses, named after their HTTP counterparts. Every transport
	// maps them onto its own status codes.
	RPCStatusOK             = 200
	RPCStatusClientError    = 400
	RPCStatusNotFound       = 404
	RPCStatusRequestTimeout = 408
	RPCStatusServerError    = 500

	// DefaultQoS is the MQTT QoS level of requests and replies.
	DefaultQoS = 0

	// DefaultPort is the TCP port the subtract server listens on unless configured otherwise.
	DefaultPort = 50052

	// MethodSubtract is the method name the subtract handler is registered under.
	MethodSubtract = "subtract"
)
