package calculator

type serverOptions struct {
	logResponse bool
	name        string
	workerNum   int
}

// ServerOption is a functional option for configuring the server.
type ServerOption func(o *serverOptions)

// WithServerName sets the name reported in metrics labels and logs.
// Defaults to a random UUID.
func WithServerName(name string) ServerOption {
	return func(o *serverOptions) {
		o.name = name
	}
}

// WithLogResponse enables an info log line for every reply, including the
// reply status and how long the call took.
func WithLogResponse(logResponse bool) ServerOption {
	return func(o *serverOptions) {
		o.logResponse = logResponse
	}
}

// WithWorkerNum sets the number of workers that execute handlers.
// Defaults to runtime.NumCPU(). Values below one are ignored.
func WithWorkerNum(count int) ServerOption {
	return func(o *serverOptions) {
		if count > 0 {
			o.workerNum = count
		}
	}
}
