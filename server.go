package calculator

import (
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/Jeffail/tunny"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xizhibei/go-calculator-rpc/telemetry"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// ErrNoReply is returned to the caller when a handler finished without replying.
	ErrNoReply = errors.New("[CALC] empty reply")

	// ErrTimeout is returned to the caller when a handler did not finish within its timeout.
	ErrTimeout = errors.New("[CALC] timeout")

	// ErrUnknownMethod is returned to the caller when no handler is registered for the method.
	ErrUnknownMethod = errors.New("[CALC] unknown method")
)

// Server dispatches calls to registered handlers.
// It is shared by every transport of the process.
type Server struct {
	log        *zap.SugaredLogger
	handlerMap map[string]*Handler
	handlerMu  sync.RWMutex

	cbList       []OnAfterResponseCallback
	afterResPool sync.Pool

	options    *serverOptions
	workerPool *tunny.Pool
	telemetry  *telemetry.Telemetry
}

// NewServer creates a Server with the provided options.
// Options not provided fall back to a random name, no response logging and
// one worker per CPU.
func NewServer(options ...ServerOption) *Server {
	o := serverOptions{
		name:        uuid.New().String(),
		logResponse: false,
		workerNum:   runtime.NumCPU(),
	}

	for _, option := range options {
		option(&o)
	}

	return &Server{
		log:        zap.S().With("module", "calculator.server"),
		handlerMap: make(map[string]*Handler),
		options:    &o,
		afterResPool: sync.Pool{
			New: func() interface{} {
				return new(AfterResponseEvent)
			},
		},
		workerPool: tunny.NewCallback(o.workerNum),
		telemetry:  telemetry.NewNoop(),
	}
}

// Name returns the configured server name.
func (s *Server) Name() string {
	return s.options.name
}

// SetTelemetry replaces the telemetry used for spans and request metrics.
func (s *Server) SetTelemetry(tel *telemetry.Telemetry) {
	if tel == nil {
		tel = telemetry.NewNoop()
	}
	s.telemetry = tel
}

// Register registers hdl under method.
// A method registered twice keeps the last handler.
func (s *Server) Register(method string, hdl *Handler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()

	if _, ok := s.handlerMap[method]; ok {
		s.log.Warnf("Method %s already registered, will override", method)
	}

	s.handlerMap[method] = hdl
	s.log.Debugf("Method %s registered", method)
}

// Methods returns the names of the registered methods.
func (s *Server) Methods() []string {
	s.handlerMu.RLock()
	defer s.handlerMu.RUnlock()

	methods := make([]string, 0, len(s.handlerMap))
	for m := range s.handlerMap {
		methods = append(methods, m)
	}
	return methods
}

func (s *Server) handler(method string) (*Handler, bool) {
	s.handlerMu.RLock()
	defer s.handlerMu.RUnlock()
	hdl, ok := s.handlerMap[method]
	return hdl, ok
}

// Call executes the handler registered for c.Method() and returns once the
// call has a response. The response is available from c.GetResponse().
//
// The handler runs on the worker pool. Unknown methods reply 404, handlers
// exceeding their timeout reply 408, panics and handlers that return without
// replying reply 500.
func (s *Server) Call(c Context) {
	start := time.Now()

	ctx, span := s.telemetry.StartSpan(c.Ctx(), "calculator/"+c.Method(),
		trace.WithSpanKind(trace.SpanKindServer),
	)

	defer func() {
		duration := time.Since(start)

		res := c.GetResponse()
		status := 0
		var resErr error
		if res != nil {
			status = res.Status
			resErr = res.Error
		}

		if resErr != nil {
			span.RecordError(resErr)
			span.SetStatus(otelcodes.Error, resErr.Error())
		}
		span.End()

		s.telemetry.RecordRequest(ctx, duration, c.Method(), strconv.Itoa(status), resErr)

		if s.options.logResponse {
			s.log.Infof("Response to %s [%d] (%v)", c.ReplyDesc(), status, duration.Round(time.Microsecond))
		}

		evt := s.afterResPool.Get().(*AfterResponseEvent)
		evt.Labels = c.PrometheusLabels()
		evt.Duration = duration
		evt.Res = res
		s.emitAfterResponse(evt)
	}()

	hdl, ok := s.handler(c.Method())
	if !ok {
		c.ReplyError(RPCStatusNotFound, errors.Wrapf(ErrUnknownMethod, "method %q", c.Method()))
		return
	}

	timeout := hdl.Timeout
	if timeout <= 0 {
		timeout = DefaultHandlerTimeout
	}

	_, err := s.workerPool.ProcessTimed(func() {
		defer func() {
			if i := recover(); i != nil {
				err := fmt.Errorf("panic in method %s %v", c.Method(), i)
				s.log.Desugar().WithOptions(zap.AddStacktrace(zapcore.ErrorLevel)).Sugar().Error(err)
				c.ReplyError(RPCStatusServerError, err)
			}
		}()

		hdl.Method(c)

		// Succeeds only when the method did not reply.
		if c.ReplyError(RPCStatusServerError, ErrNoReply) {
			s.log.Warnf("Method %s no reply", c.Method())
		}
	}, timeout)

	if err != nil {
		if errors.Is(err, tunny.ErrJobTimedOut) {
			c.ReplyError(RPCStatusRequestTimeout, ErrTimeout)
			return
		}
		c.ReplyError(RPCStatusServerError, err)
	}
}

// Close stops the worker pool. Calls made after Close fail with 500.
func (s *Server) Close() {
	s.workerPool.Close()
}

// AfterResponseEvent describes a finished call.
type AfterResponseEvent struct {
	Labels   prometheus.Labels
	Duration time.Duration
	Res      *Response
}

// OnAfterResponseCallback is invoked after every call with its event.
// The event is recycled once all callbacks returned and must not be retained.
type OnAfterResponseCallback func(e *AfterResponseEvent)

// OnAfterResponse registers a callback executed after each call.
// Callbacks must be registered before the server starts serving.
func (s *Server) OnAfterResponse(cb OnAfterResponseCallback) {
	s.cbList = append(s.cbList, cb)
}

func (s *Server) emitAfterResponse(e *AfterResponseEvent) {
	for _, cb := range s.cbList {
		cb(e)
	}
	e.Labels = nil
	e.Res = nil
	s.afterResPool.Put(e)
}
