// Package gateway exposes the calculator dispatcher over HTTP and WebSocket.
//
// Routes:
//
//	POST /v1/:method  call a method, body in JSON or MessagePack
//	GET  /v1/ws       WebSocket, one JSON frame per call
//	GET  /healthz     liveness
//	GET  /metrics     Prometheus exposition
package gateway

import (
	"io"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	calculator "github.com/xizhibei/go-calculator-rpc"
	"github.com/xizhibei/go-calculator-rpc/compressor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgpack = "application/msgpack"

	// MaxBodySize bounds request bodies before and after decompression.
	MaxBodySize = 1 << 20
)

// ErrBodyTooLarge is replied to requests whose body exceeds MaxBodySize.
var ErrBodyTooLarge = errors.New("[CALC] request body too large")

type options struct {
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader
}

// Option configures a Gateway.
type Option func(o *options)

// WithGatherer sets the registry served on /metrics.
// Defaults to prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(o *options) {
		o.gatherer = g
	}
}

// WithCheckOrigin sets the WebSocket origin check. By default only same-origin
// upgrades are accepted.
func WithCheckOrigin(check func(r *http.Request) bool) Option {
	return func(o *options) {
		o.upgrader.CheckOrigin = check
	}
}

// Gateway is an http.Handler serving the calculator methods.
type Gateway struct {
	core       *calculator.Server
	router     *httprouter.Router
	compressor *compressor.CompressorManager
	upgrader   websocket.Upgrader
	log        *zap.SugaredLogger
	lastID     atomic.Uint64
}

// New creates the gateway of core.
func New(core *calculator.Server, opts ...Option) *Gateway {
	o := options{
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(&o)
	}

	g := &Gateway{
		core:       core,
		router:     httprouter.New(),
		compressor: compressor.NewCompressorManager(),
		upgrader:   o.upgrader,
		log:        zap.S().With("module", "calculator.gateway"),
	}

	g.router.POST("/v1/:method", g.handleCall)
	g.router.GET("/v1/ws", g.handleWebSocket)
	g.router.GET("/healthz", g.handleHealth)
	g.router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{}))

	return g
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.router.ServeHTTP(w, r)
}

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	_, _ = io.WriteString(w, `{"status":"ok"}`)
}

func (g *Gateway) handleCall(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reqFormat := formatOf(r.Header.Get("Content-Type"))
	resFormat := reqFormat
	if accept := r.Header.Get("Accept"); accept != "" && !strings.Contains(accept, "*/*") {
		resFormat = formatOf(accept)
	}

	body, err := g.readBody(r)
	if err != nil {
		g.writeResponse(w, r, resFormat, &calculator.Response{Status: calculator.RPCStatusClientError, Error: err})
		return
	}

	c := &callContext{
		id:        calculator.ID{Num: g.lastID.Inc()},
		method:    ps.ByName("method"),
		ctx:       otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header)),
		params:    body,
		format:    reqFormat,
		transport: TransportHTTP,
		replyDesc: r.RemoteAddr,
	}

	g.core.Call(c)
	g.writeResponse(w, r, resFormat, c.GetResponse())
}

func (g *Gateway) readBody(r *http.Request) ([]byte, error) {
	encoding, err := compressor.ParseContentEncoding(r.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > MaxBodySize {
		return nil, ErrBodyTooLarge
	}

	body, err = g.compressor.DecompressLimit(encoding, body, MaxBodySize)
	if errors.Is(err, compressor.ErrTooLarge) {
		return nil, ErrBodyTooLarge
	}
	return body, err
}

func (g *Gateway) writeResponse(w http.ResponseWriter, r *http.Request, f bodyFormat, res *calculator.Response) {
	status, data := encodeResponse(f, res)
	if status < 100 || status > 999 {
		status = http.StatusInternalServerError
	}

	h := w.Header()
	h.Set("Content-Type", f.contentType())
	h.Add("Vary", "Accept-Encoding")

	encoding := compressor.Negotiate(r.Header.Get("Accept-Encoding"))
	if encoding != compressor.ContentEncodingPlain {
		compressed, err := g.compressor.Compress(encoding, data)
		if err == nil {
			data = compressed
			h.Set("Content-Encoding", encoding.String())
		} else {
			g.log.Warnf("Compress response with %s: %v", encoding, err)
		}
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		g.log.Debugf("Write response to %s: %v", r.RemoteAddr, err)
	}
}

func formatOf(contentType string) bodyFormat {
	if strings.Contains(strings.ToLower(contentType), "msgpack") {
		return formatMsgpack
	}
	return formatJSON
}
