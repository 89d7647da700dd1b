package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	calculator "github.com/xizhibei/go-calculator-rpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// ErrInvalidFrame is replied to WebSocket frames that are not a Request.
var ErrInvalidFrame = errors.New("[CALC] invalid frame")

// Request is a WebSocket call frame.
type Request struct {
	ID       uint64            `json:"id"`
	Method   string            `json:"method"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Params   json.RawMessage   `json:"params"`
}

// Response is a WebSocket reply frame. Data holds the result, or
// {"message": ...} when Status is not 200.
type Response struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// wsConn serializes writes to one WebSocket connection.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		g.log.Debugf("Upgrade %s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(MaxBodySize)

	ws := &wsConn{conn: conn}
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.log.Debugf("Read from %s: %v", r.RemoteAddr, err)
			}
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil || req.Method == "" {
			_, body := encodeResponse(formatJSON, &calculator.Response{
				Status: calculator.RPCStatusClientError,
				Error:  ErrInvalidFrame,
			})
			if err := ws.writeJSON(&Response{Status: calculator.RPCStatusClientError, Data: body}); err != nil {
				return
			}
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			g.callWebSocket(r, ws, &req)
		}()
	}
}

func (g *Gateway) callWebSocket(r *http.Request, ws *wsConn, req *Request) {
	ctx := context.WithoutCancel(r.Context())
	if req.Metadata != nil {
		ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(req.Metadata))
	}

	c := &callContext{
		id:        calculator.ID{Num: req.ID},
		method:    req.Method,
		ctx:       ctx,
		params:    req.Params,
		format:    formatJSON,
		transport: TransportWebSocket,
		replyDesc: r.RemoteAddr,
	}
	c.BaseReply = func(res *calculator.Response) {
		status, data := encodeResponse(formatJSON, res)
		err := ws.writeJSON(&Response{
			ID:     req.ID,
			Method: req.Method,
			Status: status,
			Data:   data,
		})
		if err != nil {
			g.log.Debugf("Reply to %s: %v", r.RemoteAddr, err)
		}
	}

	g.core.Call(c)
}
