package mqttjson

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	calculator "github.com/xizhibei/go-calculator-rpc"
)

func TestReplyTopic(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"calc/dev-1/request/abc", "calc/dev-1/response/abc"},
		{"request-prefix/dev-1/request/abc", "request-prefix/dev-1/response/abc"},
		{"request/abc", "response/abc"},
		{"calc/request-dev/other", "calc/response-dev/other"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, replyTopic(tt.topic), tt.topic)
	}
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "calc/dev-1/request/+", RequestTopic("calc", "dev-1", "+"))
	assert.Equal(t, "calc/dev-1/response/id", ResponseTopic("calc", "dev-1", "id"))
}

func TestEncodeResponse(t *testing.T) {
	res := encodeResponse(1, "subtract", &calculator.Response{Status: calculator.RPCStatusOK, Result: &calculator.Number{Result: 2}})
	assert.Equal(t, calculator.RPCStatusOK, res.Status)
	assert.JSONEq(t, `{"result":2}`, string(res.Data))

	res = encodeResponse(1, "subtract", &calculator.Response{Status: calculator.RPCStatusOK, Result: &calculator.Number{Result: math.NaN()}})
	assert.Equal(t, calculator.RPCStatusServerError, res.Status)
	assert.Contains(t, string(res.Data), "encode result")

	res = encodeResponse(2, "subtract", &calculator.Response{Status: calculator.RPCStatusClientError, Error: errors.New("bad")})
	assert.Equal(t, uint64(2), res.ID)
	assert.Equal(t, "subtract", res.Method)
	assert.JSONEq(t, `{"message":"bad"}`, string(res.Data))

	res = encodeResponse(3, "subtract", nil)
	assert.Equal(t, calculator.RPCStatusServerError, res.Status)
	assert.Contains(t, string(res.Data), "empty reply")
}
