package mqttjson

import (
	"encoding/json"
	"path"
	"strings"
)

// Transport is the transport label of MQTT calls.
const Transport = "mqtt"

// Request is the JSON envelope published on a request topic.
type Request struct {
	ID       uint64            `json:"id"`
	Method   string            `json:"method" validate:"required"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Params   json.RawMessage   `json:"params"`
}

// Response is the JSON envelope published on a response topic. Data holds
// the result, or {"message": ...} when Status is not 200.
type Response struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type errorBody struct {
	Message string `json:"message"`
}

// RequestTopic returns the topic a call with the given id is published on.
func RequestTopic(prefix, deviceID, id string) string {
	return path.Join(prefix, deviceID, "request", id)
}

// ResponseTopic returns the topic the reply of a call is published on.
func ResponseTopic(prefix, deviceID, id string) string {
	return path.Join(prefix, deviceID, "response", id)
}

// replyTopic maps <prefix>/<device>/request/<id> to
// <prefix>/<device>/response/<id>. Only the request segment changes, so a
// prefix containing "request" is left alone.
func replyTopic(topic string) string {
	dir, id := path.Split(topic)
	dir = strings.TrimSuffix(dir, "/")
	if path.Base(dir) != "request" {
		return strings.Replace(topic, "request", "response", 1)
	}
	return path.Join(path.Dir(dir), "response", id)
}
