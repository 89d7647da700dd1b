package mqttadapter

//go:generate mockgen -source=interface.go -destination=mock/mock_mqttadapter.go

import (
	"context"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Message represents a message in the MQTT protocol.
type Message = mqtt.Message

// MessageCallback handles a message received on a subscribed topic.
type MessageCallback func(MQTTClientAdapter, Message)

// OnConnectCallback is called every time the connection is established.
type OnConnectCallback func()

// OnConnectLostCallback is called with the reason every time the connection
// to the broker is lost.
type OnConnectLostCallback func(err error)

// MQTTClientAdapter is the MQTT client used by the calculator MQTT transport.
type MQTTClientAdapter interface {
	// OnConnect registers cb and runs it right away if the client is
	// connected. The returned index removes it through OffConnect.
	OnConnect(cb OnConnectCallback) int

	// OffConnect removes the callback registered under idx.
	OffConnect(idx int)

	// OnConnectLost registers cb. The returned index removes it through OffConnectLost.
	OnConnectLost(cb OnConnectLostCallback) int

	// OffConnectLost removes the callback registered under idx.
	OffConnectLost(idx int)

	// Connect connects once and waits for the outcome or ctx.
	Connect(ctx context.Context) error

	// EnsureConnected connects in the background, retrying until it succeeds
	// or Disconnect is called.
	EnsureConnected()

	// Disconnect stops retrying and disconnects from the broker.
	Disconnect()

	// IsConnected reports whether the connection is open.
	IsConnected() bool

	// Subscribe subscribes to topic without waiting for the broker to acknowledge.
	Subscribe(ctx context.Context, topic string, qos byte, onMsg MessageCallback)

	// SubscribeWait subscribes to topic and waits for the acknowledgement or ctx.
	SubscribeWait(ctx context.Context, topic string, qos byte, onMsg MessageCallback) error

	// Unsubscribe unsubscribes from topic without waiting.
	Unsubscribe(ctx context.Context, topic string)

	// PublishBytes publishes data without waiting for delivery.
	PublishBytes(ctx context.Context, topic string, qos byte, retained bool, data []byte)

	// PublishBytesWait publishes data and waits for delivery or ctx.
	PublishBytesWait(ctx context.Context, topic string, qos byte, retained bool, data []byte) error
}
