package mqttadapter

import (
	"crypto/tls"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// DefaultConnectRetryInterval is the pause between failed connection attempts
// of EnsureConnected.
const DefaultConnectRetryInterval = 10 * time.Second

// ClientOptions wraps the paho options with the adapter's own settings.
type ClientOptions struct {
	*mqtt.ClientOptions

	enableDebug   bool
	retryInterval time.Duration
}

// Option configures the client created by New.
type Option func(*ClientOptions)

// WithDebug routes paho's internal logs to stderr.
func WithDebug(enable bool) Option {
	return func(o *ClientOptions) {
		o.enableDebug = enable
	}
}

// WithUserPass sets the credentials sent on connect.
func WithUserPass(username, password string) Option {
	return func(o *ClientOptions) {
		o.SetUsername(username)
		o.SetPassword(password)
	}
}

func WithKeepAlive(keepAlive time.Duration) Option {
	return func(o *ClientOptions) {
		o.SetKeepAlive(keepAlive)
	}
}

func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *ClientOptions) {
		o.SetTLSConfig(cfg)
	}
}

// WithConnectRetryInterval sets the pause between failed connection attempts
// of EnsureConnected. Non-positive values are ignored.
func WithConnectRetryInterval(interval time.Duration) Option {
	return func(o *ClientOptions) {
		if interval > 0 {
			o.retryInterval = interval
		}
	}
}

// WithOfflineWill makes the broker publish payload, retained with QoS 1, on
// topic when the client disconnects unexpectedly.
func WithOfflineWill(topic string, payload []byte) Option {
	return func(o *ClientOptions) {
		o.SetBinaryWill(topic, payload, 1, true)
	}
}
