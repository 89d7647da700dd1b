package mqttadapter

import (
	"crypto/tls"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
)

func newOptions() *ClientOptions {
	return &ClientOptions{ClientOptions: mqtt.NewClientOptions(), retryInterval: DefaultConnectRetryInterval}
}

func TestWithDebug(t *testing.T) {
	options := newOptions()
	WithDebug(true)(options)
	assert.True(t, options.enableDebug)
}

func TestWithUserPass(t *testing.T) {
	options := newOptions()
	WithUserPass("username", "password")(options)
	assert.Equal(t, "username", options.Username)
	assert.Equal(t, "password", options.Password)
}

func TestWithKeepAlive(t *testing.T) {
	options := newOptions()
	WithKeepAlive(30 * time.Second)(options)
	assert.Equal(t, int64(30), options.KeepAlive)
}

func TestWithTLSConfig(t *testing.T) {
	options := newOptions()
	cfg := &tls.Config{ServerName: "broker"}
	WithTLSConfig(cfg)(options)
	assert.Same(t, cfg, options.TLSConfig)
}

func TestWithConnectRetryInterval(t *testing.T) {
	options := newOptions()
	WithConnectRetryInterval(5 * time.Second)(options)
	assert.Equal(t, 5*time.Second, options.retryInterval)

	WithConnectRetryInterval(0)(options)
	assert.Equal(t, 5*time.Second, options.retryInterval)

	WithConnectRetryInterval(-time.Second)(options)
	assert.Equal(t, 5*time.Second, options.retryInterval)
}

func TestWithOfflineWill(t *testing.T) {
	options := newOptions()
	WithOfflineWill("calculator/dev-1/status", []byte("offline"))(options)
	assert.True(t, options.WillEnabled)
	assert.Equal(t, "calculator/dev-1/status", options.WillTopic)
	assert.Equal(t, []byte("offline"), options.WillPayload)
	assert.Equal(t, byte(1), options.WillQos)
	assert.True(t, options.WillRetained)
}
