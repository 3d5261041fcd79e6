package gateway

import (
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tpms "github.com/bkbilly/tpms-ble"
	"github.com/bkbilly/tpms-ble/registry"
)

type fakeToken struct{}

func (fakeToken) Wait() bool                     { return true }
func (fakeToken) WaitTimeout(time.Duration) bool { return true }
func (fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (fakeToken) Error() error { return nil }

type published struct {
	topic   string
	payload []byte
}

type fakeClient struct {
	published []published
}

func (c *fakeClient) Connect() mqtt.Token { return fakeToken{} }
func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.published = append(c.published, published{topic: topic, payload: payload.([]byte)})
	return fakeToken{}
}
func (c *fakeClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return fakeToken{}
}
func (c *fakeClient) Disconnect(quiesce uint) {}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// 240000 Pa, 22.50 °C, 85 %, no alarm, wrapped in a mfg data record
// for company 0x0100
var typeAPDU = []byte{
	0x02, 0x01, 0x06,
	0x13, 0xff, 0x00, 0x01,
	0x82, 0xea, 0xca, 0x10, 0x8a, 0x78,
	0x80, 0xa9, 0x03, 0x00,
	0xca, 0x08, 0x00, 0x00,
	0x55,
	0x00,
}

func newTestGateway(t *testing.T) (*Gateway, *fakeClient) {
	t.Helper()
	client := &fakeClient{}
	gw := New(Config{
		AdvertisementTopic: "tpms/advertisements",
		ReadingTopic:       "tpms/readings",
	}, client, registry.New(""), prometheus.NewRegistry())
	return gw, client
}

func envelope(t *testing.T, addr string, rssi int, pdu []byte) []byte {
	t.Helper()
	out, err := jsoniter.Marshal(Envelope{Addr: addr, RSSI: rssi, PDU: pdu})
	require.NoError(t, err)
	return out
}

func TestHandlePayload(t *testing.T) {
	gw, _ := newTestGateway(t)

	dev, err := gw.HandlePayload(envelope(t, "80:EA:CA:10:8A:78", -70, typeAPDU))
	require.NoError(t, err)

	assert.Equal(t, "80:ea:ca:10:8a:78", dev.Addr)
	assert.Equal(t, "TPMS 8A78", dev.Name)
	require.NotNil(t, dev.Reading.Pressure)
	assert.InDelta(t, 240.0, *dev.Reading.Pressure, 0.001)
	assert.Equal(t, -70, dev.Reading.RSSI)

	assert.Equal(t, 1.0, testutil.ToFloat64(gw.metrics.decodes.WithLabelValues("ok")))
}

func TestHandlePayloadBadEnvelope(t *testing.T) {
	gw, _ := newTestGateway(t)

	_, err := gw.HandlePayload([]byte("not json"))
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(gw.metrics.decodes.WithLabelValues("invalid_envelope")))
}

func TestHandlePayloadUnrecognized(t *testing.T) {
	gw, _ := newTestGateway(t)

	pdu := []byte{0x04, 0xff, 0xef, 0xbe, 0x01}
	_, err := gw.HandlePayload(envelope(t, "80:ea:ca:10:8a:78", -70, pdu))
	require.ErrorIs(t, err, tpms.ErrUnrecognized)
	assert.Equal(t, 1.0, testutil.ToFloat64(gw.metrics.decodes.WithLabelValues("unrecognized")))
}

func TestHandlePublishesReading(t *testing.T) {
	gw, client := newTestGateway(t)

	gw.handle(nil, fakeMessage{topic: "tpms/advertisements", payload: envelope(t, "80:ea:ca:10:8a:78", -70, typeAPDU)})

	require.Len(t, client.published, 1)
	assert.Equal(t, "tpms/readings/80:ea:ca:10:8a:78", client.published[0].topic)

	var dev registry.Device
	require.NoError(t, jsoniter.Unmarshal(client.published[0].payload, &dev))
	assert.Equal(t, "TPMS 8A78", dev.Name)
	require.NotNil(t, dev.Reading.Temperature)
	assert.InDelta(t, 22.5, *dev.Reading.Temperature, 0.001)
}

func TestMetricsDistinguishSharedShortAddress(t *testing.T) {
	gw, _ := newTestGateway(t)

	// both devices are named "TPMS 8A78"
	_, err := gw.HandlePayload(envelope(t, "aa:bb:cc:dd:8a:78", -70, typeAPDU))
	require.NoError(t, err)
	_, err = gw.HandlePayload(envelope(t, "11:22:33:44:8a:78", -70, typeAPDU))
	require.NoError(t, err)

	assert.Equal(t, 2, testutil.CollectAndCount(gw.metrics.pressure))
	assert.Equal(t, 2, testutil.CollectAndCount(gw.metrics.rssi))
}

func TestHandleDropsUndecodable(t *testing.T) {
	gw, client := newTestGateway(t)

	gw.handle(nil, fakeMessage{topic: "tpms/advertisements", payload: []byte("{}")})
	assert.Empty(t, client.published)
}
