package publish

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbehnke/bts-codec/pkg/logger"
)

type fakeToken struct {
	err     error
	stalled bool
}

func (t *fakeToken) Wait() bool { return !t.stalled }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.stalled }
func (t *fakeToken) Error() error { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.stalled {
		close(ch)
	}
	return ch
}

type message struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu           sync.Mutex
	sent         []message
	token        *fakeToken
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, message{topic, qos, retained, payload.([]byte)})
	if c.token != nil {
		return c.token
	}
	return &fakeToken{}
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func TestPublishDecode(t *testing.T) {
	fc := &fakeClient{}
	p := newPublisher(fc, Config{TopicPrefix: "bts/codec/", QoS: 1, Retained: true}, logger.Nop())

	err := p.PublishDecode(Report{RequestID: "r1", Channel: "pdtch", Scheme: "MCS-7", OK: true, NErrors: 4, NBitsTotal: 1248})
	require.NoError(t, err)

	require.Len(t, fc.sent, 1)
	msg := fc.sent[0]
	assert.Equal(t, "bts/codec/decode/pdtch", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.True(t, msg.retained)

	var got Report
	require.NoError(t, json.Unmarshal(msg.payload, &got))
	assert.Equal(t, "MCS-7", got.Scheme)
	assert.Equal(t, 4, got.NErrors)
}

func TestPublishErrors(t *testing.T) {
	fc := &fakeClient{token: &fakeToken{err: errors.New("not connected")}}
	p := newPublisher(fc, Config{TopicPrefix: "bts"}, logger.Nop())
	assert.ErrorContains(t, p.PublishJSON("selftest", "all", map[string]int{"blocks": 1}), "not connected")

	fc.token = &fakeToken{stalled: true}
	assert.ErrorIs(t, p.PublishDecode(Report{Channel: "xcch"}), ErrTimeout)
}

func TestClose(t *testing.T) {
	fc := &fakeClient{}
	newPublisher(fc, Config{}, logger.Nop()).Close()
	assert.True(t, fc.disconnected)
}
