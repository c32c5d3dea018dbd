package publish_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/aruba-countdown/internal/countdown"
	"github.com/neexbeast/aruba-countdown/internal/publish"
)

type fakeToken struct {
	err     error
	pending bool
}

func (t *fakeToken) Wait() bool                       { return !t.pending }
func (t *fakeToken) WaitTimeout(_ time.Duration) bool { return !t.pending }
func (t *fakeToken) Error() error                     { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.pending {
		close(ch)
	}
	return ch
}

type message struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu           sync.Mutex
	messages     []message
	err          error
	pending      bool
	connected    bool
	disconnected bool
}

func (c *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message{topic: topic, retained: retained, payload: payload.([]byte)})
	return &fakeToken{err: c.err, pending: c.pending}
}

func (c *fakeClient) IsConnected() bool { return c.connected }

func (c *fakeClient) Disconnect(_ uint) { c.disconnected = true }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDisabledPublisher(t *testing.T) {
	p, err := publish.NewPublisher(publish.Config{Enabled: false}, discardLogger())
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.NoError(t, p.PublishCountdown(countdown.State{Days: 1}))

	shared, err := p.Share(countdown.ShareMessage{Text: "hola"})
	require.NoError(t, err)
	assert.False(t, shared, "no broker means nothing was shared")

	assert.False(t, p.IsConnected())
	assert.ErrorIs(t, p.Ping(context.Background()), publish.ErrNotConnected)
	p.Close()
}

func TestPublishCountdown(t *testing.T) {
	c := &fakeClient{connected: true}
	p := publish.NewPublisherWithClient(c, "aruba", discardLogger())

	s := countdown.State{Days: 36, Hours: 10, Minutes: 15, Seconds: 30}
	require.NoError(t, p.PublishCountdown(s))

	require.Len(t, c.messages, 1)
	assert.Equal(t, "aruba/countdown", c.messages[0].topic)
	assert.True(t, c.messages[0].retained)

	var got countdown.State
	require.NoError(t, json.Unmarshal(c.messages[0].payload, &got))
	assert.Equal(t, s, got)
}

func TestPublishCountdown_SkipsUnchanged(t *testing.T) {
	c := &fakeClient{connected: true}
	p := publish.NewPublisherWithClient(c, "aruba", discardLogger())

	s := countdown.State{Seconds: 5}
	require.NoError(t, p.PublishCountdown(s))
	require.NoError(t, p.PublishCountdown(s))
	require.NoError(t, p.PublishCountdown(countdown.State{Seconds: 4}))

	assert.Len(t, c.messages, 2)
}

func TestPublishCountdown_Error(t *testing.T) {
	c := &fakeClient{err: errors.New("broker gone")}
	p := publish.NewPublisherWithClient(c, "aruba", discardLogger())

	err := p.PublishCountdown(countdown.State{Seconds: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aruba/countdown")

	// A failed publish is retried on the next tick.
	c.err = nil
	require.NoError(t, p.PublishCountdown(countdown.State{Seconds: 5}))
	assert.Len(t, c.messages, 2)
}

func TestPublish_Timeout(t *testing.T) {
	c := &fakeClient{pending: true}
	p := publish.NewPublisherWithClient(c, "aruba", discardLogger())

	err := p.PublishCountdown(countdown.State{Seconds: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestShare(t *testing.T) {
	c := &fakeClient{connected: true}
	p := publish.NewPublisherWithClient(c, "aruba", discardLogger())

	msg := countdown.NewShareMessage("Vacaciones Familia Rubilar", "Aruba", "https://example.test",
		countdown.State{Days: 36})
	shared, err := p.Share(msg)
	require.NoError(t, err)
	assert.True(t, shared)

	require.Len(t, c.messages, 1)
	assert.Equal(t, "aruba/share", c.messages[0].topic)
	assert.False(t, c.messages[0].retained)

	var got countdown.ShareMessage
	require.NoError(t, json.Unmarshal(c.messages[0].payload, &got))
	assert.Equal(t, "¡Faltan 36 días para Aruba! 🌊🌴", got.Text)
}

func TestShare_Error(t *testing.T) {
	c := &fakeClient{err: errors.New("nope")}
	p := publish.NewPublisherWithClient(c, "aruba", discardLogger())

	shared, err := p.Share(countdown.ShareMessage{})
	require.Error(t, err)
	assert.False(t, shared)
}

func TestPingAndClose(t *testing.T) {
	c := &fakeClient{connected: true}
	p := publish.NewPublisherWithClient(c, "aruba", discardLogger())

	assert.True(t, p.Enabled())
	assert.True(t, p.IsConnected())
	assert.NoError(t, p.Ping(context.Background()))

	c.connected = false
	assert.ErrorIs(t, p.Ping(context.Background()), publish.ErrNotConnected)

	p.Close()
	assert.True(t, c.disconnected)
}
