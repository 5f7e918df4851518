package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coreauth "github.com/aidline/aidline/core/auth"
	"github.com/aidline/aidline/core/model"
	"github.com/aidline/aidline/core/registry"
	"github.com/aidline/aidline/core/router"
)

type staticVerifier map[string]model.Identity

func (v staticVerifier) Verify(_ context.Context, credential string) (model.Identity, error) {
	if credential == "" {
		return model.Identity{}, coreauth.ErrMissingCredential
	}
	id, ok := v[credential]
	if !ok {
		return model.Identity{}, coreauth.ErrIdentityNotFound
	}
	return id, nil
}

func withMockClient(t *testing.T) *mockClient {
	t.Helper()
	mc := &mockClient{}
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() {
		newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) }
	})
	return mc
}

func newGateway(t *testing.T, mc *mockClient, reg *registry.Registry, v coreauth.Verifier) *Gateway {
	t.Helper()
	gw, err := NewGateway(Config{
		Broker:   "tcp://localhost:1883",
		ClientID: "coordinator",
		QoS:      map[string]byte{"handshake": 1, "events": 1},
	}, reg, v, nil)
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	return gw
}

func TestGateway_SubscribesHandshakeTopics(t *testing.T) {
	mc := withMockClient(t)
	newGateway(t, mc, registry.New(), staticVerifier{})

	if len(mc.subscribed) != 2 {
		t.Fatalf("expected 2 subscriptions, got %d", len(mc.subscribed))
	}
	if mc.subscribed[0].topic != helloTopic || mc.subscribed[0].qos != 1 {
		t.Fatalf("hello subscription wrong: %+v", mc.subscribed[0])
	}
	if mc.subscribed[1].topic != byeTopic {
		t.Fatalf("bye subscription wrong: %+v", mc.subscribed[1])
	}
}

func TestGateway_HandshakeRegisters(t *testing.T) {
	mc := withMockClient(t)
	reg := registry.New()
	gw := newGateway(t, mc, reg, staticVerifier{
		"tok-1": {UserID: "user-1", Role: model.RoleReporter},
	})

	gw.onHello(nil, mockMessage{[]byte(`{"client_id":"conn-1","credential":"tok-1"}`)})

	conns := reg.ConnsForUser("user-1")
	if len(conns) != 1 {
		t.Fatalf("expected registered connection, got %d", len(conns))
	}
	if conns[0].Identity().Role != model.RoleReporter {
		t.Fatalf("wrong identity: %+v", conns[0].Identity())
	}

	if err := conns[0].Send("case.created", map[string]string{"id": "case-1"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(mc.published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(mc.published))
	}
	if mc.published[0].topic != "aidline/conn/conn-1/events" {
		t.Fatalf("wrong topic: %s", mc.published[0].topic)
	}
	var env envelope
	if err := json.Unmarshal(mc.published[0].payload, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Event != "case.created" {
		t.Fatalf("wrong event: %s", env.Event)
	}
}

func TestGateway_HandshakeRejected(t *testing.T) {
	for _, tc := range []struct {
		name    string
		payload string
		reason  string
	}{
		{"missing credential", `{"client_id":"conn-1"}`, "missing credential"},
		{"unknown identity", `{"client_id":"conn-1","credential":"ghost"}`, "identity not found"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			mc := withMockClient(t)
			reg := registry.New()
			gw := newGateway(t, mc, reg, staticVerifier{})

			gw.onHello(nil, mockMessage{[]byte(tc.payload)})

			if reg.Len() != 0 {
				t.Fatalf("rejected handshake must not register")
			}
			if len(mc.published) != 1 {
				t.Fatalf("expected error event, got %d publishes", len(mc.published))
			}
			var env struct {
				Event   string            `json:"event"`
				Payload map[string]string `json:"payload"`
			}
			if err := json.Unmarshal(mc.published[0].payload, &env); err != nil {
				t.Fatalf("decode envelope: %v", err)
			}
			if env.Event != router.EventError {
				t.Fatalf("wrong event: %s", env.Event)
			}
			if env.Payload["reason"] != tc.reason {
				t.Fatalf("wrong reason: %q", env.Payload["reason"])
			}
		})
	}
}

func TestGateway_ByeUnregisters(t *testing.T) {
	mc := withMockClient(t)
	reg := registry.New()
	gw := newGateway(t, mc, reg, staticVerifier{
		"tok-1": {UserID: "user-1", Role: model.RoleHospital},
	})

	gw.onHello(nil, mockMessage{[]byte(`{"client_id":"conn-1","credential":"tok-1"}`)})
	if reg.Len() != 1 {
		t.Fatalf("expected registered connection")
	}

	gw.onBye(nil, mockMessage{[]byte(`{"client_id":"conn-1"}`)})
	if reg.Len() != 0 {
		t.Fatalf("expected connection removed")
	}

	// unknown id is a no-op
	gw.onBye(nil, mockMessage{[]byte(`{"client_id":"ghost"}`)})
}

func TestGateway_MalformedHelloIgnored(t *testing.T) {
	mc := withMockClient(t)
	reg := registry.New()
	gw := newGateway(t, mc, reg, staticVerifier{})

	gw.onHello(nil, mockMessage{[]byte(`not json`)})
	gw.onHello(nil, mockMessage{[]byte(`{"credential":"tok-1"}`)})

	if reg.Len() != 0 || len(mc.published) != 0 {
		t.Fatalf("malformed hello must neither register nor answer")
	}
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatalf("auth not set")
	}
}

func TestLWTConfigured(t *testing.T) {
	mc := withMockClient(t)
	_, err := NewGateway(Config{
		Broker: "tcp://localhost:1883", ClientID: "id",
		LWTTopic: "lwt", LWTPayload: "bye", LWTQoS: 1,
	}, registry.New(), staticVerifier{}, nil)
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	if !mc.opts.WillEnabled {
		t.Fatalf("will not enabled")
	}
	if mc.opts.WillTopic != "lwt" || string(mc.opts.WillPayload) != "bye" {
		t.Fatalf("will options incorrect")
	}
}

// mockClient implements pahoClient for tests
type mockClient struct {
	opts       *paho.ClientOptions
	subscribed []struct {
		topic string
		qos   byte
	}
	published []struct {
		topic   string
		qos     byte
		payload []byte
	}
	publishErrs []error
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	var raw []byte
	switch p := payload.(type) {
	case []byte:
		raw = p
	case string:
		raw = []byte(p)
	default:
		raw = []byte(fmt.Sprintf("%v", p))
	}
	m.published = append(m.published, struct {
		topic   string
		qos     byte
		payload []byte
	}{topic, qos, raw})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, _ paho.MessageHandler) paho.Token {
	m.subscribed = append(m.subscribed, struct {
		topic string
		qos   byte
	}{topic, qos})
	return &dummyToken{}
}

func (m *mockClient) IsConnectionOpen() bool { return true }
func (m *mockClient) SubscribeMultiple(filters map[string]byte, cb paho.MessageHandler) paho.Token {
	for topic, qos := range filters {
		m.Subscribe(topic, qos, cb)
	}
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler) {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader {
	return paho.ClientOptionsReader{}
}

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct{ p []byte }

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return "" }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
