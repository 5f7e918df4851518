// Package mqtt implements the realtime gateway over Eclipse Paho. Clients
// handshake on a shared hello topic and afterwards receive their events on a
// per-client topic. The wire protocol is JSON envelopes of the form
// {"event": ..., "payload": ...}.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/aidline/aidline/core/auth"
	"github.com/aidline/aidline/core/model"
	"github.com/aidline/aidline/core/registry"
	"github.com/aidline/aidline/core/router"
	"github.com/aidline/aidline/infra/logger"
)

const (
	helloTopic     = "aidline/conn/hello"
	byeTopic       = "aidline/conn/bye"
	eventsTopicFmt = "aidline/conn/%s/events"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker     string          `json:"broker"`
	ClientID   string          `json:"client_id"`
	Username   string          `json:"username"`
	Password   string          `json:"password"`
	UseTLS     bool            `json:"use_tls"`
	ClientCert string          `json:"client_cert"`
	ClientKey  string          `json:"client_key"`
	CABundle   string          `json:"ca_bundle"`
	AuthMethod string          `json:"auth_method"`
	QoS        map[string]byte `json:"qos"`
	LWTTopic   string          `json:"lwt_topic"`
	LWTPayload string          `json:"lwt_payload"`
	LWTQoS     byte            `json:"lwt_qos"`
	LWTRetain  bool            `json:"lwt_retain"`
	TLSConfig  *tls.Config     `json:"-"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Gateway bridges the MQTT broker and the connection registry. Every
// successful handshake registers a connection; a failed one answers with an
// error event on the would-be events topic and registers nothing.
type Gateway struct {
	cli      pahoClient
	reg      *registry.Registry
	verifier auth.Verifier
	svc      CaseService
	qos      map[string]byte
	logger   logger.Logger
}

// NewGateway connects to the broker and subscribes to the handshake and
// request topics. svc may be nil; the gateway then only manages connections.
func NewGateway(cfg Config, reg *registry.Registry, verifier auth.Verifier, svc CaseService) (*Gateway, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt-gateway")
	g := &Gateway{
		reg:      reg,
		verifier: verifier,
		svc:      svc,
		qos:      cfg.QoS,
		logger:   log,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		qos := g.topicQoS("handshake")
		if token := c.Subscribe(helloTopic, qos, g.onHello); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
		if token := c.Subscribe(byeTopic, qos, g.onBye); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
		if g.svc != nil {
			if token := c.Subscribe(requestTopic, g.topicQoS("request"), g.onRequest); token.Wait() && token.Error() != nil {
				log.Errorf("subscribe error: %v", token.Error())
			}
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	g.cli = c
	return g, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

func (g *Gateway) topicQoS(key string) byte {
	if q, ok := g.qos[key]; ok {
		return q
	}
	return 0
}

type helloMessage struct {
	ClientID   string `json:"client_id"`
	Credential string `json:"credential"`
}

type byeMessage struct {
	ClientID string `json:"client_id"`
}

type envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

func (g *Gateway) onHello(_ paho.Client, msg paho.Message) {
	var m helloMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		g.logger.Errorf("failed to decode hello: %v", err)
		return
	}
	if m.ClientID == "" {
		g.logger.Errorf("hello without client_id ignored")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	id, err := g.verifier.Verify(ctx, m.Credential)
	if err != nil {
		g.logger.Warnf("handshake rejected for %s: %v", m.ClientID, err)
		g.publish(m.ClientID, router.EventError, map[string]string{"reason": err.Error()})
		return
	}
	conn := &mqttConn{id: m.ClientID, identity: id, gw: g}
	g.reg.Register(conn)
	g.logger.Infof("connection %s registered for user %s role %s", m.ClientID, id.UserID, id.Role)
}

func (g *Gateway) onBye(_ paho.Client, msg paho.Message) {
	var m byeMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		g.logger.Errorf("failed to decode bye: %v", err)
		return
	}
	g.reg.Unregister(m.ClientID)
	g.logger.Infof("connection %s unregistered", m.ClientID)
}

func (g *Gateway) publish(clientID, event string, payload any) error {
	env, err := json.Marshal(envelope{Event: event, Payload: payload})
	if err != nil {
		return err
	}
	topic := fmt.Sprintf(eventsTopicFmt, clientID)
	token := g.cli.Publish(topic, g.topicQoS("events"), false, env)
	token.Wait()
	return token.Error()
}

// Disconnect gracefully closes the MQTT connection.
func (g *Gateway) Disconnect() {
	if g.cli != nil && g.cli.IsConnected() {
		g.cli.Disconnect(250)
	}
}

// mqttConn is one registered client. Send publishes to the client's events
// topic.
type mqttConn struct {
	id       string
	identity model.Identity
	gw       *Gateway
}

func (c *mqttConn) ID() string               { return c.id }
func (c *mqttConn) Identity() model.Identity { return c.identity }

func (c *mqttConn) Send(event string, payload any) error {
	return c.gw.publish(c.id, event, payload)
}
