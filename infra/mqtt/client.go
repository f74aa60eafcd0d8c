package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/fieldassign/core/commit"
	"github.com/kilianp07/fieldassign/infra/logger"
)

const (
	// DefaultAckTopic is where engineer devices acknowledge assignment orders.
	DefaultAckTopic = "assignment/ack"
	// DefaultAckTimeout bounds the wait for an acknowledgment.
	DefaultAckTimeout = 5 * time.Second
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker       string          `json:"broker"`
	ClientID     string          `json:"client_id"`
	Username     string          `json:"username"`
	Password     string          `json:"password"`
	AckTopic     string          `json:"ack_topic"`
	AckTimeoutMS int             `json:"ack_timeout_ms"`
	UseTLS       bool            `json:"use_tls"`
	ClientCert   string          `json:"client_cert"`
	ClientKey    string          `json:"client_key"`
	CABundle     string          `json:"ca_bundle"`
	AuthMethod   string          `json:"auth_method"`
	QoS          map[string]byte `json:"qos"`
	LWTTopic     string          `json:"lwt_topic"`
	LWTPayload   string          `json:"lwt_payload"`
	LWTQoS       byte            `json:"lwt_qos"`
	LWTRetain    bool            `json:"lwt_retain"`
	TLSConfig    *tls.Config     `json:"-"`
}

func (c Config) qos(kind string) byte {
	if q, ok := c.QoS[kind]; ok {
		return q
	}
	return 0
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

// Order is the payload published to an engineer's assignment topic.
type Order struct {
	CommandID  string `json:"command_id"`
	CallID     string `json:"call_id"`
	EngineerID string `json:"engineer_id"`
	ActorID    string `json:"actor_id"`
	Reason     string `json:"reason"`
	Timestamp  int64  `json:"timestamp"`
}

// Ack is the acknowledgment expected on the ack topic.
type Ack struct {
	CommandID string `json:"command_id"`
	Accepted  bool   `json:"accepted"`
	Error     string `json:"error,omitempty"`
}

// OrderTopic returns the topic assignment orders for an engineer go to.
func OrderTopic(engineerID string) string {
	return fmt.Sprintf("engineer/%s/assignment", engineerID)
}

// PahoCommitter implements commit.Committer by publishing an Order and
// waiting for its Ack. A failed publish is not retried.
type PahoCommitter struct {
	cli        pahoClient
	cfg        Config
	ackTimeout time.Duration

	mu       sync.Mutex
	ackChans map[string]chan Ack
	logger   logger.Logger
}

// NewPahoCommitter connects to the MQTT broker and subscribes to the ACK topic.
func NewPahoCommitter(cfg Config) (*PahoCommitter, error) {
	if cfg.AckTopic == "" {
		cfg.AckTopic = DefaultAckTopic
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_committer")
	pc := &PahoCommitter{
		cfg:        cfg,
		ackTimeout: DefaultAckTimeout,
		ackChans:   make(map[string]chan Ack),
		logger:     log,
	}
	if cfg.AckTimeoutMS > 0 {
		pc.ackTimeout = time.Duration(cfg.AckTimeoutMS) * time.Millisecond
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if token := c.Subscribe(cfg.AckTopic, cfg.qos("ack"), pc.onAck); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
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
	pc.cli = c
	return pc, nil
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
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("ca bundle %s holds no certificate", c.CABundle)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (p *PahoCommitter) onAck(_ paho.Client, msg paho.Message) {
	var ack Ack
	if err := json.Unmarshal(msg.Payload(), &ack); err != nil {
		p.logger.Errorf("failed to decode ack: %v", err)
		return
	}
	p.mu.Lock()
	ch, ok := p.ackChans[ack.CommandID]
	p.mu.Unlock()
	if !ok {
		p.logger.Debugf("ignoring ack for unknown command %s", ack.CommandID)
		return
	}
	select {
	case ch <- ack:
	default:
	}
}

// Commit publishes the assignment order and blocks until it is acknowledged,
// the ack timeout expires or ctx ends.
func (p *PahoCommitter) Commit(ctx context.Context, req commit.Request) error {
	cmdID := uuid.NewString()
	payload, err := json.Marshal(Order{
		CommandID:  cmdID,
		CallID:     req.CallID,
		EngineerID: req.EngineerID,
		ActorID:    req.ActorID,
		Reason:     req.Reason,
		Timestamp:  time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}

	// Register before publishing so a fast ack is not lost.
	ch := make(chan Ack, 1)
	p.mu.Lock()
	p.ackChans[cmdID] = ch
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.ackChans, cmdID)
		p.mu.Unlock()
	}()

	topic := OrderTopic(req.EngineerID)
	token := p.cli.Publish(topic, p.cfg.qos("command"), false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		p.logger.Errorf("publish of call %s to %s failed: %v", req.CallID, topic, err)
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	p.logger.Infof("sent assignment %s (call %s) to %s", cmdID, req.CallID, topic)

	timer := time.NewTimer(p.ackTimeout)
	defer timer.Stop()
	select {
	case ack := <-ch:
		if !ack.Accepted {
			if ack.Error != "" {
				return fmt.Errorf("%w: %s", commit.ErrRejected, ack.Error)
			}
			return commit.ErrRejected
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("command %s: %w", cmdID, commit.ErrAckTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoCommitter) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
