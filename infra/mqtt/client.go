// Package mqtt streams simulation results to an MQTT broker.
package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremetrics "github.com/kilianp07/heatsim/core/metrics"
	"github.com/kilianp07/heatsim/core/model"
	"github.com/kilianp07/heatsim/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string          `json:"broker"`
	ClientID    string          `json:"client_id"`
	Username    string          `json:"username"`
	Password    string          `json:"password"`
	TopicPrefix string          `json:"topic_prefix"`
	UseTLS      bool            `json:"use_tls"`
	ClientCert  string          `json:"client_cert"`
	ClientKey   string          `json:"client_key"`
	CABundle    string          `json:"ca_bundle"`
	QoS         map[string]byte `json:"qos"`
	LWTTopic    string          `json:"lwt_topic"`
	LWTPayload  string          `json:"lwt_payload"`
	LWTQoS      byte            `json:"lwt_qos"`
	LWTRetain   bool            `json:"lwt_retain"`
	MaxRetries  int             `json:"max_retries"`
	BackoffMS   int             `json:"backoff_ms"`
	TLSConfig   *tls.Config     `json:"-"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "heatsim"
	}
	if c.ClientID == "" {
		c.ClientID = "heatsim"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

// Validate checks the broker address.
func (c Config) Validate() error {
	if c.Broker == "" {
		return errors.New("mqtt: broker is required")
	}
	return nil
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// Publisher publishes step results, run summaries and batch progress.
// It implements the metrics sink interfaces so it can be configured as a sink.
type Publisher struct {
	cli        pahoClient
	prefix     string
	qos        map[string]byte
	maxRetries int
	backoff    time.Duration
	logger     logger.Logger

	mu       sync.Mutex
	onCancel func()
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPublisher connects to the broker and subscribes to the control topic.
func NewPublisher(cfg Config) (*Publisher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_publisher")
	p := &Publisher{
		prefix:     cfg.TopicPrefix,
		qos:        cfg.QoS,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		logger:     log,
	}
	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if token := c.Subscribe(p.ControlTopic(), p.qosFor("control"), p.onControl); token.Wait() && token.Error() != nil {
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
	p.cli = c
	return p, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
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
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// ControlTopic receives {"command":"cancel"} to stop running simulations.
func (p *Publisher) ControlTopic() string { return p.prefix + "/control" }

// StepTopic is where step results of a scenario are published.
func (p *Publisher) StepTopic(scenario string) string {
	return fmt.Sprintf("%s/%s/step", p.prefix, scenario)
}

// SummaryTopic holds the retained summary of the last run of a scenario.
func (p *Publisher) SummaryTopic(scenario string) string {
	return fmt.Sprintf("%s/%s/summary", p.prefix, scenario)
}

// StatusTopic carries batch progress events of a scenario.
func (p *Publisher) StatusTopic(scenario string) string {
	return fmt.Sprintf("%s/%s/status", p.prefix, scenario)
}

// OnCancel registers fn to be called when a cancel command arrives.
func (p *Publisher) OnCancel(fn func()) {
	p.mu.Lock()
	p.onCancel = fn
	p.mu.Unlock()
}

func (p *Publisher) onControl(_ paho.Client, msg paho.Message) {
	var m struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		p.logger.Errorf("failed to decode control message: %v", err)
		return
	}
	if m.Command != "cancel" {
		p.logger.Warnf("unknown control command %q", m.Command)
		return
	}
	p.mu.Lock()
	fn := p.onCancel
	p.mu.Unlock()
	if fn != nil {
		p.logger.Infof("cancel requested over mqtt")
		fn()
	}
}

func (p *Publisher) qosFor(kind string) byte {
	if q, ok := p.qos[kind]; ok {
		return q
	}
	return 0
}

// publish sends payload as JSON, retrying with exponential backoff.
func (p *Publisher) publish(topic, kind string, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	qos := p.qosFor(kind)
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, retained, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		p.logger.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	return publishErr
}

type stepMessage struct {
	RunID  string               `json:"run_id"`
	Result model.TimestepResult `json:"result"`
}

// RecordSteps publishes one message per step in order.
func (p *Publisher) RecordSteps(runID, scenario string, results []model.TimestepResult) error {
	topic := p.StepTopic(scenario)
	for _, r := range results {
		if err := p.publish(topic, "step", false, stepMessage{RunID: runID, Result: r}); err != nil {
			return err
		}
	}
	return nil
}

type summaryMessage struct {
	RunID   string        `json:"run_id"`
	Phase   string        `json:"phase"`
	Summary model.Summary `json:"summary"`
	Time    int64         `json:"timestamp"`
}

// RecordRun publishes the run summary as a retained message.
func (p *Publisher) RecordRun(rec coremetrics.RunRecord) error {
	return p.publish(p.SummaryTopic(rec.Scenario), "summary", true, summaryMessage{
		RunID:   rec.RunID,
		Phase:   rec.Phase,
		Summary: rec.Summary,
		Time:    rec.Time.UnixMilli(),
	})
}

// RecordProgress publishes a batch progress event.
func (p *Publisher) RecordProgress(ev coremetrics.ProgressEvent) error {
	return p.publish(p.StatusTopic(ev.Scenario), "status", false, struct {
		RunID string `json:"run_id,omitempty"`
		Phase string `json:"phase"`
		Steps int    `json:"steps"`
		Err   string `json:"error,omitempty"`
	}{ev.RunID, ev.Phase, ev.Steps, ev.Err})
}

// Disconnect gracefully closes the MQTT connection.
func (p *Publisher) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
