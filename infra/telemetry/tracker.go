package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/fieldassign/core/model"
	"github.com/kilianp07/fieldassign/infra/logger"
	infmqtt "github.com/kilianp07/fieldassign/infra/mqtt"
)

// DefaultTopicPrefix is the root of the per-engineer location topics.
const DefaultTopicPrefix = "engineer"

// Config holds configuration for the location tracker.
type Config struct {
	Enabled     bool   `json:"enabled"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
}

// Topic returns the subscription filter, e.g. engineer/+/location.
func (c Config) Topic() string {
	prefix := strings.TrimSuffix(c.TopicPrefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return prefix + "/+/location"
}

// Report is the latest known position of an engineer.
type Report struct {
	EngineerID string
	Location   model.Coordinates
	At         time.Time
}

var newMQTTClient = func(opts *paho.ClientOptions) paho.Client {
	return paho.NewClient(opts)
}

// LocationTracker keeps the newest position report per engineer and
// overlays it on directory engineers before scoring.
type LocationTracker struct {
	cfg Config
	cli paho.Client
	log logger.Logger
	now func() time.Time

	mu      sync.RWMutex
	reports map[string]Report

	received   prometheus.Counter
	rejected   prometheus.Counter
	lastReport prometheus.Gauge
}

// NewLocationTracker creates a tracker. Its collectors are registered on reg
// when it is not nil.
func NewLocationTracker(cfg Config, reg prometheus.Registerer) *LocationTracker {
	t := &LocationTracker{
		cfg:        cfg,
		log:        logger.New("telemetry"),
		now:        time.Now,
		reports:    make(map[string]Report),
		received:   prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_location_reports_total", Help: "Number of accepted engineer location reports"}),
		rejected:   prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_location_rejected_total", Help: "Number of location reports that could not be decoded"}),
		lastReport: prometheus.NewGauge(prometheus.GaugeOpts{Name: "telemetry_last_location_timestamp_seconds", Help: "Unix timestamp of the last accepted location report"}),
	}
	if reg != nil {
		reg.MustRegister(t.received, t.rejected, t.lastReport)
	}
	return t
}

// Connect opens a dedicated MQTT connection for the tracker.
func (t *LocationTracker) Connect(mqttCfg infmqtt.Config) error {
	opts, err := infmqtt.NewClientOptions(mqttCfg)
	if err != nil {
		return err
	}
	id := mqttCfg.ClientID
	if id != "" {
		id += "-telemetry"
	} else {
		id = "telemetry-" + uuid.NewString()
	}
	opts.SetClientID(id)
	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	t.cli = cli
	return nil
}

// Start subscribes to location reports and blocks until ctx is done.
func (t *LocationTracker) Start(ctx context.Context) error {
	if t.cli == nil {
		return fmt.Errorf("telemetry: not connected")
	}
	topic := t.cfg.Topic()
	if token := t.cli.Subscribe(topic, t.cfg.QoS, t.onReport); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	t.log.Infof("tracking engineer locations on %s", topic)
	<-ctx.Done()
	if t.cli.IsConnected() {
		t.cli.Disconnect(250)
	}
	return nil
}

func (t *LocationTracker) onReport(_ paho.Client, msg paho.Message) {
	if err := t.Process(msg.Payload(), msg.Topic()); err != nil {
		t.rejected.Inc()
		t.log.Warnf("location report on %s: %v", msg.Topic(), err)
	}
}

// engineerFromTopic extracts the id from <prefix>/<id>/location.
func engineerFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 2 && parts[len(parts)-1] == "location" {
		return parts[len(parts)-2]
	}
	return ""
}

// Process decodes one location report. Reports older than the one already
// held for the engineer are ignored.
func (t *LocationTracker) Process(payload []byte, topic string) error {
	var msg struct {
		EngineerID string   `json:"engineer_id"`
		Lat        *float64 `json:"lat"`
		Lng        *float64 `json:"lng"`
		TS         *int64   `json:"ts"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	if msg.EngineerID == "" {
		msg.EngineerID = engineerFromTopic(topic)
	}
	if msg.EngineerID == "" {
		return fmt.Errorf("no engineer id")
	}
	if msg.Lat == nil || msg.Lng == nil {
		return fmt.Errorf("missing coordinates")
	}
	if *msg.Lat < -90 || *msg.Lat > 90 || *msg.Lng < -180 || *msg.Lng > 180 {
		return fmt.Errorf("coordinates out of range: %v,%v", *msg.Lat, *msg.Lng)
	}
	at := t.now()
	if msg.TS != nil {
		at = time.Unix(*msg.TS, 0)
	}

	t.mu.Lock()
	prev, ok := t.reports[msg.EngineerID]
	if ok && prev.At.After(at) {
		t.mu.Unlock()
		return nil
	}
	t.reports[msg.EngineerID] = Report{
		EngineerID: msg.EngineerID,
		Location:   model.Coordinates{Lat: *msg.Lat, Lng: *msg.Lng},
		At:         at,
	}
	t.mu.Unlock()

	t.received.Inc()
	t.lastReport.Set(float64(at.Unix()))
	return nil
}

// Location returns the latest report for an engineer.
func (t *LocationTracker) Location(engineerID string) (Report, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.reports[engineerID]
	return r, ok
}

// Enrich replaces the engineer's live position when the tracker holds a
// newer report than the directory.
func (t *LocationTracker) Enrich(e *model.Engineer) {
	r, ok := t.Location(e.ID)
	if !ok {
		return
	}
	if e.LocationUpdatedAt != nil && !r.At.After(*e.LocationUpdatedAt) {
		return
	}
	loc := r.Location
	at := r.At
	e.Location = &loc
	e.LocationUpdatedAt = &at
}
