// Package emitter publishes expression events to an MQTT broker.
package emitter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/teslashibe/go-facesense/internal/config"
	"github.com/teslashibe/go-facesense/internal/log"
	"github.com/teslashibe/go-facesense/pkg/expression"
	"github.com/teslashibe/go-facesense/pkg/pipeline"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrNotConnected is reported while the broker is unreachable.
	ErrNotConnected = errors.New("mqtt not connected")

	// ErrQueueFull is returned by Publish when the sender is backed up.
	ErrQueueFull = errors.New("mqtt publish queue full")

	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("mqtt emitter closed")
)

const (
	publishTimeout = 2 * time.Second
	queueSize      = 256
)

// EventMessage is the payload of one published event.
type EventMessage struct {
	Subject   string           `json:"subject"`
	Event     expression.Event `json:"event"`
	Seq       uint64           `json:"seq"`
	Timestamp time.Time        `json:"timestamp"`
	State     expression.State `json:"state"`
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"`
	Errors    uint64            `json:"errors"`
}

// MQTTEmitter is a pipeline.Sink that publishes one message per fired event
type MQTTEmitter struct {
	cfg    config.MQTTConfig
	client mqtt.Client

	// Results wait here for the sender goroutine, in tick order.
	queue chan pipeline.Result
	wg    sync.WaitGroup

	mu        sync.RWMutex
	published map[string]uint64 // count per topic
	errors    uint64
	connected bool
	closed    bool
}

// New creates an emitter and starts its sender. Call Connect before
// events can reach the broker and Close to stop the sender.
func New(cfg config.MQTTConfig) *MQTTEmitter {
	if cfg.Topic == "" {
		cfg.Topic = config.DefaultMQTTTopic
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "facesense-" + uuid.NewString()[:8]
	}
	e := &MQTTEmitter{
		cfg:       cfg,
		queue:     make(chan pipeline.Result, queueSize),
		published: make(map[string]uint64),
	}
	e.wg.Add(1)
	go e.run()
	return e
}

// Connect starts the broker connection. If the broker does not answer
// within ConnectTimeout the emitter starts disconnected and the client
// keeps retrying in the background; events are counted as errors until
// it connects. An error the client reports before the timeout is returned.
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker("tcp://" + e.cfg.Broker)
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		e.setConnected(true)
		log.Info("mqtt connection established", "broker", e.cfg.Broker, "client_id", e.cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		e.setConnected(false)
		log.Warn("mqtt connection lost, will auto-reconnect", "broker", e.cfg.Broker, "error", err)
	}

	e.client = mqtt.NewClient(opts)
	log.Info("connecting to mqtt broker", "broker", e.cfg.Broker)

	token := e.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(e.cfg.ConnectTimeout):
		log.Warn("mqtt broker not reachable, starting disconnected",
			"broker", e.cfg.Broker, "timeout", e.cfg.ConnectTimeout)
		return nil
	case <-ctx.Done():
		e.client.Disconnect(0)
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		e.client.Disconnect(0)
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.setConnected(true)
	return nil
}

// Publish queues r for sending and returns without waiting for the
// broker. Results without events are ignored.
func (e *MQTTEmitter) Publish(_ context.Context, r pipeline.Result) error {
	if !hasEvents(r) {
		return nil
	}

	// The read lock keeps Close from closing the queue mid-send.
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return ErrClosed
	}
	select {
	case e.queue <- r:
		e.mu.RUnlock()
		return nil
	default:
	}
	e.mu.RUnlock()

	e.countError()
	return ErrQueueFull
}

// run sends queued results until the queue is closed.
func (e *MQTTEmitter) run() {
	defer e.wg.Done()
	for r := range e.queue {
		if err := e.send(r); err != nil {
			log.Warn("mqtt publish failed", "seq", r.Seq, "error", err)
		}
	}
}

// send publishes every event in r to <topic>/<subject>.
func (e *MQTTEmitter) send(r pipeline.Result) error {
	var errs []error
	for _, face := range r.Faces {
		for _, ev := range face.Events {
			msg := EventMessage{
				Subject:   face.Subject,
				Event:     ev,
				Seq:       r.Seq,
				Timestamp: r.Timestamp,
				State:     face.Counts.State,
			}
			if err := e.publish(e.Topic(face.Subject), msg); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (e *MQTTEmitter) publish(topic string, msg EventMessage) error {
	if !e.isConnected() {
		e.countError()
		return ErrNotConnected
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		e.countError()
		return fmt.Errorf("marshal event: %w", err)
	}

	token := e.client.Publish(topic, e.cfg.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		e.countError()
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	log.Debug("event published", "topic", topic, "event", msg.Event.String(), "size", len(payload))
	return nil
}

// Topic returns the topic events for subject are published on. MQTT
// wildcard characters in the subject are replaced.
func (e *MQTTEmitter) Topic(subject string) string {
	clean := strings.NewReplacer("+", "_", "#", "_").Replace(subject)
	if clean == "" {
		clean = "_"
	}
	return e.cfg.Topic + "/" + clean
}

// Close sends what is already queued, then disconnects from the broker.
func (e *MQTTEmitter) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	e.wg.Wait()

	if e.client != nil {
		e.client.Disconnect(250)
		log.Info("mqtt disconnected")
	}
	e.setConnected(false)
	return nil
}

// Stats returns emitter statistics
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return Stats{
		Connected: e.connected,
		Published: published,
		Errors:    e.errors,
	}
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func hasEvents(r pipeline.Result) bool {
	for _, f := range r.Faces {
		if len(f.Events) > 0 {
			return true
		}
	}
	return false
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
