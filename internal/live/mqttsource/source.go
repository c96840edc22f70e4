// Package mqttsource delivers push telemetry over MQTT. The wearable
// bridge publishes JSON batches to vitals/{userID}/telemetry; each batch
// is an array of samples with millisecond timestamps.
package mqttsource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/momentum-health/vitalsync/internal/live"
)

const (
	connectTimeout    = 10 * time.Second
	disconnectQuiesce = 250 // milliseconds granted to in-flight messages
	batchBuffer       = 32
	subscribeQoS      = 1
)

// Config holds broker connection settings.
type Config struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
}

// Source implements live.TelemetrySource over an MQTT subscription.
type Source struct {
	cfg Config

	mu     sync.Mutex
	client mqtt.Client
	topic  string
}

type wireSample struct {
	Type        string  `json:"type"`
	Value       float64 `json:"value"`
	TimestampMs int64   `json:"timestamp_ms"`
	Source      string  `json:"source"`
}

// New creates an MQTT telemetry source. The connection is established on
// StartStreaming, not here.
func New(cfg Config) *Source {
	if cfg.BrokerURL == "" {
		panic("mqttsource: broker URL is required")
	}
	return &Source{cfg: cfg}
}

// StartStreaming connects to the broker and subscribes to the user's
// telemetry topic. The returned channel closes when ctx is cancelled or
// the source is stopped.
func (s *Source) StartStreaming(ctx context.Context, userID string) (<-chan []live.TelemetryMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return nil, fmt.Errorf("telemetry stream already active on topic %s", s.topic)
	}

	topic := fmt.Sprintf("vitals/%s/telemetry", userID)
	batches := make(chan []live.TelemetryMessage, batchBuffer)

	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.BrokerURL).
		SetClientID(clientID(s.cfg.ClientID)).
		SetUsername(s.cfg.Username).
		SetPassword(s.cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(func(c mqtt.Client) {
			// Resubscribe on every (re)connect so reconnects resume delivery.
			token := c.Subscribe(topic, subscribeQoS, func(_ mqtt.Client, msg mqtt.Message) {
				s.handleMessage(ctx, batches, msg.Payload())
			})
			if token.Wait() && token.Error() != nil {
				slog.Error("[MQTT] Failed to subscribe", "topic", topic, "error", token.Error())
				return
			}
			slog.Info("[MQTT] Subscribed", "topic", topic)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			slog.Warn("[MQTT] Connection lost, reconnecting", "error", err)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("timed out connecting to broker %s", s.cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to broker %s: %w", s.cfg.BrokerURL, err)
	}

	s.client = client
	s.topic = topic

	go func() {
		<-ctx.Done()
		s.StopStreaming()
		close(batches)
	}()

	return batches, nil
}

// StopStreaming unsubscribes and disconnects. Safe without a prior start.
func (s *Source) StopStreaming() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return
	}

	s.client.Unsubscribe(s.topic)
	s.client.Disconnect(disconnectQuiesce)
	s.client = nil
	s.topic = ""
	slog.Info("[MQTT] Disconnected")
}

func (s *Source) handleMessage(ctx context.Context, batches chan<- []live.TelemetryMessage, payload []byte) {
	var raw []wireSample
	if err := json.Unmarshal(payload, &raw); err != nil {
		slog.Warn("[MQTT] Discarding malformed telemetry payload", "error", err)
		return
	}
	if len(raw) == 0 {
		return
	}

	batch := make([]live.TelemetryMessage, len(raw))
	for i, sample := range raw {
		batch[i] = live.TelemetryMessage{
			Type:      sample.Type,
			Value:     sample.Value,
			Timestamp: time.UnixMilli(sample.TimestampMs).UTC(),
			Source:    sample.Source,
		}
	}

	select {
	case batches <- batch:
	case <-ctx.Done():
	}
}

// clientID appends a random suffix so parallel app sessions never collide
// on the broker.
func clientID(base string) string {
	if base == "" {
		base = "vitalsync"
	}
	return base + "-" + uuid.NewString()[:8]
}
