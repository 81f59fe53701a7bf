package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kiosk-sync/internal/errs"
	"kiosk-sync/internal/models"
	"kiosk-sync/pkg/metrics"
	mqttcommon "kiosk-sync/pkg/mqtt"
)

// SyncEngine is the slice of the sync engine the router dispatches to.
type SyncEngine interface {
	UpsertLayout(ctx context.Context, exhibitionID, layoutID uuid.UUID) error
	UpsertPage(ctx context.Context, exhibitionID, pageID uuid.UUID) error
	RemoveLayout(ctx context.Context, layoutID uuid.UUID) error
	RemovePage(ctx context.Context, pageID uuid.UUID) error
}

// Subscriber is the push transport surface the consumer uses.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// MQTTConsumer subscribes the fixed topic set and routes typed event
// envelopes to the sync engine or the session subsystem. The transport
// delivers at-least-once; routing stays idempotent because the sync
// engine's upserts are.
type MQTTConsumer struct {
	subscriber   Subscriber
	engine       SyncEngine
	exhibitionID uuid.UUID
	groupID      uuid.UUID
	topicPrefix  string
	qos          byte
	logger       *zap.Logger

	// onGroupEvent fires for device-group triggers addressed to this
	// device's group; onAntennaChange fires after any antenna mutation.
	onGroupEvent    func(event models.DeviceGroupEvent)
	onAntennaChange func()
}

func NewMQTTConsumer(
	subscriber Subscriber,
	engine SyncEngine,
	exhibitionID uuid.UUID,
	topicPrefix string,
	qos byte,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		subscriber:   subscriber,
		engine:       engine,
		exhibitionID: exhibitionID,
		topicPrefix:  topicPrefix,
		qos:          qos,
		logger:       logger,
	}
}

// SetGroupID sets the device group used to filter group triggers. Call
// before Start.
func (c *MQTTConsumer) SetGroupID(groupID uuid.UUID) {
	c.groupID = groupID
}

// OnGroupEvent registers the device-group trigger callback. Call before Start.
func (c *MQTTConsumer) OnGroupEvent(fn func(event models.DeviceGroupEvent)) {
	c.onGroupEvent = fn
}

// OnAntennaChange registers the antenna-mutation callback. Call before Start.
func (c *MQTTConsumer) OnAntennaChange(fn func()) {
	c.onAntennaChange = fn
}

func (c *MQTTConsumer) topics() []string {
	base := fmt.Sprintf("%s/%s", c.topicPrefix, c.exhibitionID)
	var topics []string
	for _, kind := range []string{"pages", "layouts", "rfidantennas"} {
		for _, action := range []string{"create", "update", "delete"} {
			topics = append(topics, fmt.Sprintf("%s/%s/%s", base, kind, action))
		}
	}
	topics = append(topics, base+"/devicegroups/events")
	return topics
}

// Start subscribes the topic set and blocks until ctx is cancelled.
func (c *MQTTConsumer) Start(ctx context.Context) error {
	for _, topic := range c.topics() {
		if err := c.subscriber.Subscribe(topic, c.qos, c.handleMessage); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
	}

	c.logger.Info("Push listener started",
		zap.String("prefix", c.topicPrefix),
		zap.String("exhibition_id", c.exhibitionID.String()),
	)

	<-ctx.Done()
	return nil
}

// Stop unsubscribes the topic set.
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	if err := c.subscriber.Unsubscribe(c.topics()...); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	c.logger.Info("Push listener stopped")
	return nil
}

// handleMessage decodes and routes one raw message. Decode failures and
// routed-action errors are logged and dropped; they never crash the
// listener loop, and a missed single-entity update is corrected by the
// next full resync.
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return &errs.ValidationError{Topic: topic, Err: fmt.Errorf("unexpected topic shape")}
	}
	kind := parts[len(parts)-2]
	action := parts[len(parts)-1]

	if kind == "devicegroups" {
		return c.handleGroupEvent(topic, payload)
	}

	var event models.EntityEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		metrics.PushMessages.WithLabelValues(kind, "dropped").Inc()
		return &errs.ValidationError{Topic: topic, Err: err}
	}
	if event.ID == uuid.Nil {
		metrics.PushMessages.WithLabelValues(kind, "dropped").Inc()
		return &errs.ValidationError{Topic: topic, Err: fmt.Errorf("missing entity id")}
	}
	if event.ExhibitionID != c.exhibitionID {
		// Not our exhibition: a no-op, not an error.
		metrics.PushMessages.WithLabelValues(kind, "skipped").Inc()
		return nil
	}

	ctx := context.Background()
	var err error
	switch {
	case kind == "pages" && (action == "create" || action == "update"):
		err = c.engine.UpsertPage(ctx, event.ExhibitionID, event.ID)
	case kind == "pages" && action == "delete":
		err = c.engine.RemovePage(ctx, event.ID)
	case kind == "layouts" && (action == "create" || action == "update"):
		err = c.engine.UpsertLayout(ctx, event.ExhibitionID, event.ID)
	case kind == "layouts" && action == "delete":
		err = c.engine.RemoveLayout(ctx, event.ID)
	case kind == "rfidantennas":
		if c.onAntennaChange != nil {
			c.onAntennaChange()
		}
	default:
		metrics.PushMessages.WithLabelValues(kind, "dropped").Inc()
		return &errs.ValidationError{Topic: topic, Err: fmt.Errorf("unknown route")}
	}

	if err != nil {
		metrics.PushMessages.WithLabelValues(kind, "failed").Inc()
		return fmt.Errorf("routing %s/%s: %w", kind, action, err)
	}
	metrics.PushMessages.WithLabelValues(kind, "handled").Inc()
	return nil
}

func (c *MQTTConsumer) handleGroupEvent(topic string, payload []byte) error {
	var event models.DeviceGroupEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		metrics.PushMessages.WithLabelValues("devicegroups", "dropped").Inc()
		return &errs.ValidationError{Topic: topic, Err: err}
	}
	if event.ExhibitionID != c.exhibitionID || event.GroupID != c.groupID {
		metrics.PushMessages.WithLabelValues("devicegroups", "skipped").Inc()
		return nil
	}

	if c.onGroupEvent != nil {
		c.onGroupEvent(event)
	}
	metrics.PushMessages.WithLabelValues("devicegroups", "handled").Inc()
	return nil
}
