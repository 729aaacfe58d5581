package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
)

// Kind names the customer-facing notification templates.
type Kind string

const (
	// KindOrderConfirmed is sent when the order is created.
	KindOrderConfirmed Kind = "order.confirmed"
	// KindOrderPaid is sent when the payment is approved.
	KindOrderPaid Kind = "order.paid"
	// KindOrderCancelled is sent when the payment is rejected or the order cancelled.
	KindOrderCancelled Kind = "order.cancelled"
	// KindOrderShipped is sent when pickup is requested and a carrier
	// tracking code exists. Suppressed while only the protocol id is known.
	KindOrderShipped Kind = "order.shipped"
)

// Message is the notification payload published for the delivery worker.
type Message struct {
	Kind           Kind              `json:"kind"`
	OrderID        string            `json:"orderId"`
	OrderNumber    string            `json:"orderNumber"`
	RecipientEmail string            `json:"recipientEmail"`
	RecipientName  string            `json:"recipientName"`
	Data           map[string]string `json:"data,omitempty"`
	OccurredAt     time.Time         `json:"occurredAt"`
}

// ResolveTrackingJob asks the background worker to retry tracking-code
// resolution for a shipment that only has a protocol id.
type ResolveTrackingJob struct {
	OrderID    string    `json:"orderId"`
	ShipmentID string    `json:"shipmentId"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

type topicPublisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// PubSubDispatcher publishes notifications and background jobs to Pub/Sub
// topics. Delivery to the customer happens out of process.
type PubSubDispatcher struct {
	notifications topicPublisher
	jobs          topicPublisher
	marshal       func(any) ([]byte, error)
}

// NewPubSubDispatcher constructs a dispatcher over the two topics.
func NewPubSubDispatcher(notifications, jobs *pubsub.Topic) (*PubSubDispatcher, error) {
	if notifications == nil {
		return nil, errors.New("pubsub dispatcher: notifications topic is required")
	}
	if jobs == nil {
		return nil, errors.New("pubsub dispatcher: jobs topic is required")
	}
	return &PubSubDispatcher{
		notifications: notifications,
		jobs:          jobs,
		marshal:       json.Marshal,
	}, nil
}

// Dispatch publishes a customer notification message.
func (d *PubSubDispatcher) Dispatch(ctx context.Context, message Message) (string, error) {
	if d == nil || d.notifications == nil {
		return "", errors.New("pubsub dispatcher: not initialised")
	}
	if message.Kind == "" {
		return "", errors.New("pubsub dispatcher: notification kind is required")
	}

	data, err := d.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal notification: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "kind", string(message.Kind))
	setAttr(attrs, "orderId", message.OrderID)
	setAttr(attrs, "orderNumber", message.OrderNumber)

	result := d.notifications.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish notification: %w", err)
	}
	return id, nil
}

// EnqueueResolveTracking publishes a tracking-resolution job.
func (d *PubSubDispatcher) EnqueueResolveTracking(ctx context.Context, job ResolveTrackingJob) (string, error) {
	if d == nil || d.jobs == nil {
		return "", errors.New("pubsub dispatcher: not initialised")
	}
	if strings.TrimSpace(job.OrderID) == "" {
		return "", errors.New("pubsub dispatcher: order id is required")
	}

	data, err := d.marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal resolve-tracking job: %w", err)
	}

	attrs := map[string]string{"jobType": "resolveTracking"}
	setAttr(attrs, "orderId", job.OrderID)
	setAttr(attrs, "shipmentId", job.ShipmentID)

	result := d.jobs.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish resolve-tracking job: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
