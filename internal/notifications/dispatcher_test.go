package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestTopics(t *testing.T) (*pubsub.Topic, *pubsub.Topic, *pstest.Server) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	notifications, err := client.CreateTopic(ctx, "order-notifications")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	jobs, err := client.CreateTopic(ctx, "fulfillment-jobs")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	return notifications, jobs, srv
}

func TestPubSubDispatcherDispatch(t *testing.T) {
	notifTopic, jobsTopic, srv := newTestTopics(t)

	dispatcher, err := NewPubSubDispatcher(notifTopic, jobsTopic)
	if err != nil {
		t.Fatalf("NewPubSubDispatcher: %v", err)
	}

	msg := Message{
		Kind:           KindOrderPaid,
		OrderID:        "ord_1",
		OrderNumber:    "HD-2026-000003",
		RecipientEmail: "ana@example.com",
		RecipientName:  "Ana",
		OccurredAt:     time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC),
	}
	if _, err := dispatcher.Dispatch(context.Background(), msg); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	var payload Message
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Kind != KindOrderPaid || payload.OrderID != "ord_1" {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["kind"]; attr != "order.paid" {
		t.Fatalf("kind attribute = %q", attr)
	}
}

func TestPubSubDispatcherRejectsEmptyKind(t *testing.T) {
	notifTopic, jobsTopic, _ := newTestTopics(t)
	dispatcher, err := NewPubSubDispatcher(notifTopic, jobsTopic)
	if err != nil {
		t.Fatalf("NewPubSubDispatcher: %v", err)
	}
	if _, err := dispatcher.Dispatch(context.Background(), Message{OrderID: "ord_1"}); err == nil {
		t.Fatal("expected error for missing kind")
	}
}

func TestPubSubDispatcherEnqueueResolveTracking(t *testing.T) {
	notifTopic, jobsTopic, srv := newTestTopics(t)
	dispatcher, err := NewPubSubDispatcher(notifTopic, jobsTopic)
	if err != nil {
		t.Fatalf("NewPubSubDispatcher: %v", err)
	}

	job := ResolveTrackingJob{
		OrderID:    "ord_2",
		ShipmentID: "shp_9",
		EnqueuedAt: time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC),
	}
	if _, err := dispatcher.EnqueueResolveTracking(context.Background(), job); err != nil {
		t.Fatalf("EnqueueResolveTracking: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if attr := messages[0].Attributes["jobType"]; attr != "resolveTracking" {
		t.Fatalf("jobType attribute = %q", attr)
	}
	var payload ResolveTrackingJob
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.ShipmentID != "shp_9" {
		t.Fatalf("unexpected payload %#v", payload)
	}
}
