package jobs

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

	"github.com/duka-pos/api/internal/services"
)

func newTestClient(t *testing.T, srv *pstest.Server) *pubsub.Client {
	t.Helper()
	client, err := pubsub.NewClient(context.Background(), "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestPubSubEventPublisherPublishesSaleCompleted(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client := newTestClient(t, srv)

	saleTopic, err := client.CreateTopic(ctx, "sale-completed")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubEventPublisher(saleTopic, nil)
	if err != nil {
		t.Fatalf("NewPubSubEventPublisher: %v", err)
	}

	completedAt := time.Date(2026, 3, 14, 11, 30, 0, 0, time.UTC)
	msg := services.SaleCompletedMessage{
		ShopID:        "shop-1",
		TransactionID: "txn-1",
		PaymentMethod: "cash",
		SellerID:      "uid-123",
		Total:         21.60,
		AmountDue:     0,
		CompletedAt:   completedAt,
	}

	if _, err := publisher.PublishSaleCompleted(ctx, msg); err != nil {
		t.Fatalf("PublishSaleCompleted: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.SaleCompletedMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.TransactionID != msg.TransactionID || payload.Total != msg.Total {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["paymentMethod"]; attr != "cash" {
		t.Fatalf("expected payment method attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["shopId"]; attr != "shop-1" {
		t.Fatalf("expected shop attribute, got %q", attr)
	}
}

func TestPubSubEventPublisherPublishesLowStock(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client := newTestClient(t, srv)

	saleTopic, err := client.CreateTopic(ctx, "sale-completed")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	lowStockTopic, err := client.CreateTopic(ctx, "low-stock")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubEventPublisher(saleTopic, lowStockTopic)
	if err != nil {
		t.Fatalf("NewPubSubEventPublisher: %v", err)
	}

	msg := services.LowStockMessage{
		ShopID:      "shop-1",
		ProductID:   "prod-9",
		ProductName: "Maize Flour 2kg",
		Remaining:   3,
		Threshold:   10,
	}

	if _, err := publisher.PublishLowStock(ctx, msg); err != nil {
		t.Fatalf("PublishLowStock: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if attr := messages[0].Attributes["remaining"]; attr != "3" {
		t.Fatalf("expected remaining attribute, got %q", attr)
	}
}

func TestPubSubEventPublisherLowStockWithoutTopicIsNoop(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client := newTestClient(t, srv)

	saleTopic, err := client.CreateTopic(ctx, "sale-completed")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubEventPublisher(saleTopic, nil)
	if err != nil {
		t.Fatalf("NewPubSubEventPublisher: %v", err)
	}

	id, err := publisher.PublishLowStock(ctx, services.LowStockMessage{ShopID: "shop-1", ProductID: "prod-9"})
	if err != nil {
		t.Fatalf("PublishLowStock: %v", err)
	}
	if id != "" {
		t.Fatalf("expected empty id, got %q", id)
	}
	if len(srv.Messages()) != 0 {
		t.Fatalf("expected no messages published")
	}
}
