package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/duka-pos/api/internal/services"
)

// PubSubEventPublisher publishes sale and stock events to Pub/Sub topics.
type PubSubEventPublisher struct {
	saleTopic     *pubsub.Topic
	lowStockTopic *pubsub.Topic
	marshal       func(any) ([]byte, error)
}

// NewPubSubEventPublisher constructs a Pub/Sub backed event publisher. The low
// stock topic is optional; publishing low stock events without one is a no-op.
func NewPubSubEventPublisher(saleTopic, lowStockTopic *pubsub.Topic) (*PubSubEventPublisher, error) {
	if saleTopic == nil {
		return nil, errors.New("pubsub event publisher: sale topic is required")
	}
	return &PubSubEventPublisher{
		saleTopic:     saleTopic,
		lowStockTopic: lowStockTopic,
		marshal:       json.Marshal,
	}, nil
}

// PublishSaleCompleted enqueues a sale completed message on the configured topic.
func (p *PubSubEventPublisher) PublishSaleCompleted(ctx context.Context, message services.SaleCompletedMessage) (string, error) {
	if p == nil || p.saleTopic == nil {
		return "", errors.New("pubsub event publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal sale completed: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "shopId", message.ShopID)
	setAttr(attrs, "transactionId", message.TransactionID)
	setAttr(attrs, "paymentMethod", message.PaymentMethod)
	setAttr(attrs, "sellerId", message.SellerID)

	result := p.saleTopic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish sale completed: %w", err)
	}
	return id, nil
}

// PublishLowStock enqueues a low stock alert for a product that crossed its
// threshold during checkout. Returns an empty id when no topic is configured.
func (p *PubSubEventPublisher) PublishLowStock(ctx context.Context, message services.LowStockMessage) (string, error) {
	if p == nil {
		return "", errors.New("pubsub event publisher: not initialised")
	}
	if p.lowStockTopic == nil {
		return "", nil
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal low stock: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "shopId", message.ShopID)
	setAttr(attrs, "productId", message.ProductID)
	attrs["remaining"] = strconv.Itoa(message.Remaining)

	result := p.lowStockTopic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish low stock: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
