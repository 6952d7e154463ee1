// Package events publishes domain events for downstream consumers
// (notification fan-out, websocket gateways).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const TypeMessageSent = "message.sent"

type MessageSent struct {
	Type        string    `json:"type"`
	MessageID   string    `json:"messageId"`
	SenderID    string    `json:"senderId"`
	ReceiverID  string    `json:"receiverId"`
	Content     string    `json:"content"`
	Attachments int       `json:"attachments"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Publisher interface {
	PublishMessageSent(ctx context.Context, ev MessageSent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to one topic, keyed by receiver so a
// receiver's events stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) PublishMessageSent(ctx context.Context, ev MessageSent) error {
	ev.Type = TypeMessageSent
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.ReceiverID),
		Value: value,
		Time:  ev.CreatedAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(TypeMessageSent)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// Nop drops events. Used when no brokers are configured.
type Nop struct{}

func (Nop) PublishMessageSent(context.Context, MessageSent) error { return nil }
func (Nop) Close() error                                           { return nil }
