// Package handoff passes pending_dispatch event records to the server-side
// fan-out consumer over Kafka.
package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/corvusHold/notify/internal/notify/domain"
)

type Config struct {
	Brokers []string
	Topic   string
}

// messageWriter is the subset of *kafka.Writer the producer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer implements domain.Handoff.
type Producer struct {
	writer messageWriter
	topic  string
}

func NewProducer(cfg Config) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		MaxAttempts:            5,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}
	return &Producer{writer: w, topic: cfg.Topic}
}

// Message is the hand-off payload.
type Message struct {
	EventID       string               `json:"event_id"`
	EventType     domain.EventType     `json:"event_type"`
	Module        domain.Module        `json:"module"`
	Priority      domain.Priority      `json:"priority"`
	DedupeKey     string               `json:"dedupe_key,omitempty"`
	Audience      domain.AudienceSpec  `json:"audience"`
	Channels      []domain.Channel     `json:"channels"`
	EntityID      string               `json:"entity_id,omitempty"`
	EntityType    string               `json:"entity_type,omitempty"`
	Metadata      map[string]any       `json:"metadata,omitempty"`
	Title         string               `json:"title"`
	Body          string               `json:"body"`
	CreatedAt     time.Time            `json:"created_at"`
	CreatedBy     string               `json:"created_by"`
	CreatedByName string               `json:"created_by_name,omitempty"`
	TenantContext domain.TenantContext `json:"tenant"`
}

func MessageOf(rec domain.EventRecord) Message {
	return Message{
		EventID: rec.ID, EventType: rec.EventType, Module: rec.Module, Priority: rec.Priority,
		DedupeKey: rec.DedupeKey, Audience: rec.Audience, Channels: rec.Channels,
		EntityID: rec.EntityID, EntityType: rec.EntityType, Metadata: rec.Metadata,
		Title: rec.Title, Body: rec.Body, CreatedAt: rec.CreatedAt, CreatedBy: rec.CreatedBy,
		CreatedByName: rec.CreatedByName, TenantContext: rec.TenantContext,
	}
}

// Publish writes rec keyed by tenant so one tenant's records stay ordered.
func (p *Producer) Publish(ctx context.Context, rec domain.EventRecord) error {
	value, err := json.Marshal(MessageOf(rec))
	if err != nil {
		return fmt.Errorf("encode hand-off message: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.TenantContext.Key()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(rec.EventType)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

func (p *Producer) Topic() string { return p.topic }

func (p *Producer) Close() error { return p.writer.Close() }
