// Package kafka streams dispatch outcome events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	skafka "github.com/segmentio/kafka-go"

	basepublisher "github.com/papercomputeco/gymqr/pkg/publisher"
)

const (
	defaultPublishTimeout = 5 * time.Second

	// SchemaHeader carries Event.Schema so consumers can route without
	// decoding the value.
	SchemaHeader = "schema"
)

var (
	errMissingBrokers = errors.New("kafka brokers are required")
	errMissingTopic   = errors.New("kafka topic is required")
	errNilEvent       = errors.New("event is required")
)

// Message is one dispatch event as written to the topic.
type Message = skafka.Message

// Config selects the cluster and topic dispatch events go to.
type Config struct {
	Brokers  []string
	Topic    string
	ClientID string

	// PublishTimeout bounds a single write so a slow cluster cannot hold up
	// the dispatch that produced the event. Defaults to 5s.
	PublishTimeout time.Duration
}

type writer interface {
	WriteMessages(ctx context.Context, msgs ...Message) error
	Close() error
}

// Publisher writes one message per dispatch. Messages are keyed by chat id
// and hashed to a partition, so the outcomes of one chat stay in order.
type Publisher struct {
	writer  writer
	timeout time.Duration
}

var _ basepublisher.Publisher = (*Publisher)(nil)

// NewPublisher connects lazily to c.Brokers; nothing is dialed until the
// first event.
func NewPublisher(c Config) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, errMissingBrokers
	}

	kw := &skafka.Writer{
		Addr:     skafka.TCP(c.Brokers...),
		Topic:    c.Topic,
		Balancer: &skafka.Hash{},
	}
	if c.ClientID != "" {
		kw.Transport = &skafka.Transport{ClientID: c.ClientID}
	}

	return newPublisherWithWriter(c, kw)
}

func newPublisherWithWriter(c Config, w writer) (*Publisher, error) {
	switch {
	case c.Topic == "":
		return nil, errMissingTopic
	case w == nil:
		return nil, errors.New("writer is required")
	}

	p := &Publisher{writer: w, timeout: c.PublishTimeout}
	if p.timeout <= 0 {
		p.timeout = defaultPublishTimeout
	}
	return p, nil
}

// Publish writes event keyed by its chat id.
func (p *Publisher) Publish(ctx context.Context, event *basepublisher.Event) error {
	msg, err := toMessage(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write dispatch event %s: %w", event.RequestID, err)
	}
	return nil
}

func toMessage(event *basepublisher.Event) (Message, error) {
	if event == nil {
		return Message{}, errNilEvent
	}
	if event.RequestID == "" {
		return Message{}, basepublisher.ErrEmptyRequestID
	}

	value, err := json.Marshal(event)
	if err != nil {
		return Message{}, fmt.Errorf("marshal dispatch event: %w", err)
	}

	return Message{
		Key:     []byte(strconv.FormatInt(event.ChatID, 10)),
		Value:   value,
		Time:    event.OccurredAt,
		Headers: []skafka.Header{{Key: SchemaHeader, Value: []byte(event.Schema)}},
	}, nil
}

// Close flushes pending writes and closes the connection.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
