package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ritzau/flowc/pkg/logging"
)

// ErrClosed is returned when using a publisher after Close
var ErrClosed = errors.New("publisher is closed")

// subscriberBuffer is the per-subscriber channel capacity
const subscriberBuffer = 100

// TopicConfig configures buffering behavior for a topic
type TopicConfig struct {
	BufferSize int  // Number of events to buffer (0 = no buffering)
	ReplayAll  bool // If true, replay all buffered events; if false, only replay last event
}

// SSEPublisher implements Publisher using Server-Sent Events
type SSEPublisher struct {
	mu            sync.RWMutex
	subscriptions map[string]map[*sseSubscription]bool // topic -> set of subscriptions
	version       map[string]int                       // topic -> version counter
	eventBuffer   map[string][]Event                   // topic -> most recent events
	topicConfig   map[string]TopicConfig               // topic -> configuration
	closed        bool
}

// NewSSEPublisher creates a new SSE-based publisher
func NewSSEPublisher() *SSEPublisher {
	return &SSEPublisher{
		subscriptions: make(map[string]map[*sseSubscription]bool),
		version:       make(map[string]int),
		eventBuffer:   make(map[string][]Event),
		topicConfig:   make(map[string]TopicConfig),
	}
}

// NewFlowPublisher creates a publisher with the flow topics configured:
// a new subscriber sees the latest compilation and the latest run
func NewFlowPublisher() *SSEPublisher {
	p := NewSSEPublisher()
	p.ConfigureTopic(TopicCompilation, TopicConfig{BufferSize: 1})
	p.ConfigureTopic(TopicRun, TopicConfig{BufferSize: 1})
	return p
}

// ConfigureTopic sets buffering configuration for a topic
func (p *SSEPublisher) ConfigureTopic(topic string, config TopicConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topicConfig[topic] = config
}

// Subscribe creates a new subscription to a topic. Buffered events are
// delivered first, according to the topic's configuration.
func (p *SSEPublisher) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}

	sub := &sseSubscription{
		topic:     topic,
		events:    make(chan Event, subscriberBuffer),
		publisher: p,
	}
	if p.subscriptions[topic] == nil {
		p.subscriptions[topic] = make(map[*sseSubscription]bool)
	}
	p.subscriptions[topic][sub] = true

	// queue the replay before releasing the lock so no newer event can
	// overtake it
	replayed := p.replay(sub)
	p.mu.Unlock()

	if replayed > 0 {
		logging.Debug("replayed events to new subscriber", "topic", topic, "count", replayed)
	}

	go func() {
		<-ctx.Done()
		sub.Close()
	}()

	return sub, nil
}

// replay queues buffered events on a new subscription. Caller holds p.mu.
func (p *SSEPublisher) replay(sub *sseSubscription) int {
	events := p.eventBuffer[sub.topic]
	if len(events) == 0 {
		return 0
	}
	if !p.topicConfig[sub.topic].ReplayAll {
		events = events[len(events)-1:]
	}

	sent := 0
	for _, event := range events {
		select {
		case sub.events <- event:
			sent++
		default:
			logging.Warn("could not replay event to new subscriber", "topic", sub.topic)
		}
	}
	return sent
}

// Publish sends an event to all subscribers of a topic
func (p *SSEPublisher) Publish(topic string, eventType string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	p.version[topic]++
	event := Event{
		Topic:   topic,
		Type:    eventType,
		Data:    jsonData,
		Version: p.version[topic],
	}
	p.buffer(event)

	// never block the publisher on a slow subscriber
	for sub := range p.subscriptions[topic] {
		select {
		case sub.events <- event:
		default:
			logging.Warn("subscription channel full, dropping event", "topic", topic, "version", event.Version)
		}
	}

	return nil
}

// buffer keeps the most recent events of a topic. Caller holds p.mu.
func (p *SSEPublisher) buffer(event Event) {
	size := p.topicConfig[event.Topic].BufferSize
	if size <= 0 {
		return
	}
	buffer := append(p.eventBuffer[event.Topic], event)
	if len(buffer) > size {
		buffer = buffer[len(buffer)-size:]
	}
	p.eventBuffer[event.Topic] = buffer
}

// SubscriberCount returns the number of open subscriptions to a topic
func (p *SSEPublisher) SubscriberCount(topic string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscriptions[topic])
}

// Close shuts down the publisher and all subscriptions
func (p *SSEPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	for _, subs := range p.subscriptions {
		for sub := range subs {
			close(sub.events)
		}
	}
	p.subscriptions = make(map[string]map[*sseSubscription]bool)

	return nil
}

// unsubscribe removes a subscription (called by subscription.Close())
func (p *SSEPublisher) unsubscribe(sub *sseSubscription) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if subs := p.subscriptions[sub.topic]; subs != nil {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(p.subscriptions, sub.topic)
		}
	}
}

// sseSubscription implements Subscription
type sseSubscription struct {
	topic     string
	events    chan Event
	publisher *SSEPublisher
	closed    bool
	mu        sync.Mutex
}

func (s *sseSubscription) Topic() string {
	return s.topic
}

func (s *sseSubscription) Events() <-chan Event {
	return s.events
}

// Close detaches the subscription. The events channel is left open; it is
// closed only when the publisher shuts down.
func (s *sseSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.publisher.unsubscribe(s)

	return nil
}

// WriteSSE writes an event to an SSE response writer
// Format: "data: {json}\n\n"
func WriteSSE(w io.Writer, event Event) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = fmt.Fprintf(w, "data: %s\n\n", jsonData)
	return err
}
