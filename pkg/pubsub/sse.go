package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/ritzau/wfc/pkg/logging"
)

// ErrClosed is returned once the publisher has been closed.
var ErrClosed = errors.New("publisher is closed")

// subscriberBuffer is the per-subscriber channel size. Slow subscribers
// lose events rather than block publishers.
const subscriberBuffer = 64

// TopicConfig configures how many past events a topic keeps for new
// subscribers.
type TopicConfig struct {
	BufferSize int  // 0 disables replay
	ReplayAll  bool // replay the whole buffer instead of only the last event
}

// SSEPublisher is an in-process Publisher whose subscribers are usually
// server-sent event streams.
type SSEPublisher struct {
	mu            sync.RWMutex
	subscriptions map[string]map[*sseSubscription]bool
	version       map[string]int
	eventBuffer   map[string][]Event
	topicConfig   map[string]TopicConfig
	closed        bool
}

// NewSSEPublisher creates a publisher with the service topics configured:
// templates replays its last state, compile keeps a short history.
func NewSSEPublisher() *SSEPublisher {
	return &SSEPublisher{
		subscriptions: make(map[string]map[*sseSubscription]bool),
		version:       make(map[string]int),
		eventBuffer:   make(map[string][]Event),
		topicConfig: map[string]TopicConfig{
			TopicTemplates: {BufferSize: 1},
			TopicCompile:   {BufferSize: 20, ReplayAll: true},
		},
	}
}

// ConfigureTopic overrides the replay settings of a topic.
func (p *SSEPublisher) ConfigureTopic(topic string, config TopicConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topicConfig[topic] = config
}

// Subscribe registers a subscriber and replays buffered events to it.
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

	// Replay while still holding the lock so that no live event can
	// overtake the history.
	replay := p.eventBuffer[topic]
	if !p.topicConfig[topic].ReplayAll && len(replay) > 0 {
		replay = replay[len(replay)-1:]
	}
	for _, event := range replay {
		select {
		case sub.events <- event:
		default:
			logging.Warn("could not replay event", "topic", topic, "version", event.Version)
		}
	}
	p.mu.Unlock()

	if len(replay) > 0 {
		logging.Debug("replayed events to new subscriber", "topic", topic, "count", len(replay))
	}

	go func() {
		<-ctx.Done()
		sub.Close()
	}()

	return sub, nil
}

// Publish sends an event to all subscribers of a topic. Subscribers whose
// channel is full miss the event.
func (p *SSEPublisher) Publish(topic string, eventType string, data any) error {
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
	version := p.version[topic]

	event := Event{
		Topic:   topic,
		Type:    eventType,
		Data:    jsonData,
		Version: version,
	}

	if size := p.topicConfig[topic].BufferSize; size > 0 {
		buffer := append(p.eventBuffer[topic], event)
		if len(buffer) > size {
			buffer = append([]Event(nil), buffer[len(buffer)-size:]...)
		}
		p.eventBuffer[topic] = buffer
	}

	for sub := range p.subscriptions[topic] {
		select {
		case sub.events <- event:
		default:
			logging.Warn("subscriber too slow, dropping event", "topic", topic, "type", eventType)
		}
	}

	return nil
}

// Close ends every subscription.
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

// WriteSSE writes one event in server-sent event framing, using the event
// type as the SSE event name.
func WriteSSE(w io.Writer, event Event) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", event.Version, event.Type, jsonData)
	return err
}

// Stream subscribes to topic and writes its events to w until the request
// ends or the publisher closes.
func Stream(w http.ResponseWriter, r *http.Request, p Publisher, topic string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	sub, err := p.Subscribe(r.Context(), topic)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	flusher, _ := w.(http.Flusher)
	fmt.Fprint(w, ": connected\n\n")
	if flusher != nil {
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := WriteSSE(w, event); err != nil {
				logging.WarnContext(r.Context(), "failed to write event", "topic", topic, "error", err)
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}
