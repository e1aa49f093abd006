package pubsub

import (
	"context"
	"encoding/json"
)

// Topics published by the service.
const (
	// TopicTemplates carries template store changes: loaded, reloaded,
	// reload_failed.
	TopicTemplates = "templates"
	// TopicCompile carries one event per compile, validate, inject or
	// render request handled by the HTTP service.
	TopicCompile = "compile"
)

// Event is one message on a topic.
type Event struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Version int             `json:"version"` // per topic, increasing
}

// Subscription receives the events of one topic.
type Subscription interface {
	Topic() string
	Events() <-chan Event
	Close() error
}

// Publisher fans events out to subscribers.
type Publisher interface {
	// Subscribe creates a subscription that closes with ctx.
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends data, encoded as JSON, to every subscriber of topic.
	Publish(topic string, eventType string, data any) error

	Close() error
}

// TemplateStatus is the payload of TopicTemplates events.
type TemplateStatus struct {
	Templates []string `json:"templates"`
	Changed   []string `json:"changed,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// CompileStatus is the payload of TopicCompile events.
type CompileStatus struct {
	Operation string `json:"operation"` // compile, validate, inject, render
	Template  string `json:"template,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	Nodes     int    `json:"nodes"`
	Warnings  int    `json:"warnings"`
	Error     string `json:"error,omitempty"`
}
