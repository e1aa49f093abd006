package pubsub

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func receive(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case event := <-sub.Events():
		return event
	case <-time.After(200 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}
	return Event{}
}

func expectNone(t *testing.T, sub Subscription) {
	t.Helper()
	select {
	case event := <-sub.Events():
		t.Errorf("Received unexpected event version %d", event.Version)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCompileTopicReplaysHistory(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	// The compile topic keeps the last 20 events.
	for i := 1; i <= 25; i++ {
		if err := pub.Publish(TopicCompile, "compiled", CompileStatus{Operation: "compile", Nodes: i}); err != nil {
			t.Fatalf("Failed to publish event %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := pub.Subscribe(ctx, TopicCompile)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	for want := 6; want <= 25; want++ {
		if event := receive(t, sub); event.Version != want {
			t.Fatalf("Expected version %d, got %d", want, event.Version)
		}
	}
	expectNone(t, sub)
}

func TestTemplatesTopicReplaysLastOnly(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	for _, names := range [][]string{{"a"}, {"a", "b"}, {"a", "b", "c"}} {
		if err := pub.Publish(TopicTemplates, "reloaded", TemplateStatus{Templates: names}); err != nil {
			t.Fatalf("Failed to publish: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := pub.Subscribe(ctx, TopicTemplates)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	event := receive(t, sub)
	var status TemplateStatus
	if err := json.Unmarshal(event.Data, &status); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
	if event.Version != 3 || len(status.Templates) != 3 {
		t.Errorf("Expected the latest template list, got version %d %+v", event.Version, status)
	}
	expectNone(t, sub)
}

func TestUnbufferedTopic(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	for i := 1; i <= 3; i++ {
		if err := pub.Publish("other", "event", map[string]int{"num": i}); err != nil {
			t.Fatalf("Failed to publish event %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := pub.Subscribe(ctx, "other")
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	expectNone(t, sub)

	if err := pub.Publish("other", "event", map[string]int{"num": 4}); err != nil {
		t.Fatalf("Failed to publish new event: %v", err)
	}
	if event := receive(t, sub); event.Version != 4 {
		t.Errorf("Expected version 4, got %d", event.Version)
	}
}

func TestPublishAfterClose(t *testing.T) {
	pub := NewSSEPublisher()
	pub.Close()

	if err := pub.Publish(TopicCompile, "compiled", nil); err != ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if _, err := pub.Subscribe(context.Background(), TopicCompile); err != ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestWriteSSE(t *testing.T) {
	var buf bytes.Buffer
	event := Event{Topic: TopicCompile, Type: "compiled", Data: json.RawMessage(`{"nodes":2}`), Version: 7}

	if err := WriteSSE(&buf, event); err != nil {
		t.Fatalf("WriteSSE() error = %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "id: 7\nevent: compiled\ndata: {") || !strings.HasSuffix(out, "}\n\n") {
		t.Errorf("Unexpected framing: %q", out)
	}
}

func TestStream(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()
	pub.Publish(TopicTemplates, "loaded", TemplateStatus{Templates: []string{"txt2img"}})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Stream(w, r, pub, TopicTemplates)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			if !strings.Contains(line, "txt2img") {
				t.Errorf("Unexpected data line %q", line)
			}
			return
		}
	}
	t.Fatalf("Stream ended without data: %v", scanner.Err())
}
