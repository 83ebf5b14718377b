package pubsub

import (
	"context"
	"errors"
	"testing"

	pubsub "cloud.google.com/go/pubsub/v2"
)

type stubResult struct {
	id  string
	err error
}

func (r stubResult) Get(context.Context) (string, error) { return r.id, r.err }

type stubPublisher struct {
	msgs    []*pubsub.Message
	err     error
	resumed []string
}

func (s *stubPublisher) ResumePublish(key string) { s.resumed = append(s.resumed, key) }

func (s *stubPublisher) Publish(_ context.Context, msg *pubsub.Message) publishResult {
	s.msgs = append(s.msgs, msg)
	return stubResult{id: "msg-1", err: s.err}
}

func TestAlertPublisherPublishes(t *testing.T) {
	stub := &stubPublisher{}
	pub := &AlertPublisher{override: stub}

	id, err := pub.Publish(context.Background(), []byte(`{"status":"critical"}`), map[string]string{"status": "critical"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "msg-1" {
		t.Fatalf("unexpected id %q", id)
	}
	if len(stub.msgs) != 1 || stub.msgs[0].Attributes["status"] != "critical" {
		t.Fatalf("unexpected messages %+v", stub.msgs)
	}
	if stub.msgs[0].OrderingKey != alertOrderingKey {
		t.Fatalf("alerts must be ordered, got key %q", stub.msgs[0].OrderingKey)
	}
}

func TestAlertPublisherPropagatesAckError(t *testing.T) {
	stub := &stubPublisher{err: errors.New("deadline exceeded")}
	pub := &AlertPublisher{override: stub}
	if _, err := pub.Publish(context.Background(), []byte("{}"), nil); err == nil {
		t.Fatal("expected ack error")
	}
	if len(stub.resumed) != 1 || stub.resumed[0] != alertOrderingKey {
		t.Fatalf("expected the ordering key to be resumed, got %v", stub.resumed)
	}
}

func TestAlertPublisherNil(t *testing.T) {
	var pub *AlertPublisher
	if _, err := pub.Publish(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error from nil publisher")
	}
}

func TestTopicResourceName(t *testing.T) {
	if got := topicResourceName("proj", "alerts"); got != "projects/proj/topics/alerts" {
		t.Fatalf("unexpected name %q", got)
	}
	if got := topicResourceName("proj", "projects/other/topics/x"); got != "projects/other/topics/x" {
		t.Fatalf("full names must pass through, got %q", got)
	}
	if got := topicResourceName("", "alerts"); got != "" {
		t.Fatalf("expected empty name without project, got %q", got)
	}
}
