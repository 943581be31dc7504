// Package events carries record and analysis notifications between the
// engine and its host.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Topic names an event stream.
type Topic string

const (
	TopicSessionCompleted        Topic = "sessionCompleted"
	TopicAssessmentCompleted     Topic = "assessmentCompleted"
	TopicReviewCompleted         Topic = "reviewCompleted"
	TopicGoalProgressUpdated     Topic = "goalProgressUpdated"
	TopicWeaknessAnalysisUpdated Topic = "weaknessAnalysisUpdated"
)

// RecordTopics are the topics that signal new data.
var RecordTopics = []Topic{
	TopicSessionCompleted,
	TopicAssessmentCompleted,
	TopicReviewCompleted,
	TopicGoalProgressUpdated,
}

// Event is one published message.
type Event struct {
	ID      string          `json:"id"`
	Topic   Topic           `json:"topic"`
	Origin  string          `json:"origin,omitempty"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New builds an event with payload encoded as JSON.
func New(topic Topic, origin string, payload any) (Event, error) {
	ev := Event{
		ID:     uuid.NewString(),
		Topic:  topic,
		Origin: origin,
		At:     time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("encoding %s payload: %w", topic, err)
		}
		ev.Payload = raw
	}
	return ev, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("event %s has no payload", e.ID)
	}
	return json.Unmarshal(e.Payload, v)
}

// Handler receives delivered events.
type Handler func(ctx context.Context, ev Event)

// Bus is a publish/subscribe channel. Subscribing with no topics receives
// every topic.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, h Handler, topics ...Topic) (unsubscribe func(), err error)
	Close() error
}

type subscription struct {
	id     int
	topics []Topic
	h      Handler
}

func (s subscription) wants(t Topic) bool {
	return len(s.topics) == 0 || slices.Contains(s.topics, t)
}

// LocalBus delivers events synchronously in the publishing goroutine, in
// subscription order.
type LocalBus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
}

// NewLocalBus returns an empty in-process bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

func (b *LocalBus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	subs := slices.Clone(b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if s.wants(ev.Topic) {
			s.h(ctx, ev)
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(_ context.Context, h Handler, topics ...Topic) (func(), error) {
	if h == nil {
		return nil, fmt.Errorf("handler required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, topics: topics, h: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs = slices.DeleteFunc(b.subs, func(s subscription) bool { return s.id == id })
	}, nil
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
	return nil
}
