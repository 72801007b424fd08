package events

import (
	"context"
	"sync"
	"time"
)

const (
	PostCreated = "post.created"
	PostUpdated = "post.updated"
	PostDeleted = "post.deleted"
)

// PostEvent: сообщение о жизненном цикле поста.
type PostEvent struct {
	Type       string    `json:"type"`
	PostID     string    `json:"postId"`
	Slug       string    `json:"slug,omitempty"`
	UserID     string    `json:"userId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, event PostEvent) error
	Close() error
}

// Noop выбрасывает события. Используется, когда RABBITMQ_URL не задан.
type Noop struct{}

func (Noop) Publish(context.Context, PostEvent) error { return nil }
func (Noop) Close() error                            { return nil }

// Recorder запоминает события в памяти; удобен в тестах и локальной отладке.
type Recorder struct {
	mu     sync.Mutex
	events []PostEvent
}

func (r *Recorder) Publish(_ context.Context, event PostEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []PostEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PostEvent, len(r.events))
	copy(out, r.events)
	return out
}
