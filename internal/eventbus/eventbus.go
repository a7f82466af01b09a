// Package eventbus delivers named change signals from the engine to views.
package eventbus

import (
	"sync"

	"eventflow/internal/logger"
)

// Topic names a change signal.
type Topic string

const (
	TopicEventsChanged      Topic = "events:changed"
	TopicStatsChanged       Topic = "stats:changed"
	TopicClockTick          Topic = "clock:tick"
	TopicRefreshCompleted   Topic = "refresh:completed"
	TopicPersistenceWarning Topic = "persistence:warning"
)

// Message is one published signal.
type Message struct {
	Topic   Topic
	Payload any
}

// Handler receives messages for the topics it subscribed to.
type Handler func(Message)

// Publisher is what the engine needs from the bus.
type Publisher interface {
	Publish(topic Topic, payload any)
}

// Bus is a synchronous publish-subscribe hub. Handlers run on the
// publisher's goroutine, in subscription order.
type Bus struct {
	handlers map[Topic][]Handler
	mu       sync.RWMutex
	log      *logger.Logger
}

// New creates an empty Bus.
func New(log *logger.Logger) *Bus {
	if log == nil {
		log = logger.Nop()
	}
	return &Bus{
		handlers: make(map[Topic][]Handler),
		log:      log,
	}
}

// Subscribe registers h for topic.
func (b *Bus) Subscribe(topic Topic, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[topic] = append(b.handlers[topic], h)
	b.log.Debug("subscribed", "topic", topic)
}

// SubscribeAll registers h for every known topic.
func (b *Bus) SubscribeAll(h Handler) {
	for _, t := range []Topic{
		TopicEventsChanged,
		TopicStatsChanged,
		TopicClockTick,
		TopicRefreshCompleted,
		TopicPersistenceWarning,
	} {
		b.Subscribe(t, h)
	}
}

// Publish delivers payload to every handler of topic. A panicking handler
// is logged and does not stop delivery to the others.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[topic]...)
	b.mu.RUnlock()

	msg := Message{Topic: topic, Payload: payload}
	for _, h := range handlers {
		b.deliver(h, msg)
	}
}

func (b *Bus) deliver(h Handler, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("handler panic", "topic", msg.Topic, "panic", r)
		}
	}()
	h(msg)
}

// HandlerCount returns the number of handlers for topic.
func (b *Bus) HandlerCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[topic])
}

// Recorder collects messages. It is handy for tests and for views that
// poll instead of reacting.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Handle(m Message) {
	r.mu.Lock()
	r.messages = append(r.messages, m)
	r.mu.Unlock()
}

// Messages returns what was recorded for topic, or everything when topic
// is empty.
func (r *Recorder) Messages(topic Topic) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.messages {
		if topic == "" || m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}
