package core

import (
	"sync"

	"agromix/pkg/domain"
)

// Topics published by the persistence facades, one per entity kind.
const (
	TopicCalculationSaved   = "calculation.saved"
	TopicOperationSaved     = "operation.saved"
	TopicRecipeSaved        = "recipe.saved"
	TopicCustomProductSaved = "custom_product.saved"
)

// SavedTopic returns the "saved" topic for an entity kind.
func SavedTopic(kind domain.EntityKind) string {
	return string(kind) + ".saved"
}

// Handler receives a published payload.
type Handler func(payload any)

type subscription struct {
	id      uint64
	handler Handler
}

// Notifier is an in-process publish/subscribe bus. Publish fans out
// synchronously to the subscribers registered at the time of the call; late
// subscribers never see earlier publishes.
type Notifier struct {
	mu     sync.Mutex
	nextID uint64
	topics map[string][]subscription
}

// NewNotifier constructs an empty bus.
func NewNotifier() *Notifier {
	return &Notifier{topics: make(map[string][]subscription)}
}

// Subscribe registers handler for topic and returns its unsubscribe function.
// Calling unsubscribe more than once is harmless.
func (n *Notifier) Subscribe(topic string, handler Handler) func() {
	if handler == nil {
		return func() {}
	}
	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.topics[topic] = append(n.topics[topic], subscription{id: id, handler: handler})
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { n.remove(topic, id) })
	}
}

// Publish delivers payload to every current subscriber of topic.
func (n *Notifier) Publish(topic string, payload any) {
	n.mu.Lock()
	subs := make([]subscription, len(n.topics[topic]))
	copy(subs, n.topics[topic])
	n.mu.Unlock()

	for _, sub := range subs {
		sub.handler(payload)
	}
}

// Subscribers reports how many handlers are registered for topic.
func (n *Notifier) Subscribers(topic string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.topics[topic])
}

func (n *Notifier) remove(topic string, id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	subs := n.topics[topic]
	for i, sub := range subs {
		if sub.id == id {
			n.topics[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(n.topics[topic]) == 0 {
		delete(n.topics, topic)
	}
}
