package core

import (
	"sync"
	"testing"

	"agromix/pkg/domain"
)

func TestNotifierDeliversToCurrentSubscribersOnly(t *testing.T) {
	n := NewNotifier()
	n.Publish(TopicRecipeSaved, "early")

	var got []any
	unsubscribe := n.Subscribe(TopicRecipeSaved, func(p any) { got = append(got, p) })
	n.Publish(TopicRecipeSaved, "first")
	n.Publish(TopicOperationSaved, "other topic")
	unsubscribe()
	n.Publish(TopicRecipeSaved, "after unsubscribe")

	if len(got) != 1 || got[0] != "first" {
		t.Fatalf("unexpected deliveries %v", got)
	}
}

func TestNotifierUnsubscribeIsIdempotent(t *testing.T) {
	n := NewNotifier()
	a := n.Subscribe(TopicCalculationSaved, func(any) {})
	n.Subscribe(TopicCalculationSaved, func(any) {})
	a()
	a()
	if got := n.Subscribers(TopicCalculationSaved); got != 1 {
		t.Fatalf("expected 1 subscriber left, got %d", got)
	}
}

func TestNotifierFanOutOrder(t *testing.T) {
	n := NewNotifier()
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		n.Subscribe(TopicCustomProductSaved, func(any) { order = append(order, i) })
	}
	n.Publish(TopicCustomProductSaved, nil)
	if len(order) != 3 || order[0] != 1 || order[2] != 3 {
		t.Fatalf("unexpected fan-out order %v", order)
	}
}

func TestNotifierSubscribeDuringPublishWaitsForNextPublish(t *testing.T) {
	n := NewNotifier()
	lateCalls := 0
	n.Subscribe(TopicRecipeSaved, func(any) {
		n.Subscribe(TopicRecipeSaved, func(any) { lateCalls++ })
	})
	n.Publish(TopicRecipeSaved, nil)
	if lateCalls != 0 {
		t.Fatalf("subscriber added during publish must not see that publish")
	}
}

func TestNotifierConcurrentUse(t *testing.T) {
	n := NewNotifier()
	var mu sync.Mutex
	count := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := n.Subscribe(TopicOperationSaved, func(any) {
				mu.Lock()
				count++
				mu.Unlock()
			})
			n.Publish(TopicOperationSaved, nil)
			unsub()
		}()
	}
	wg.Wait()
	if n.Subscribers(TopicOperationSaved) != 0 {
		t.Fatalf("expected all subscribers removed")
	}
	if count == 0 {
		t.Fatalf("expected at least one delivery")
	}
}

func TestSavedTopic(t *testing.T) {
	want := map[domain.EntityKind]string{
		domain.EntityCalculation:   TopicCalculationSaved,
		domain.EntityOperation:     TopicOperationSaved,
		domain.EntityRecipe:        TopicRecipeSaved,
		domain.EntityCustomProduct: TopicCustomProductSaved,
	}
	for kind, topic := range want {
		if got := SavedTopic(kind); got != topic {
			t.Fatalf("SavedTopic(%s) = %s, want %s", kind, got, topic)
		}
	}
}
