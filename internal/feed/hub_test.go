package feed

import (
	"testing"
	"time"
)

func TestHubDeliversInOrder(t *testing.T) {
	h := NewHub()
	ch, unsub := h.Subscribe(4)
	defer unsub()

	go func() {
		for i := 1; i <= 50; i++ {
			h.Publish(ChatTitleChanged{ChatID: ChatID(i)})
		}
	}()

	for i := 1; i <= 50; i++ {
		select {
		case u := <-ch:
			got := u.(ChatTitleChanged).ChatID
			if got != ChatID(i) {
				t.Fatalf("update %d: got chat %d, want %d", i, got, i)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for update %d", i)
		}
	}
}

func TestHubDoesNotDropWhenSubscriberIsSlow(t *testing.T) {
	h := NewHub()
	ch, unsub := h.Subscribe(1)
	defer unsub()

	const n = 20
	done := make(chan struct{})
	go func() {
		for i := 0; i < n; i++ {
			h.Publish(NewChat{Chat: Chat{ID: ChatID(i)}})
		}
		close(done)
	}()

	received := 0
	for received < n {
		select {
		case <-ch:
			received++
			time.Sleep(time.Millisecond)
		case <-time.After(2 * time.Second):
			t.Fatalf("got %d updates, want %d", received, n)
		}
	}
	<-done
}

func TestHubUnsubscribeReleasesBlockedPublish(t *testing.T) {
	h := NewHub()
	_, unsub := h.Subscribe(0)

	published := make(chan struct{})
	go func() {
		h.Publish(ChatTitleChanged{ChatID: 1})
		close(published)
	}()

	time.Sleep(20 * time.Millisecond)
	unsub()

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("Publish still blocked after unsubscribe")
	}
}

func TestHubCloseMakesPublishNoop(t *testing.T) {
	h := NewHub()
	ch, _ := h.Subscribe(0)
	h.Close()

	h.Publish(ChatTitleChanged{ChatID: 1})
	select {
	case u := <-ch:
		t.Fatalf("unexpected update after close: %#v", u)
	default:
	}

	// Subscribing after close must not block publishers either.
	_, unsub := h.Subscribe(0)
	unsub()
	h.Publish(ChatTitleChanged{ChatID: 2})
}
