package attachments

import (
	"sync"
	"testing"
	"time"
)

func TestMediaGroupCollectorNonAlbumIsImmediate(t *testing.T) {
	c := NewMediaGroupCollector(50*time.Millisecond, func(string, []RawAttachment) {
		t.Fatal("onFlush should not be called for a non-album item")
	})
	immediate, ok := c.Add(Item{Attachment: RawAttachment{Filename: "solo.png"}})
	if !ok || len(immediate) != 1 || immediate[0].Filename != "solo.png" {
		t.Fatalf("expected immediate single-item result, got %+v ok=%v", immediate, ok)
	}
}

func TestMediaGroupCollectorFlushesAfterTimeout(t *testing.T) {
	var mu sync.Mutex
	var flushed []RawAttachment
	done := make(chan struct{})

	c := NewMediaGroupCollector(30*time.Millisecond, func(groupID string, items []RawAttachment) {
		mu.Lock()
		flushed = items
		mu.Unlock()
		close(done)
	})

	_, ok := c.Add(Item{GroupID: "g1", Attachment: RawAttachment{Filename: "a.png"}})
	if ok {
		t.Fatal("expected album item to be buffered, not immediate")
	}
	_, ok = c.Add(Item{GroupID: "g1", Attachment: RawAttachment{Filename: "b.png"}})
	if ok {
		t.Fatal("expected second album item to be buffered, not immediate")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for group flush")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(flushed) != 2 {
		t.Fatalf("expected both items in flushed group, got %d", len(flushed))
	}
}

func TestMediaGroupCollectorResetsTimerOnNewItem(t *testing.T) {
	flushCount := 0
	var mu sync.Mutex
	done := make(chan struct{})

	c := NewMediaGroupCollector(40*time.Millisecond, func(string, []RawAttachment) {
		mu.Lock()
		flushCount++
		mu.Unlock()
		close(done)
	})

	c.Add(Item{GroupID: "g2", Attachment: RawAttachment{Filename: "a.png"}})
	time.Sleep(20 * time.Millisecond)
	c.Add(Item{GroupID: "g2", Attachment: RawAttachment{Filename: "b.png"}})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for group flush")
	}

	mu.Lock()
	defer mu.Unlock()
	if flushCount != 1 {
		t.Fatalf("expected exactly one flush, got %d", flushCount)
	}
}
