package broker

import (
	"testing"

	"github.com/sevenwolf/svr/internal/lockable"
)

func newTestStream(source *SourceRecord) *StreamRecord {
	return &StreamRecord{lock: lockable.New(), Source: source}
}

func TestNextFrameReturnsQueuedFramesInOrder(t *testing.T) {
	s := newTestStream(&SourceRecord{Name: "cam1"})
	s.pushFrame([]byte("a"))
	s.pushFrame([]byte("b"))

	got, err := s.NextFrame()
	if err != nil || string(got) != "a" {
		t.Fatalf("first NextFrame: got %q, err %v", got, err)
	}
	got, err = s.NextFrame()
	if err != nil || string(got) != "b" {
		t.Fatalf("second NextFrame: got %q, err %v", got, err)
	}
}

func TestNextFrameBlocksThenWakesOnPush(t *testing.T) {
	s := newTestStream(&SourceRecord{Name: "cam1"})

	done := make(chan []byte, 1)
	go func() {
		got, _ := s.NextFrame()
		done <- got
	}()

	s.pushFrame([]byte("late"))

	if got := <-done; string(got) != "late" {
		t.Fatalf("got %q, want %q", got, "late")
	}
}

func TestNextFrameAfterOrphanReturnsSourceClosed(t *testing.T) {
	s := newTestStream(&SourceRecord{Name: "cam1"})
	s.orphan()

	if _, err := s.NextFrame(); err == nil {
		t.Fatal("expected SourceClosedError after orphan")
	}
}
