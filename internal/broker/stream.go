package broker

import (
	"github.com/sevenwolf/svr/internal/encoding"
	"github.com/sevenwolf/svr/internal/lockable"
	"github.com/sevenwolf/svr/internal/optstring"
	"github.com/sevenwolf/svr/internal/reencoder"
	"github.com/sevenwolf/svr/internal/svrerr"
)

// StreamRecord is a subscriber's fan-out target bound to one SourceRecord.
// Reencoded frames are queued here for delivery and drained by whatever
// writer owns the subscriber's connection (a TCP dispatcher, or a test).
type StreamRecord struct {
	lock *lockable.Lockable

	Source    *SourceRecord
	Encoding  encoding.Encoding
	Options   *optstring.Options
	Reencoder reencoder.Reencoder

	queue    [][]byte
	orphaned bool
}

// pushFrame enqueues one reencoded frame and wakes any blocked NextFrame
// caller.
func (s *StreamRecord) pushFrame(data []byte) {
	s.lock.Lock()
	s.queue = append(s.queue, data)
	s.lock.Broadcast()
	s.lock.Unlock()
}

// orphan marks the stream terminally closed (its source went away) and
// wakes any blocked NextFrame caller (spec.md §9).
func (s *StreamRecord) orphan() {
	s.lock.Lock()
	s.orphaned = true
	s.lock.Broadcast()
	s.lock.Unlock()
}

// NextFrame blocks until a reencoded frame is queued or the stream is
// orphaned, in which case it returns svrerr.SourceClosedError.
func (s *StreamRecord) NextFrame() ([]byte, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for len(s.queue) == 0 && !s.orphaned {
		s.lock.Wait()
	}
	if len(s.queue) == 0 {
		return nil, &svrerr.SourceClosedError{Source: s.Source.Name}
	}
	frame := s.queue[0]
	s.queue = s.queue[1:]
	return frame, nil
}
