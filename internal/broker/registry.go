// Package broker implements the broker-side Source registry and Stream
// fan-out (spec.md §4.I), plus enough of a TCP listener/dispatcher
// (out-of-scope per spec.md §1, but required for a runnable, testable
// broker) to exercise Source and Reencoder end to end, grounded on the
// teacher's internal/rtmp/server package (Registry/Stream, server.go,
// command_integration.go).
package broker

import (
	"context"
	"sync"

	"github.com/sevenwolf/svr/internal/comm"
	"github.com/sevenwolf/svr/internal/encoding"
	"github.com/sevenwolf/svr/internal/frameprops"
	"github.com/sevenwolf/svr/internal/lockable"
	"github.com/sevenwolf/svr/internal/logger"
	"github.com/sevenwolf/svr/internal/optstring"
	"github.com/sevenwolf/svr/internal/reencoder"
	"github.com/sevenwolf/svr/internal/svrerr"
)

// SourceKind distinguishes a client-published source from a server-ingested
// one (spec.md §3 "Source registry (broker)").
type SourceKind string

const (
	KindClient SourceKind = "client"
	KindServer SourceKind = "server"
)

// Registry is the broker's name → SourceRecord map, mirroring
// server/registry.go's Registry/Stream map behind an RWMutex; Open checks
// for an existing name and inserts under a single write lock.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]*SourceRecord
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]*SourceRecord)}
}

// Open registers a new source named name, rejecting a name already in use
// (spec.md §4.I "open rejects duplicates").
func (r *Registry) Open(conn *comm.Conn, kind SourceKind, name, descriptor string) (*SourceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sources[name]; exists {
		return nil, &svrerr.NameClashError{Op: "broker.Open", Name: name}
	}
	rec := &SourceRecord{
		lock:       lockable.New(),
		Name:       name,
		Kind:       kind,
		Conn:       conn,
		Descriptor: descriptor,
	}
	r.sources[name] = rec
	logger.WithSource(logger.Logger(), name).Info("source opened", "kind", kind)

	if kind == KindServer {
		rec.startIngestion(nullIngestionTask{})
	}
	return rec, nil
}

// Get resolves name to its SourceRecord, or NoSuchSourceError.
func (r *Registry) Get(name string) (*SourceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.sources[name]
	if !ok {
		return nil, &svrerr.NoSuchSourceError{Op: "broker.Get", Name: name}
	}
	return rec, nil
}

// Close evicts name from the registry and orphans every attached stream
// (spec.md §4.I "close evicts and notifies attached streams").
func (r *Registry) Close(name string) error {
	r.mu.Lock()
	rec, ok := r.sources[name]
	if !ok {
		r.mu.Unlock()
		return &svrerr.NoSuchSourceError{Op: "broker.Close", Name: name}
	}
	delete(r.sources, name)
	r.mu.Unlock()

	rec.stopIngestion()
	rec.orphanStreams()
	logger.WithSource(logger.Logger(), name).Info("source closed")
	return nil
}

// Entry is one `"c:name"`/`"s:name"` listing entry (spec.md §3 "Sources
// list entry").
type Entry struct {
	Kind SourceKind
	Name string
}

// List returns every registered source as an Entry, in map iteration order
// (spec.md §8 S6 only requires set equality, not a specific order).
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]Entry, 0, len(r.sources))
	for _, rec := range r.sources {
		entries = append(entries, Entry{Kind: rec.Kind, Name: rec.Name})
	}
	return entries
}

// SourceRecord is the broker's view of one open source: its owning
// connection, negotiated encoding, locked frame properties, and the
// streams currently fanned out from it.
type SourceRecord struct {
	lock *lockable.Lockable

	Name       string
	Kind       SourceKind
	Conn       *comm.Conn
	Descriptor string

	encoding        encoding.Encoding
	encodingOptions *optstring.Options
	frameProperties *frameprops.Properties

	streams []*StreamRecord

	// ingestCancel/ingestDone are set only for KindServer sources (see
	// startIngestion/stopIngestion); both nil for a client source.
	ingestCancel context.CancelFunc
	ingestDone   chan struct{}
}

// SetEncoding records the source's negotiated encoding, resolved from
// registry (the broker's own registry additionally carries ffv1, unlike
// the client-visible encoding.Default a Source consults).
func (s *SourceRecord) SetEncoding(reg *encoding.Registry, descriptor string) error {
	opts, err := optstring.Parse(descriptor)
	if err != nil {
		return err
	}
	enc, err := reg.Lookup(opts.Name)
	if err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.encoding = enc
	s.encodingOptions = opts
	return nil
}

// SetFrameProperties records the source's locked frame shape, parsed from
// the wire's "W,H,D,C" descriptor by the caller (see dispatch.go).
func (s *SourceRecord) SetFrameProperties(props frameprops.Properties) {
	s.lock.Lock()
	defer s.lock.Unlock()
	committed := props.Clone()
	s.frameProperties = &committed
}

// Encoding returns the source's current encoding, or nil if not yet set.
func (s *SourceRecord) Encoding() encoding.Encoding {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.encoding
}

// FrameProperties returns the source's locked frame shape, or the zero
// value and false if not yet set.
func (s *SourceRecord) FrameProperties() (frameprops.Properties, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.frameProperties == nil {
		return frameprops.Properties{}, false
	}
	return *s.frameProperties, true
}

// AttachStream builds a Reencoder adapting this source's encoding to
// streamEncoding and registers the resulting StreamRecord as a fan-out
// target for subsequent BroadcastData calls.
func (s *SourceRecord) AttachStream(streamEncoding encoding.Encoding, streamOptions *optstring.Options) (*StreamRecord, error) {
	s.lock.Lock()
	if s.encoding == nil || s.frameProperties == nil {
		s.lock.Unlock()
		return nil, &svrerr.InvalidStateError{Op: "broker.AttachStream", State: "SOURCE_NOT_READY"}
	}
	sourceEncoding, sourceProps, sourceOptions := s.encoding, *s.frameProperties, s.encodingOptions
	s.lock.Unlock()

	re, err := reencoder.New(sourceEncoding, streamEncoding, sourceProps, sourceProps, sourceOptions, streamOptions)
	if err != nil {
		return nil, err
	}

	stream := &StreamRecord{
		lock:      lockable.New(),
		Source:    s,
		Encoding:  streamEncoding,
		Options:   streamOptions,
		Reencoder: re,
	}

	s.lock.Lock()
	s.streams = append(s.streams, stream)
	s.lock.Unlock()
	return stream, nil
}

// DetachStream removes stream from the fan-out set (a subscriber
// disconnecting cleanly, as opposed to orphaning on source close).
func (s *SourceRecord) DetachStream(stream *StreamRecord) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for i, st := range s.streams {
		if st == stream {
			last := len(s.streams) - 1
			s.streams[i] = s.streams[last]
			s.streams[last] = nil
			s.streams = s.streams[:last]
			return
		}
	}
}

// BroadcastData fans payload (one source-encoded frame record) out to
// every attached stream's Reencoder, snapshotting the subscriber slice
// under the lock before doing any reencode/delivery work — identical in
// shape to server/registry.go's BroadcastMessage.
func (s *SourceRecord) BroadcastData(payload []byte) {
	s.lock.Lock()
	subs := make([]*StreamRecord, len(s.streams))
	copy(subs, s.streams)
	s.lock.Unlock()

	for _, stream := range subs {
		out, err := stream.Reencoder.Reencode(payload)
		if err != nil {
			logger.WithSource(logger.Logger(), s.Name).Warn("reencode failed", "error", err)
			continue
		}
		if len(out) == 0 {
			// A gated variant (e.g. ffv1Reencoder awaiting its first
			// keyframe) can legitimately produce no output for this record.
			continue
		}
		stream.pushFrame(out)
	}
}

// orphanStreams transitions every attached stream to the orphaned state,
// waking any reader blocked in NextFrame (spec.md §9 "Orphaning on source
// close").
func (s *SourceRecord) orphanStreams() {
	s.lock.Lock()
	subs := make([]*StreamRecord, len(s.streams))
	copy(subs, s.streams)
	s.streams = nil
	s.lock.Unlock()

	for _, stream := range subs {
		stream.orphan()
	}
}
