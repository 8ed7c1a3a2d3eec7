// Package encoding implements SVR's Encoding registry: a name→Encoding
// lookup where each Encoding is a factory for per-source Encoder
// instances. raw and jpeg are client-visible (registered here at package
// init); ffv1 is broker-only and is never registered into Default:
// internal/broker registers it into its own Registry at startup, matching
// spec.md §4.E.
package encoding

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/sevenwolf/svr/internal/bufpool"
	"github.com/sevenwolf/svr/internal/frameprops"
	"github.com/sevenwolf/svr/internal/optstring"
	"github.com/sevenwolf/svr/internal/svrerr"
)

// Encoding is a named factory for Encoders. Options describe tuning
// parameters parsed out of the option string (e.g. "jpeg;quality=90").
type Encoding interface {
	Name() string
	NewEncoder(opts *optstring.Options, props frameprops.Properties) (Encoder, error)
}

// Encoder transforms frames into a byte stream in chunks, with
// backpressure exposed via DataReady so a caller can drain before the
// internal buffer grows unbounded. A single Encoder must not be called
// concurrently (spec.md §4.F).
type Encoder interface {
	// Encode consumes one frame, appending its encoded bytes to the
	// internal undrained buffer.
	Encode(frame frameprops.Frame) error
	// DataReady returns the number of undrained bytes currently buffered.
	DataReady() int
	// ReadData copies up to len(buf) undrained bytes into buf and
	// returns the number of bytes written.
	ReadData(buf []byte) int
}

// Decoder is implemented by encodings that can reverse their own framed
// Encode output back into a Frame. Reencoder uses it to transcode between
// differing client-visible encodings; raw and jpeg both implement it,
// since a reencode target needs real pixel data to re-encode into.
type Decoder interface {
	Decode(data []byte, props frameprops.Properties) (frameprops.Frame, error)
}

// UnframeOne strips one length-prefixed record from the front of data,
// returning its payload and the remaining bytes. It is the inverse of
// chunkBuffer.writeFramed, used on the broker side to recover frame
// boundaries out of a Data message payload before reencoding it.
func UnframeOne(data []byte) (payload []byte, rest []byte, err error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("encoding: truncated frame header (%d bytes)", len(data))
	}
	n := binary.BigEndian.Uint32(data[:4])
	data = data[4:]
	if uint64(len(data)) < uint64(n) {
		return nil, nil, fmt.Errorf("encoding: truncated frame payload: want %d, have %d", n, len(data))
	}
	return data[:n], data[n:], nil
}

// Registry is a concurrency-safe name→Encoding lookup table.
type Registry struct {
	mu sync.RWMutex
	m  map[string]Encoding
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{m: make(map[string]Encoding)}
}

// Register adds or replaces the Encoding under its own Name().
func (r *Registry) Register(e Encoding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[e.Name()] = e
}

// Lookup resolves name to an Encoding, or a NoSuchEncodingError.
func (r *Registry) Lookup(name string) (Encoding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.m[name]
	if !ok {
		return nil, &svrerr.NoSuchEncodingError{Op: "encoding.Lookup", Name: name}
	}
	return e, nil
}

// Default is the process-wide registry consulted by client Sources.
// It holds raw and jpeg only; internal/broker registers ffv1 into its own
// separate Registry, never into Default.
var Default = NewRegistry()

func init() {
	Default.Register(rawEncoding{})
	Default.Register(jpegEncoding{})
}

// chunkBuffer is the shared undrained-output buffer implementation for the
// encoders below: bytes accumulate in a bytes.Buffer and are handed out in
// caller-sized chunks via ReadData. Only the 4-byte frame header is taken
// from internal/bufpool; the bytes.Buffer itself grows as needed.
type chunkBuffer struct {
	out bytes.Buffer
}

func (c *chunkBuffer) writeFramed(payload []byte) {
	hdr := bufpool.Get(4)
	defer bufpool.Put(hdr)
	binary.BigEndian.PutUint32(hdr, uint32(len(payload)))
	c.out.Write(hdr)
	c.out.Write(payload)
}

func (c *chunkBuffer) DataReady() int { return c.out.Len() }

func (c *chunkBuffer) ReadData(buf []byte) int {
	n, _ := c.out.Read(buf)
	return n
}
