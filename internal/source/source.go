// Package source implements the client-side Source (producer) handle:
// lifecycle, encoding negotiation, frame-property lock, and the per-frame
// encode-and-send loop. It is grounded line-for-line on
// _examples/original_source/lib/source.c.
package source

import (
	"fmt"

	"github.com/sevenwolf/svr/internal/arena"
	"github.com/sevenwolf/svr/internal/bufpool"
	"github.com/sevenwolf/svr/internal/comm"
	"github.com/sevenwolf/svr/internal/encoding"
	"github.com/sevenwolf/svr/internal/frameprops"
	"github.com/sevenwolf/svr/internal/lockable"
	"github.com/sevenwolf/svr/internal/logger"
	"github.com/sevenwolf/svr/internal/optstring"
	"github.com/sevenwolf/svr/internal/svrerr"
)

const defaultPayloadBufferSize = 4 * 1024

// Source is a client-owned producer handle. Only one goroutine may be
// inside SendFrame at a time (spec.md §5); Lockable enforces that.
type Source struct {
	lock *lockable.Lockable

	conn *comm.Conn
	name string

	encoding        encoding.Encoding
	encodingOptions *optstring.Options
	encoder         encoding.Encoder
	frameProperties *frameprops.Properties

	payloadBufferSize int
}

// Open creates a new client source named name, registering it with the
// broker over conn via "Source.open client <name>". On success it attempts
// SetEncoding("jpeg"), falling back to SetEncoding("raw") if jpeg is not
// registered on the broker (spec.md §6 default encoding attempt order).
func Open(conn *comm.Conn, name string) (*Source, error) {
	req := arena.NewFrom("Source.open", "client", name)
	resp, err := conn.SendMessage(req, true)
	req.Release()
	if err != nil {
		return nil, err
	}
	defer resp.Release()
	if err := comm.ParseResponse("Source.open", resp); err != nil {
		return nil, err
	}

	s := &Source{
		lock:              lockable.New(),
		conn:              conn,
		name:              name,
		payloadBufferSize: defaultPayloadBufferSize,
	}

	if err := s.SetEncoding("jpeg"); err != nil {
		if err := s.SetEncoding("raw"); err != nil {
			return s, nil // matches lib/source.c: neither attempt's failure is fatal to SVR_Source_new
		}
	}

	return s, nil
}

// Name returns the source's immutable name.
func (s *Source) Name() string { return s.name }

// SetPayloadBufferSize overrides the per-chunk payload size used when
// draining the encoder during SendFrame (spec.md §6: default 4096 bytes).
func (s *Source) SetPayloadBufferSize(n int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if n > 0 {
		s.payloadBufferSize = n
	}
}

// Close closes and destroys the source, orphaning any streams attached to
// it broker-side ("Source.close <name>").
func (s *Source) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	req := arena.NewFrom("Source.close", s.name)
	resp, err := s.conn.SendMessage(req, true)
	req.Release()
	if err != nil {
		return err
	}
	defer resp.Release()
	return comm.ParseResponse("Source.close", resp)
}

// SetEncoding parses descriptor (e.g. "jpeg;quality=90") and, if it names a
// registered encoding, asks the broker to adopt it via
// "Source.setEncoding <name> <descriptor>". The local encoding is only
// committed once the broker acknowledges success (lib/source.c commits
// only after SVR_SUCCESS).
func (s *Source) SetEncoding(descriptor string) error {
	opts, err := optstring.Parse(descriptor)
	if err != nil {
		if pe, ok := err.(*svrerr.ParseError); ok {
			logger.Logger().Debug("encoding descriptor parse error", "source", s.name, "descriptor", descriptor, "position", pe.Position)
		}
		return err
	}

	enc, err := encoding.Default.Lookup(opts.Name)
	if err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	req := arena.NewFrom("Source.setEncoding", s.name, descriptor)
	resp, sendErr := s.conn.SendMessage(req, true)
	req.Release()
	if sendErr != nil {
		return sendErr
	}
	defer resp.Release()
	if err := comm.ParseResponse("Source.setEncoding", resp); err != nil {
		return err
	}

	s.encoding = enc
	s.encodingOptions = opts
	return nil
}

// SetFrameProperties explicitly fixes the source's frame shape via
// "Source.setFrameProperties <name> <w>,<h>,<depth>,<channels>". If never
// called, the properties are derived from the first frame sent to
// SendFrame.
func (s *Source) SetFrameProperties(props frameprops.Properties) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.setFrameProperties(props)
}

// setFrameProperties assumes the caller already holds s.lock.
func (s *Source) setFrameProperties(props frameprops.Properties) error {
	req := arena.NewFrom(
		"Source.setFrameProperties",
		s.name,
		fmt.Sprintf("%d,%d,%d,%d", props.Width, props.Height, frameprops.DepthCode(props.Depth), props.Channels),
	)
	resp, err := s.conn.SendMessage(req, true)
	req.Release()
	if err != nil {
		return err
	}
	defer resp.Release()
	if err := comm.ParseResponse("Source.setFrameProperties", resp); err != nil {
		return err
	}

	committed := props.Clone()
	s.frameProperties = &committed
	return nil
}

// SendFrame encodes frame and transmits the resulting bytes as one or more
// fire-and-forget "Data <name> <bytes>" messages. If no frame properties
// have been set yet, they are derived from this frame and committed via
// setFrameProperties before encoding. A frame whose shape no longer
// matches the committed properties is rejected with INVALIDARGUMENT and a
// WARNING is logged, without sending any Data message (spec.md §8 S5).
func (s *Source) SendFrame(frame frameprops.Frame) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.encoding == nil {
		return &svrerr.InvalidStateError{Op: "source.SendFrame", State: "NO_ENCODING"}
	}

	if s.frameProperties == nil {
		derived := frameprops.FromFrame(frame)
		if err := s.setFrameProperties(derived); err != nil {
			return err
		}
	}

	if s.encoder == nil {
		enc, err := s.encoding.NewEncoder(s.encodingOptions, *s.frameProperties)
		if err != nil {
			return err
		}
		s.encoder = enc
	}

	got := frameprops.FromFrame(frame)
	if !got.Equal(*s.frameProperties) {
		logger.Logger().Warn("frame size changed", "source", s.name, "got", got, "want", *s.frameProperties)
		return &svrerr.InvalidArgumentError{Op: "source.SendFrame", Err: fmt.Errorf("frame shape %+v does not match %+v", got, *s.frameProperties)}
	}

	if err := s.encoder.Encode(frame); err != nil {
		return err
	}

	// Each chunk gets its own pooled buffer rather than reusing one array
	// across iterations: SendMessage(m, false) hands the payload to the
	// write loop and returns immediately, so a shared buffer would risk the
	// next readData overwriting bytes the write loop hasn't sent yet
	// (spec.md §4.H: "Comm must have finished using the buffer before the
	// next readData overwrites it").
	for s.encoder.DataReady() > 0 {
		want := s.encoder.DataReady()
		if want > s.payloadBufferSize {
			want = s.payloadBufferSize
		}
		buf := bufpool.Get(want)
		n := s.encoder.ReadData(buf)
		m := arena.NewFrom("Data", s.name)
		m.Payload = buf[:n]
		if _, err := s.conn.SendMessage(m, false); err != nil {
			m.Release()
			return err
		}
		m.Release()
	}

	return nil
}
