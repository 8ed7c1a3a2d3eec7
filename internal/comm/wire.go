package comm

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/sevenwolf/svr/internal/arena"
)

// Wire framing for an SVR Message: a 4-byte big-endian component count,
// then per component a 4-byte length + UTF-8 bytes, then an 8-byte payload
// length + payload bytes (0 length = no payload). This is a flat
// length-prefixed codec in the same encoding/binary style as
// internal/rtmp/chunk's reader/writer, simplified because SVR messages are
// not interleaved across streams the way RTMP chunks are.
const maxComponentLength = 1 << 20 // 1 MiB guards against a corrupt length prefix

func writeMessage(w io.Writer, m *arena.Message) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(m.Count()))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("comm: write component count: %w", err)
	}

	for _, c := range m.Components {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(c)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return fmt.Errorf("comm: write component length: %w", err)
		}
		if _, err := io.WriteString(w, c); err != nil {
			return fmt.Errorf("comm: write component: %w", err)
		}
	}

	var payloadLen [8]byte
	binary.BigEndian.PutUint64(payloadLen[:], uint64(len(m.Payload)))
	if _, err := w.Write(payloadLen[:]); err != nil {
		return fmt.Errorf("comm: write payload length: %w", err)
	}
	if len(m.Payload) > 0 {
		if _, err := w.Write(m.Payload); err != nil {
			return fmt.Errorf("comm: write payload: %w", err)
		}
	}
	return nil
}

func readMessage(r io.Reader) (*arena.Message, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err // propagate io.EOF/net errors as-is for the caller to classify
	}
	count := binary.BigEndian.Uint32(hdr[:])

	m := arena.New(int(count))
	for i := range m.Components {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			m.Release()
			return nil, fmt.Errorf("comm: read component length: %w", err)
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		if n > maxComponentLength {
			m.Release()
			return nil, fmt.Errorf("comm: component length %d exceeds maximum", n)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			m.Release()
			return nil, fmt.Errorf("comm: read component: %w", err)
		}
		m.Components[i] = string(buf)
	}

	var payloadLen [8]byte
	if _, err := io.ReadFull(r, payloadLen[:]); err != nil {
		m.Release()
		return nil, fmt.Errorf("comm: read payload length: %w", err)
	}
	n := binary.BigEndian.Uint64(payloadLen[:])
	if n > 0 {
		if n > maxComponentLength {
			m.Release()
			return nil, fmt.Errorf("comm: payload length %d exceeds maximum", n)
		}
		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			m.Release()
			return nil, fmt.Errorf("comm: read payload: %w", err)
		}
		m.Payload = payload
	}

	return m, nil
}
