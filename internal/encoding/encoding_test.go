package encoding

import (
	"encoding/binary"
	"testing"

	"github.com/sevenwolf/svr/internal/frameprops"
	"github.com/sevenwolf/svr/internal/optstring"
	"github.com/sevenwolf/svr/internal/svrerr"
)

func TestDefaultRegistrySeeded(t *testing.T) {
	if _, err := Default.Lookup("raw"); err != nil {
		t.Fatalf("expected raw registered: %v", err)
	}
	if _, err := Default.Lookup("jpeg"); err != nil {
		t.Fatalf("expected jpeg registered: %v", err)
	}
}

func TestLookupUnknownEncoding(t *testing.T) {
	_, err := Default.Lookup("bogus")
	if err == nil {
		t.Fatalf("expected error for unknown encoding")
	}
	if !svrerr.Is(err) || svrerr.CodeOf(err) != svrerr.NoSuchEncoding {
		t.Fatalf("expected NoSuchEncoding code, got %v", err)
	}
}

func TestRegisterThenLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(rawEncoding{})
	enc, err := r.Lookup("raw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enc.Name() != "raw" {
		t.Fatalf("Name() = %q", enc.Name())
	}
}

func TestRawEncoderRoundTrip(t *testing.T) {
	props := frameprops.New(4, 2, frameprops.Depth8U, 3)
	raw := rawEncoding{}
	enc, err := raw.NewEncoder(&optstring.Options{Name: "raw"}, props)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}

	data := make([]byte, props.Width*props.Height*props.Channels)
	for i := range data {
		data[i] = byte(i)
	}
	frame, err := frameprops.NewFrameFromBytes(props.Width, props.Height, props.Depth, props.Channels, data)
	if err != nil {
		t.Fatalf("NewFrameFromBytes: %v", err)
	}
	defer frame.Close()

	if err := enc.Encode(frame); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if enc.DataReady() == 0 {
		t.Fatalf("expected data ready after encode")
	}

	out := make([]byte, enc.DataReady())
	n := enc.ReadData(out)
	if n != len(out) {
		t.Fatalf("ReadData returned %d, want %d", n, len(out))
	}

	length := binary.BigEndian.Uint32(out[:4])
	if int(length) != len(data) {
		t.Fatalf("frame length prefix = %d, want %d", length, len(data))
	}
	payload := out[4 : 4+length]
	for i, b := range payload {
		if b != data[i] {
			t.Fatalf("byte %d mismatch: got %d want %d", i, b, data[i])
		}
	}
	if enc.DataReady() != 0 {
		t.Fatalf("expected buffer drained after ReadData covering all bytes")
	}
}

func TestRawEncoderMultipleFramesQueue(t *testing.T) {
	props := frameprops.New(2, 2, frameprops.Depth8U, 1)
	raw := rawEncoding{}
	enc, _ := raw.NewEncoder(&optstring.Options{Name: "raw"}, props)

	frame1, _ := frameprops.NewFrameFromBytes(2, 2, frameprops.Depth8U, 1, []byte{1, 2, 3, 4})
	defer frame1.Close()
	frame2, _ := frameprops.NewFrameFromBytes(2, 2, frameprops.Depth8U, 1, []byte{5, 6, 7, 8})
	defer frame2.Close()

	if err := enc.Encode(frame1); err != nil {
		t.Fatalf("encode frame1: %v", err)
	}
	if err := enc.Encode(frame2); err != nil {
		t.Fatalf("encode frame2: %v", err)
	}

	want := 2 * (4 + 4) // two frames, each 4-byte header + 4-byte payload
	if enc.DataReady() != want {
		t.Fatalf("DataReady = %d, want %d", enc.DataReady(), want)
	}
}
