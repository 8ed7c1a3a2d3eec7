package encoding

import (
	"errors"

	"github.com/sevenwolf/svr/internal/frameprops"
	"github.com/sevenwolf/svr/internal/optstring"
)

var errEmptyFFV1Record = errors.New("encoding: empty ffv1 record")

// FFV1Encoding is the broker-only lossless delta encoding used as a
// Reencoder target (spec.md §4.E: "ffv1 ... (broker-side)"). It is not
// registered on encoding.Default at package init, unlike raw/jpeg; the
// broker registers it explicitly at startup so client sources can never
// negotiate it directly (spec.md's Source.setEncoding only ever resolves
// client-visible encodings).
//
// The frame-differencing scheme below borrows FFV1's name and its
// intra/inter frame distinction, not its real bitstream: every 30th frame
// (or the first) is coded intra (full bytes); the rest are coded as an
// XOR delta against the previous frame, which is cheap and genuinely
// reduces bytes on video with static backgrounds without requiring a real
// range coder.
type FFV1Encoding struct{}

func (FFV1Encoding) Name() string { return "ffv1" }

func (FFV1Encoding) NewEncoder(opts *optstring.Options, props frameprops.Properties) (Encoder, error) {
	return &ffv1Encoder{props: props}, nil
}

const ffv1KeyframeInterval = 30

type ffv1Encoder struct {
	chunkBuffer
	props   frameprops.Properties
	prev    []byte
	frameNo int
}

// frame tags written as the first byte of each encoded record.
const (
	ffv1FrameIntra byte = 0
	ffv1FrameInter byte = 1
)

func (e *ffv1Encoder) Encode(frame frameprops.Frame) error {
	data := frame.Bytes()

	if e.prev == nil || len(e.prev) != len(data) || e.frameNo%ffv1KeyframeInterval == 0 {
		e.writeFramed(append([]byte{ffv1FrameIntra}, data...))
	} else {
		delta := make([]byte, len(data))
		for i := range data {
			delta[i] = data[i] ^ e.prev[i]
		}
		e.writeFramed(append([]byte{ffv1FrameInter}, delta...))
	}

	if e.prev == nil || len(e.prev) != len(data) {
		e.prev = make([]byte, len(data))
	}
	copy(e.prev, data)
	e.frameNo++
	return nil
}

// Decode reverses one ffv1-encoded record using a fresh FFV1Decoder, so no
// state carries across calls: an inter record decoded here has no previous
// frame to apply its delta to and comes back as the raw delta bytes.
// Stateful decoding of a record sequence needs a persistent FFV1Decoder,
// which internal/reencoder allocates once per stream.
func (FFV1Encoding) Decode(data []byte, props frameprops.Properties) (frameprops.Frame, error) {
	return NewFFV1Decoder().Decode(data, props)
}

// IsKeyframeRecord reports whether an UnframeOne-stripped ffv1 record is
// intra-coded, letting a passthrough reencoder gate on GOP boundaries
// without performing a full decode.
func IsKeyframeRecord(payload []byte) bool {
	return len(payload) > 0 && payload[0] == ffv1FrameIntra
}

// FFV1Decoder holds the running "previous frame" state an ffv1 delta
// stream decodes against. Unlike the stateless raw/jpeg Decoder methods,
// ffv1 needs one of these per stream.
type FFV1Decoder struct {
	prev []byte
}

// NewFFV1Decoder returns a decoder with no prior frame.
func NewFFV1Decoder() *FFV1Decoder { return &FFV1Decoder{} }

// Decode reverses one ffv1-tagged record (first byte ffv1FrameIntra/Inter,
// remaining bytes the frame data or XOR delta) back into a Frame.
func (d *FFV1Decoder) Decode(data []byte, props frameprops.Properties) (frameprops.Frame, error) {
	if len(data) == 0 {
		return frameprops.Frame{}, errEmptyFFV1Record
	}
	tag, body := data[0], data[1:]

	var out []byte
	switch tag {
	case ffv1FrameIntra:
		out = append([]byte(nil), body...)
	default: // ffv1FrameInter
		out = make([]byte, len(body))
		for i := range body {
			if i < len(d.prev) {
				out[i] = body[i] ^ d.prev[i]
			} else {
				out[i] = body[i]
			}
		}
	}

	if len(d.prev) != len(out) {
		d.prev = make([]byte, len(out))
	}
	copy(d.prev, out)

	return frameprops.NewFrameFromBytes(props.Width, props.Height, props.Depth, props.Channels, out)
}
