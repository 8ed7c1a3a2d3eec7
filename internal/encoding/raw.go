package encoding

import (
	"github.com/sevenwolf/svr/internal/frameprops"
	"github.com/sevenwolf/svr/internal/optstring"
)

// rawEncoding emits uncompressed planar/packed frame bytes with a 4-byte
// big-endian length prefix per frame, giving a headerless stream a
// recoverable frame boundary (spec.md §4.E "headerless framing of frame
// size" / §8 property 5, the raw round-trip test).
type rawEncoding struct{}

func (rawEncoding) Name() string { return "raw" }

// Decode reconstructs a Frame from the packed bytes written by rawEncoder,
// satisfying the Decoder interface used by internal/reencoder.
func (rawEncoding) Decode(data []byte, props frameprops.Properties) (frameprops.Frame, error) {
	return frameprops.NewFrameFromBytes(props.Width, props.Height, props.Depth, props.Channels, data)
}

func (rawEncoding) NewEncoder(opts *optstring.Options, props frameprops.Properties) (Encoder, error) {
	return &rawEncoder{props: props}, nil
}

type rawEncoder struct {
	chunkBuffer
	props frameprops.Properties
}

func (e *rawEncoder) Encode(frame frameprops.Frame) error {
	e.writeFramed(frame.Bytes())
	return nil
}
