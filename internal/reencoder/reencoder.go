// Package reencoder adapts a source's encoding to the encoding a
// subscriber stream negotiated, mirroring include/svr/server/reencoder.h's tagged-sum design
// (FullReencoder, DirectCopyReencoder, FFV1Reencoder). Which variant is
// built is a pure function of (source encoding, stream encoding, options).
package reencoder

import (
	"github.com/sevenwolf/svr/internal/encoding"
	"github.com/sevenwolf/svr/internal/frameprops"
	"github.com/sevenwolf/svr/internal/optstring"
)

// Reencoder converts one chunk of source-encoded data (a single
// length-prefixed frame record as produced by an Encoder) into the bytes a
// subscriber stream expects, per include/svr/server/reencoder.h's
// SVRs_Reencoder_reencode, translated to Go idiom with an explicit error
// return instead of a bare byte count.
type Reencoder interface {
	Reencode(data []byte) ([]byte, error)
}

// New selects the cheapest Reencoder variant capable of adapting
// sourceEncoding to streamEncoding, per spec.md §4.J's case table:
//
//   - identical encoding AND compatible options -> DirectCopy (O(1) passthrough)
//   - FFV1 -> FFV1 (options necessarily identical, since ffv1 carries no
//     client-tunable parameters) -> the FFV1 variant, which rewrites only
//     container framing and gates on GOP boundaries rather than decoding,
//     so a subscriber attaching mid-stream is never handed an inter-frame
//     delta it has no reference frame for (spec.md §9)
//   - anything else -> Full decode/re-encode
//
// sourceOptions is the source's own negotiated option string, needed to
// tell "identical encoding, identical options" (DirectCopy-eligible) apart
// from "identical encoding, different tuning" (e.g. a source running
// "jpeg;quality=90" feeding a stream that negotiated "jpeg;quality=30" must
// still transcode).
func New(sourceEncoding, streamEncoding encoding.Encoding, sourceProps, streamProps frameprops.Properties, sourceOptions, streamOptions *optstring.Options) (Reencoder, error) {
	sameCodec := sourceEncoding.Name() == streamEncoding.Name()

	if sameCodec && sourceEncoding.Name() == "ffv1" {
		return &ffv1Reencoder{}, nil
	}
	if sameCodec && sourceOptions.Equal(streamOptions) {
		return directCopyReencoder{}, nil
	}

	streamEnc, err := streamEncoding.NewEncoder(streamOptions, streamProps)
	if err != nil {
		return nil, err
	}

	return &fullReencoder{
		decode:      sourceDecodeFunc(sourceEncoding, sourceProps),
		streamEnc:   streamEnc,
		streamProps: streamProps,
	}, nil
}

// sourceDecodeFunc returns a closure that turns one source-encoded record
// into a Frame, giving ffv1 its own persistent decode state (it is the
// only stateful encoding: inter frames decode against the previous frame)
// while raw/jpeg use their stateless Decoder method directly.
func sourceDecodeFunc(sourceEncoding encoding.Encoding, sourceProps frameprops.Properties) func([]byte) (frameprops.Frame, error) {
	if sourceEncoding.Name() == "ffv1" {
		d := encoding.NewFFV1Decoder()
		return func(data []byte) (frameprops.Frame, error) { return d.Decode(data, sourceProps) }
	}
	dec := sourceEncoding.(encoding.Decoder)
	return func(data []byte) (frameprops.Frame, error) { return dec.Decode(data, sourceProps) }
}

// directCopyReencoder passes source-encoded bytes through unchanged,
// the Go analog of DirectCopyReencoder.
type directCopyReencoder struct{}

func (directCopyReencoder) Reencode(data []byte) ([]byte, error) { return data, nil }

// fullReencoder decodes one source-encoded frame record and re-encodes it
// through the stream's own Encoder, the Go analog of FullReencoder.
type fullReencoder struct {
	decode      func([]byte) (frameprops.Frame, error)
	streamEnc   encoding.Encoder
	streamProps frameprops.Properties
}

func (r *fullReencoder) Reencode(data []byte) ([]byte, error) {
	payload, _, err := encoding.UnframeOne(data)
	if err != nil {
		return nil, err
	}
	frame, err := r.decode(payload)
	if err != nil {
		return nil, err
	}
	defer frame.Close()

	if err := r.streamEnc.Encode(frame); err != nil {
		return nil, err
	}
	out := make([]byte, r.streamEnc.DataReady())
	r.streamEnc.ReadData(out)
	return out, nil
}

// ffv1Reencoder handles the FFV1 -> FFV1 case (spec.md §4.J row 3):
// "rewrite container framing only, preserving intra/inter structure." It
// never decodes, so it never needs a prior-frame reference of its own —
// it passes each record's bytes through unchanged once attached, but
// drops every record before the next intra-coded one so a
// subscriber that attaches mid-stream (while the source is only emitting
// inter-frame deltas against frames it never saw) is never handed a delta
// it cannot resolve; started flips true on the first keyframe it observes
// and it forwards everything from there on, same as DirectCopy.
type ffv1Reencoder struct {
	started bool
}

func (r *ffv1Reencoder) Reencode(data []byte) ([]byte, error) {
	payload, _, err := encoding.UnframeOne(data)
	if err != nil {
		return nil, err
	}
	if !r.started {
		if !encoding.IsKeyframeRecord(payload) {
			return nil, nil
		}
		r.started = true
	}
	return data, nil
}
