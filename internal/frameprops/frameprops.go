// Package frameprops describes the shape of a video frame: its pixel
// dimensions, per-channel bit depth, and channel count. Properties are
// treated as immutable once attached to a Source, matching spec.md's "no
// mutation after insertion into a Source" rule; Clone/Equal give callers
// value semantics without reaching into the original.
package frameprops

import "gocv.io/x/gocv"

// DepthTag names the per-channel pixel depth, the Go analog of IplImage's
// IPL_DEPTH_* constants.
type DepthTag string

const (
	Depth8U  DepthTag = "8U"
	Depth8S  DepthTag = "8S"
	Depth16U DepthTag = "16U"
	Depth16S DepthTag = "16S"
	Depth32S DepthTag = "32S"
	Depth32F DepthTag = "32F"
	Depth64F DepthTag = "64F"
)

// Properties is the immutable (width, height, depth, channels) quadruple
// that every Encoder is constructed against.
type Properties struct {
	Width    int
	Height   int
	Depth    DepthTag
	Channels int
}

// New builds Properties directly from raw fields, mirroring the
// constructor SVR_FrameProperties_new + manual field assignment used at
// call sites in lib/source.c.
func New(width, height int, depth DepthTag, channels int) Properties {
	return Properties{Width: width, Height: height, Depth: depth, Channels: channels}
}

// Clone returns a value copy. Go struct assignment is already a deep copy
// for Properties since it holds no pointers, so Clone exists to mirror the
// explicit clone call in the original pipeline and to make the no-aliasing
// intent visible at call sites (spec.md §8 property 3).
func (p Properties) Clone() Properties { return p }

// Equal reports whether p and other describe the same frame shape.
func (p Properties) Equal(other Properties) bool {
	return p.Width == other.Width &&
		p.Height == other.Height &&
		p.Depth == other.Depth &&
		p.Channels == other.Channels
}

// Frame wraps a decoded image buffer. It is backed by a gocv.Mat so that
// real pixel data (not just dimensions) can flow through the Encoder
// pipeline, the same representation n0remac-robot-webrtc's cvpipe package
// uses for its CV stage.
type Frame struct {
	Mat gocv.Mat
}

// NewFrameFromBytes builds a Frame from packed pixel bytes with the given
// shape, the Go equivalent of constructing an IplImage header over a raw
// buffer.
func NewFrameFromBytes(width, height int, depth DepthTag, channels int, data []byte) (Frame, error) {
	mat, err := gocv.NewMatFromBytes(height, width, matType(depth, channels), data)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Mat: mat}, nil
}

// Close releases the underlying Mat's native memory.
func (f Frame) Close() error { return f.Mat.Close() }

// Bytes returns the frame's packed pixel bytes.
func (f Frame) Bytes() []byte { return f.Mat.ToBytes() }

// FromFrame derives Properties from a Frame's actual Mat dimensions, the Go
// equivalent of lib/source.c's inline field copy in SVR_Source_sendFrame
// ("frame_properties->width = frame->width; ...").
func FromFrame(f Frame) Properties {
	return Properties{
		Width:    f.Mat.Cols(),
		Height:   f.Mat.Rows(),
		Depth:    depthFromMatType(f.Mat.Type()),
		Channels: f.Mat.Channels(),
	}
}

// depthCodes maps each DepthTag to the signed bit-depth integer carried on
// the wire by the "W,H,D,C" FrameProperties descriptor (spec.md §6: "four
// decimal integers", and §8 S1's literal "640,480,8,3" for an 8U frame) —
// magnitude is the per-channel bit width, sign distinguishes U from S, and
// float depths are carried positive since no signed 32-bit float exists to
// collide with Depth32S's -32.
var depthCodes = [...]struct {
	tag  DepthTag
	code int
}{
	{Depth8U, 8},
	{Depth8S, -8},
	{Depth16U, 16},
	{Depth16S, -16},
	{Depth32S, -32},
	{Depth32F, 32},
	{Depth64F, 64},
}

// DepthCode returns the wire-level decimal depth code for d.
func DepthCode(d DepthTag) int {
	for _, e := range depthCodes {
		if e.tag == d {
			return e.code
		}
	}
	return 8
}

// DepthFromCode reverses DepthCode.
func DepthFromCode(code int) DepthTag {
	for _, e := range depthCodes {
		if e.code == code {
			return e.tag
		}
	}
	return Depth8U
}

func matType(depth DepthTag, channels int) gocv.MatType {
	var base gocv.MatType
	switch depth {
	case Depth8S:
		base = gocv.MatTypeCV8S
	case Depth16U:
		base = gocv.MatTypeCV16U
	case Depth16S:
		base = gocv.MatTypeCV16S
	case Depth32S:
		base = gocv.MatTypeCV32S
	case Depth32F:
		base = gocv.MatTypeCV32F
	case Depth64F:
		base = gocv.MatTypeCV64F
	default:
		base = gocv.MatTypeCV8U
	}
	return base + gocv.MatType((channels-1)<<3)
}

func depthFromMatType(t gocv.MatType) DepthTag {
	switch t & gocv.MatType(0x07) { // low 3 bits encode depth; channel count is packed above them
	case gocv.MatTypeCV8S:
		return Depth8S
	case gocv.MatTypeCV16U:
		return Depth16U
	case gocv.MatTypeCV16S:
		return Depth16S
	case gocv.MatTypeCV32S:
		return Depth32S
	case gocv.MatTypeCV32F:
		return Depth32F
	case gocv.MatTypeCV64F:
		return Depth64F
	default:
		return Depth8U
	}
}
