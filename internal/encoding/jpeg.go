package encoding

import (
	"strconv"

	"gocv.io/x/gocv"

	"github.com/sevenwolf/svr/internal/frameprops"
	"github.com/sevenwolf/svr/internal/optstring"
	"github.com/sevenwolf/svr/internal/svrerr"
)

const defaultJPEGQuality = 85

// jpegEncoding emits one length-prefixed JPEG-compressed image per frame.
type jpegEncoding struct{}

func (jpegEncoding) Name() string { return "jpeg" }

// Decode reverses a JPEG-compressed frame back into pixel data, satisfying
// the Decoder interface used by internal/reencoder.
func (jpegEncoding) Decode(data []byte, props frameprops.Properties) (frameprops.Frame, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return frameprops.Frame{}, err
	}
	return frameprops.Frame{Mat: mat}, nil
}

func (jpegEncoding) NewEncoder(opts *optstring.Options, props frameprops.Properties) (Encoder, error) {
	quality := defaultJPEGQuality
	if v, ok := opts.Get("quality"); ok {
		q, err := strconv.Atoi(v)
		if err != nil || q < 1 || q > 100 {
			return nil, &svrerr.ParseError{Op: "jpeg.NewEncoder", Input: v, Position: 0}
		}
		quality = q
	}
	return &jpegEncoder{params: []int{gocv.IMWriteJpegQuality, quality}}, nil
}

type jpegEncoder struct {
	chunkBuffer
	params []int
}

func (e *jpegEncoder) Encode(frame frameprops.Frame) error {
	buf, err := gocv.IMEncodeWithParams(".jpg", frame.Mat, e.params)
	if err != nil {
		return err
	}
	defer buf.Close()
	e.writeFramed(buf.GetBytes())
	return nil
}
