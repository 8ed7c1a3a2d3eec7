package comm

import (
	"errors"
	"strconv"

	"github.com/sevenwolf/svr/internal/arena"
	"github.com/sevenwolf/svr/internal/svrerr"
)

var errNoResponse = errors.New("empty response message")

// ParseResponse decodes the broker's standardized reply shape: component 0
// is the numeric status code as a string, remaining components are
// diagnostic detail. A SUCCESS code yields a nil error; any other code
// yields the matching *svrerr type so callers can use svrerr.Is*
// classification helpers directly on the result.
func ParseResponse(op string, resp *arena.Message) error {
	if resp == nil || resp.Count() == 0 {
		return &svrerr.CommFailureError{Op: op, Err: errNoResponse}
	}

	code, err := strconv.Atoi(resp.Component(0))
	if err != nil {
		return &svrerr.CommFailureError{Op: op, Err: err}
	}

	detail := ""
	if resp.Count() > 1 {
		detail = resp.Component(1)
	}
	return svrerr.FromCode(svrerr.Code(code), op, detail)
}
