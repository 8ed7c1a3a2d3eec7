// Package optstring parses the option-string grammar used throughout SVR to
// describe an encoding (or, server-side, a source type) plus its tuning
// parameters: "name(;key(=value)?)*", e.g. "jpeg;quality=90;chroma".
package optstring

import (
	"strings"

	"github.com/sevenwolf/svr/internal/svrerr"
)

// Options is the parsed form of an option string: the leading name and the
// semicolon-separated key/value pairs that follow it. This supersedes the
// original C implementation's convention of stuffing the name into the
// parsed dictionary under a "%name" sentinel key; Name and Pairs are kept
// as separate fields on this struct instead.
type Options struct {
	Name  string
	Pairs map[string]string
}

// Get returns the value for key and whether it was present. A key present
// with no "=value" (e.g. "jpeg;progressive") reports ("", true).
func (o *Options) Get(key string) (string, bool) {
	if o == nil {
		return "", false
	}
	v, ok := o.Pairs[key]
	return v, ok
}

// Equal reports whether o and other carry the same tuning parameters (the
// name is deliberately not compared — callers that already know the two
// encodings share a name use Equal purely to gate DirectCopy eligibility on
// matching options, e.g. a source encoded "jpeg;quality=90" is not
// byte-compatible with a stream that negotiated "jpeg;quality=30").
func (o *Options) Equal(other *Options) bool {
	if o == nil || other == nil {
		return o == nil && other == nil
	}
	if len(o.Pairs) != len(other.Pairs) {
		return false
	}
	for k, v := range o.Pairs {
		ov, ok := other.Pairs[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// Parse parses s according to "name(;key(=value)?)*". The name and every
// key must be non-empty; a "=" with nothing after it yields an empty
// value, and "=" is not permitted inside a key token itself.
//
// On failure, the returned error is an *svrerr.ParseError carrying the
// byte offset of the first offending character, replacing the original
// implementation's process-global "last parse error position" accessor
// (a thread-safety hazard not carried forward).
func Parse(s string) (*Options, error) {
	segments := strings.Split(s, ";")

	name := segments[0]
	if name == "" {
		return nil, parseErr(s, 0)
	}

	opts := &Options{Name: name, Pairs: make(map[string]string, len(segments)-1)}

	pos := len(name)
	for _, seg := range segments[1:] {
		segStart := pos + 1 // account for the ';' separator just consumed
		if seg == "" {
			return nil, parseErr(s, segStart)
		}

		key := seg
		value := ""
		if eq := strings.IndexByte(seg, '='); eq >= 0 {
			key = seg[:eq]
			value = seg[eq+1:]
		}
		if key == "" {
			return nil, parseErr(s, segStart)
		}

		opts.Pairs[key] = value
		pos = segStart + len(seg)
	}

	return opts, nil
}

func parseErr(s string, pos int) error {
	var r rune
	if pos < len(s) {
		r = rune(s[pos])
	}
	return &svrerr.ParseError{Op: "optstring.Parse", Input: s, Position: pos, Rune: r}
}
