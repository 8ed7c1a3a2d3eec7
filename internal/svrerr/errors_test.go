package svrerr

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestCodeOfClassification(t *testing.T) {
	root := stdErrors.New("root cause")
	wrapped := fmt.Errorf("adding context: %w", root)
	pe := &ParseError{Op: "optstring.Parse", Input: "jpeg;q=bad", Position: 8, Rune: 'b'}
	if CodeOf(pe) != ParseError_ {
		t.Fatalf("expected ParseError_ code, got %v", CodeOf(pe))
	}
	ise := &InvalidStateError{Op: "source.setEncoding", State: "CLOSED", Err: wrapped}
	if CodeOf(ise) != InvalidState {
		t.Fatalf("expected InvalidState code, got %v", CodeOf(ise))
	}
	if !stdErrors.Is(ise, root) {
		t.Fatalf("expected errors.Is to reach root cause through wrapping")
	}
}

func TestIsHelpers(t *testing.T) {
	cf := &CommFailureError{Op: "comm.send", Err: stdErrors.New("connection reset")}
	if !IsCommFailure(cf) {
		t.Fatalf("expected IsCommFailure true")
	}
	if IsParseError(cf) {
		t.Fatalf("comm failure should not classify as parse error")
	}

	pe := &ParseError{Op: "optstring.Parse", Input: "x", Position: 0, Rune: 'x'}
	if !IsParseError(pe) {
		t.Fatalf("expected IsParseError true")
	}
	if !Is(pe) {
		t.Fatalf("expected Is(pe) true")
	}
}

func TestCodeOfNilAndUnclassified(t *testing.T) {
	if CodeOf(nil) != Success {
		t.Fatalf("expected Success for nil error")
	}
	plain := stdErrors.New("unclassified")
	if CodeOf(plain) != CommFailure {
		t.Fatalf("expected unclassified errors to default to CommFailure, got %v", CodeOf(plain))
	}
	if Is(plain) {
		t.Fatalf("plain error should not match Is")
	}
}

func TestFromCodeRoundTrip(t *testing.T) {
	cases := []struct {
		code Code
		want Code
	}{
		{ParseError_, ParseError_},
		{NoSuchEncoding, NoSuchEncoding},
		{InvalidState, InvalidState},
		{InvalidArgument, InvalidArgument},
		{CommFailure, CommFailure},
		{NameClash, NameClash},
		{NoSuchSource, NoSuchSource},
	}
	for _, c := range cases {
		err := FromCode(c.code, "op", "detail")
		if got := CodeOf(err); got != c.want {
			t.Fatalf("FromCode(%v) round-tripped to %v, want %v", c.code, got, c.want)
		}
	}
	if err := FromCode(Success, "op", ""); err != nil {
		t.Fatalf("FromCode(Success) should be nil, got %v", err)
	}
}

func TestCodeString(t *testing.T) {
	if Success.String() != "SUCCESS" {
		t.Fatalf("unexpected String(): %s", Success.String())
	}
	if s := Code(99).String(); s == "" {
		t.Fatalf("expected non-empty string for unknown code")
	}
}

func TestNameClashAndNoSuchSource(t *testing.T) {
	nc := &NameClashError{Op: "source.open", Name: "cam1"}
	if CodeOf(nc) != NameClash {
		t.Fatalf("expected NameClash code")
	}
	if nc.Error() == "" {
		t.Fatalf("expected non-empty error message")
	}

	ns := &NoSuchSourceError{Op: "stream.open", Name: "ghost"}
	if CodeOf(ns) != NoSuchSource {
		t.Fatalf("expected NoSuchSource code")
	}
}

func TestInvalidArgumentUnwrap(t *testing.T) {
	root := stdErrors.New("dimension mismatch")
	ia := &InvalidArgumentError{Op: "source.sendFrame", Err: root}
	if !stdErrors.Is(ia, root) {
		t.Fatalf("expected errors.Is to unwrap to root cause")
	}
}
