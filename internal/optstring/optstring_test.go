package optstring

import (
	"testing"

	"github.com/sevenwolf/svr/internal/svrerr"
)

func TestParseNameOnly(t *testing.T) {
	o, err := Parse("jpeg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Name != "jpeg" {
		t.Fatalf("Name = %q", o.Name)
	}
	if len(o.Pairs) != 0 {
		t.Fatalf("expected no pairs, got %+v", o.Pairs)
	}
}

func TestParseKeyValuePairs(t *testing.T) {
	o, err := Parse("jpeg;quality=90;chroma=420")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Name != "jpeg" {
		t.Fatalf("Name = %q", o.Name)
	}
	if v, ok := o.Get("quality"); !ok || v != "90" {
		t.Fatalf("quality = %q, %v", v, ok)
	}
	if v, ok := o.Get("chroma"); !ok || v != "420" {
		t.Fatalf("chroma = %q, %v", v, ok)
	}
}

func TestParseFlagKeyNoValue(t *testing.T) {
	o, err := Parse("jpeg;progressive")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := o.Get("progressive"); !ok || v != "" {
		t.Fatalf("progressive = %q, %v", v, ok)
	}
}

// S3: a bogus name should parse fine; the caller's encoding lookup is what fails.
func TestParseBogusNameStillParses(t *testing.T) {
	o, err := Parse("bogus;q=90")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if o.Name != "bogus" {
		t.Fatalf("Name = %q", o.Name)
	}
}

// S4: ";;;" must fail with a ParseError positioned at the first ';'.
func TestParseEmptyNameErrorsAtFirstSemicolon(t *testing.T) {
	_, err := Parse(";;;")
	if err == nil {
		t.Fatalf("expected parse error")
	}
	var pe *svrerr.ParseError
	if !svrerr.IsParseError(err) {
		t.Fatalf("expected ParseError, got %T: %v", err, err)
	}
	pe = err.(*svrerr.ParseError)
	if pe.Position != 0 {
		t.Fatalf("expected error position 0, got %d", pe.Position)
	}
}

func TestParseEmptyKeyErrors(t *testing.T) {
	_, err := Parse("jpeg;;quality=90")
	if err == nil {
		t.Fatalf("expected parse error for empty key segment")
	}
	if !svrerr.IsParseError(err) {
		t.Fatalf("expected ParseError, got %T", err)
	}
}

func TestParseEmptyKeyBeforeEquals(t *testing.T) {
	_, err := Parse("jpeg;=90")
	if err == nil {
		t.Fatalf("expected parse error for empty key before '='")
	}
}

func TestGetOnNilOptions(t *testing.T) {
	var o *Options
	if v, ok := o.Get("x"); ok || v != "" {
		t.Fatalf("expected zero value for nil Options")
	}
}
