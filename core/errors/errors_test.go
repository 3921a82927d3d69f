package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      *NotFoundError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with ID",
			err:      &NotFoundError{Resource: "run", ID: "5f1c"},
			wantMsg:  "run not found: 5f1c",
			wantBase: ErrNotFound,
		},
		{
			name:     "without ID",
			err:      &NotFoundError{Resource: "section"},
			wantMsg:  "section not found",
			wantBase: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, tt.wantBase) {
				t.Errorf("Unwrap() = %v, want %v", got, tt.wantBase)
			}
		})
	}

	t.Run("with underlying error", func(t *testing.T) {
		underlyingErr := fmt.Errorf("disk error")
		err := &NotFoundError{Resource: "document", ID: "reuters-1.xml", Err: underlyingErr}
		if got := err.Unwrap(); got != underlyingErr {
			t.Errorf("Unwrap() = %v, want %v", got, underlyingErr)
		}
	})
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		err     *ValidationError
		wantMsg string
	}{
		{
			name:    "with field",
			err:     NewValidation("confidence", "1.5 outside [0,1]"),
			wantMsg: "validation failed for confidence: 1.5 outside [0,1]",
		},
		{
			name:    "without field",
			err:     &ValidationError{Message: "row has fewer than two fields"},
			wantMsg: "validation failed: row has fewer than two fields",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrInvalidInput) {
				t.Errorf("expected %v to unwrap to ErrInvalidInput", tt.err)
			}
		})
	}
}

// TestAlignmentError verifies the message and sentinel of alignment drops.
func TestAlignmentError(t *testing.T) {
	err := NewAlignment(2, 5, "New York", "not found before end of section")
	want := `section 2 unit 5 "New York": not found before end of section`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !Is(err, ErrMisaligned) {
		t.Error("AlignmentError should unwrap to ErrMisaligned")
	}
	var target *AlignmentError
	if !As(Wrap(err, "assemble"), &target) || target.Unit != 5 {
		t.Errorf("As through Wrap failed: %+v", target)
	}
}

func TestIOError(t *testing.T) {
	underlying := fmt.Errorf("permission denied")
	tests := []struct {
		name    string
		err     *IOError
		wantMsg string
	}{
		{"with path", NewIO("open", "/corpus/a.xml", underlying), "failed to open /corpus/a.xml: permission denied"},
		{"without path", NewIO("read", "", underlying), "failed to read: permission denied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, underlying) {
				t.Error("IOError should unwrap to its cause")
			}
		})
	}
}

func TestParseError(t *testing.T) {
	err := NewParse("SemDoc", "doc.xml", "missing para element")
	if got := err.Error(); got != "failed to parse SemDoc at doc.xml: missing para element" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ParseError without cause should unwrap to ErrInvalidInput")
	}

	cause := fmt.Errorf("unexpected EOF")
	withCause := &ParseError{Format: "ENAMEX", Message: "truncated", Err: cause}
	if got := withCause.Error(); got != "failed to parse ENAMEX: truncated" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(withCause, cause) {
		t.Error("ParseError should unwrap to its cause")
	}
}

func TestUnsupportedError(t *testing.T) {
	err := NewUnsupported("compression", "bzip2")
	if got := err.Error(); got != "unsupported compression: bzip2" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrUnsupported) {
		t.Error("expected ErrUnsupported")
	}
	if got := (&UnsupportedError{Feature: "format"}).Error(); got != "unsupported format" {
		t.Errorf("Error() = %q", got)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if Wrapf(nil, "ctx %d", 1) != nil {
		t.Error("Wrapf(nil) should be nil")
	}

	base := NewNotFound("run", "abc")
	wrapped := Wrapf(base, "loading run %s", "abc")
	if wrapped.Error() != "loading run abc: run not found: abc" {
		t.Errorf("Wrapf() = %q", wrapped.Error())
	}
	if !Is(wrapped, ErrNotFound) {
		t.Error("wrapped error lost its sentinel")
	}
}

func TestJoin(t *testing.T) {
	joined := Join(NewNotFound("run", "a"), NewAlignment(0, 0, "x", "gone"))
	if !Is(joined, ErrNotFound) || !Is(joined, ErrMisaligned) {
		t.Errorf("Join lost a sentinel: %v", joined)
	}
	if Join(nil, nil) != nil {
		t.Error("Join of nils should be nil")
	}
}
