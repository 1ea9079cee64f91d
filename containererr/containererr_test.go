package containererr

import (
	"fmt"
	"testing"
)

func TestExitCodeMapsKnownErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{ErrParsingFailure, 1},
		{ErrInvalidData, 1},
		{ErrIO, 2},
		{ErrTruncatedData, 2},
		{ErrAborted, 3},
		{ErrNotImplemented, 4},
		{fmt.Errorf("unrelated"), 1},
	}
	for _, c := range cases {
		if got := ExitCode(c.err); got != c.want {
			t.Errorf("ExitCode(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestExitCodeUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("read cluster: %w", ErrTruncatedData)
	if got := ExitCode(wrapped); got != 2 {
		t.Fatalf("ExitCode(wrapped ErrTruncatedData) = %d, want 2", got)
	}
}
