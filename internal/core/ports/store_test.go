package ports

import (
	"strings"
	"testing"
)

func TestSample(t *testing.T) {
	long := strings.Repeat("é", SampleWidth+5)

	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "nil", in: nil, want: ""},
		{name: "bytes", in: []byte("abc"), want: "abc"},
		{name: "integer", in: int64(42), want: "42"},
		{name: "truncated by rune", in: long, want: strings.Repeat("é", SampleWidth)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sample(tt.in); got != tt.want {
				t.Errorf("Sample(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
