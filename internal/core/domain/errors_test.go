package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFetchError_Is(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantNotFound bool
	}{
		{
			name:         "404 is not found",
			err:          &FetchError{Kind: KindAlbum, ID: "a2", Status: http.StatusNotFound},
			wantNotFound: true,
		},
		{
			name: "rate limit exhaustion is only unavailable",
			err:  &FetchError{Kind: KindAlbum, ID: "a3", Status: http.StatusTooManyRequests},
		},
		{
			name: "wrapped network failure",
			err:  fmt.Errorf("harvest: %w", &FetchError{Kind: KindTrack, ID: "t1", Err: errors.New("connection reset")}),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if !errors.Is(tc.err, ErrUnavailable) {
				t.Fatalf("expected %v to be ErrUnavailable", tc.err)
			}
			if got := errors.Is(tc.err, ErrNotFound); got != tc.wantNotFound {
				t.Fatalf("ErrNotFound: got %v, want %v", got, tc.wantNotFound)
			}
		})
	}
}

func TestAuthError_As(t *testing.T) {
	cause := errors.New("status 401")
	err := fmt.Errorf("spotify adapter: %w", &AuthError{Reason: "token exchange failed", Err: cause})

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError in chain")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be unwrapped")
	}
	if errors.Is(err, ErrUnavailable) {
		t.Fatalf("auth failures must not look like skippable fetch failures")
	}
}
