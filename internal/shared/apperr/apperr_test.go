package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{NotFound, http.StatusNotFound},
		{AccessDenied, http.StatusForbidden},
		{InvalidState, http.StatusBadRequest},
		{Validation, http.StatusBadRequest},
		{Conflict, http.StatusConflict},
	}
	for _, tc := range cases {
		if got := Status(New(tc.kind, "x")); got != tc.want {
			t.Fatalf("kind %d: got %d want %d", tc.kind, got, tc.want)
		}
	}
}

func TestStatusUnknownError(t *testing.T) {
	if got := Status(errors.New("boom")); got != http.StatusInternalServerError {
		t.Fatalf("got %d", got)
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(Conflict, "dup"))
	if KindOf(err) != Conflict {
		t.Fatalf("expected conflict kind through wrapping")
	}
}
