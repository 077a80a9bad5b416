package captions

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

func TestImprove_RejectsBadInputBeforeAPICall(t *testing.T) {
	i := NewImprover("", slog.New(slog.DiscardHandler))

	_, err := i.Improve(context.Background(), "some caption", "shouty")
	if !errors.Is(err, ErrUnknownStyle) {
		t.Errorf("Improve(unknown style) error = %v, want ErrUnknownStyle", err)
	}

	_, err = i.Improve(context.Background(), "   ", "casual")
	if !errors.Is(err, ErrEmptyText) {
		t.Errorf("Improve(blank text) error = %v, want ErrEmptyText", err)
	}
}
