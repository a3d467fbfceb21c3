package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext(t *testing.T) {
	t.Parallel()

	t.Run("Should return the injected logger instance when present", func(t *testing.T) {
		t.Parallel()
		expected := slog.New(slog.NewJSONHandler(io.Discard, nil))

		got := FromContext(WithContext(context.Background(), expected))

		assert.Same(t, expected, got)
	})

	t.Run("Should return the global default logger when context is empty", func(t *testing.T) {
		t.Parallel()
		assert.Same(t, slog.Default(), FromContext(context.Background()))
	})

	t.Run("Should return the fallback when context is empty", func(t *testing.T) {
		t.Parallel()
		fallback := slog.New(slog.NewTextHandler(io.Discard, nil))

		assert.Same(t, fallback, FromContextOr(context.Background(), fallback))
	})

	t.Run("Should prefer the context logger over the fallback", func(t *testing.T) {
		t.Parallel()
		injected := slog.New(slog.NewTextHandler(io.Discard, nil))
		fallback := slog.New(slog.NewTextHandler(io.Discard, nil))

		assert.Same(t, injected, FromContextOr(WithContext(context.Background(), injected), fallback))
	})

	t.Run("Should carry attributes added with WithAttrs", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		ctx := WithContext(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))

		ctx = WithAttrs(ctx, slog.String("event_id", "evt-1"))
		FromContext(ctx).Info("processing")

		assert.Contains(t, buf.String(), "event_id=evt-1")
	})
}
