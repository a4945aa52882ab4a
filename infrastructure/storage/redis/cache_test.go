package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/tracetm/domain/cache"
)

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }

func TestNewCacheFromClient(t *testing.T) {
	t.Parallel()

	c := NewCacheFromClient(nil, "test:")
	if c.keyPrefix != "test:" {
		t.Errorf("keyPrefix = %s, want test:", c.keyPrefix)
	}
	if c.client != nil {
		t.Error("client should be nil")
	}
}

func TestCache_prefixKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prefix string
		key    string
		want   string
	}{
		{"tracetm:", "abc123", "tracetm:results:abc123"},
		{"", "abc123", "results:abc123"},
		{"ci:", "", "ci:results:"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()

			c := NewCacheFromClient(nil, tt.prefix)
			if got := c.prefixKey(tt.key); got != tt.want {
				t.Errorf("prefixKey(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}

	if got := NewCacheFromClient(nil, "p:").pattern(); got != "p:results:*" {
		t.Errorf("pattern() = %q", got)
	}
}

func TestCache_CancelledContext(t *testing.T) {
	t.Parallel()

	// A cancelled context returns before touching the nil client.
	c := NewCacheFromClient(nil, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := c.Get(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Errorf("Get() error = %v", err)
	}
	if err := c.Set(ctx, "k", nil, cache.SetOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Set() error = %v", err)
	}
	if err := c.Delete(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Errorf("Delete() error = %v", err)
	}
	if _, err := c.Exists(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Errorf("Exists() error = %v", err)
	}
	if err := c.Clear(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Clear() error = %v", err)
	}
}

func TestCache_SetEmptyKey(t *testing.T) {
	t.Parallel()

	c := NewCacheFromClient(nil, "")
	if err := c.Set(context.Background(), "", []byte("v"), cache.SetOptions{}); !errors.Is(err, cache.ErrInvalidKey) {
		t.Errorf("Set(\"\") error = %v, want ErrInvalidKey", err)
	}
}

func TestCache_Stats(t *testing.T) {
	t.Parallel()

	c := NewCacheFromClient(nil, "")
	c.hits.Add(3)
	c.misses.Add(1)

	stats := c.Stats()
	if stats.Hits != 3 || stats.Misses != 1 || stats.Size != 0 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"deadline", context.DeadlineExceeded, cache.ErrOperationTimeout},
		{"net timeout", timeoutErr{}, cache.ErrOperationTimeout},
		{"refused", errors.New("connection refused"), cache.ErrConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if err := wrapError(tt.err); !errors.Is(err, tt.want) || !errors.Is(err, tt.err) {
				t.Errorf("wrapError(%v) = %v, want %v", tt.err, err, tt.want)
			}
		})
	}

	if wrapError(nil) != nil {
		t.Error("wrapError(nil) should be nil")
	}
}
