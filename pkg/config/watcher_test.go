package config

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, validYAML)

	w := NewWatcher(path)
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, func(cfg *Config) {
			select {
			case reloaded <- cfg:
			default:
			}
		})
	}()

	// Let the watcher register before writing.
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(path, []byte(replacePrimary(validYAML, "green")), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Pool.Primary != "green" {
			t.Errorf("reloaded primary = %q, want green", cfg.Pool.Primary)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not reload within 3s")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch() error = %v", err)
	}
}

func TestWatcher_RejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, validYAML)

	w := NewWatcher(path)
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	go func() {
		w.Watch(ctx, func(cfg *Config) { reloaded <- cfg })
	}()
	time.Sleep(50 * time.Millisecond)

	// The primary no longer names a pool member: the reload must be
	// rejected and the callback never invoked.
	if err := os.WriteFile(path, []byte(replacePrimary(validYAML, "purple")), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		t.Fatalf("invalid config was accepted: primary = %q", cfg.Pool.Primary)
	case <-time.After(500 * time.Millisecond):
	}
}

// replacePrimary rewrites the pool.primary line of the fixture.
func replacePrimary(yaml, primary string) string {
	return strings.Replace(yaml, "primary: blue", "primary: "+primary, 1)
}
