package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestIsInstructionFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"task.txt", true},
		{"task.md", true},
		{"TASK.TXT", true},
		{"task.py", false},
		{"task.txt.swp", false},
		{"task", false},
	}

	for _, tt := range tests {
		if got := isInstructionFile(tt.path); got != tt.want {
			t.Errorf("isInstructionFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestWatcher_FiresOnInstructionFile(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	var paths []string
	w := New(dir, func(ctx context.Context, path string) {
		mu.Lock()
		paths = append(paths, path)
		mu.Unlock()
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	target := filepath.Join(dir, "task.txt")
	if err := os.WriteFile(target, []byte("count users by department"), 0644); err != nil {
		t.Fatal(err)
	}
	// Ignored extension, must not fire.
	if err := os.WriteFile(filepath.Join(dir, "notes.py"), []byte("x = 1"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(paths)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Handler never fired")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, p := range paths {
		if p != target {
			t.Errorf("Unexpected path fired: %s", p)
		}
	}
}

func TestWatcher_Debounce(t *testing.T) {
	w := New(t.TempDir(), nil, nil)
	w.SetDebounce(time.Hour)

	if !w.shouldFire("/tmp/task.txt") {
		t.Error("First event should fire")
	}
	if w.shouldFire("/tmp/task.txt") {
		t.Error("Second event within the window should be suppressed")
	}
	if !w.shouldFire("/tmp/other.txt") {
		t.Error("Different path should fire independently")
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "nope"), func(ctx context.Context, path string) {}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := w.Run(ctx); err == nil {
		t.Error("Expected error for missing directory")
	}
}
