package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recorder) onChange(paths []string) {
	r.mu.Lock()
	r.calls = append(r.calls, paths)
	r.mu.Unlock()
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_DebouncesBurstIntoOneReload(t *testing.T) {
	dir := t.TempDir()
	lexicon := filepath.Join(dir, "npcs.yaml")
	writeFile(t, lexicon, "entries: []\n")

	rec := &recorder{}
	w := NewWatcher([]string{lexicon}, rec.onChange, WithDebounce(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for i := 0; i < 3; i++ {
		writeFile(t, lexicon, "entries:\n  - name: Ghul'Vor\n")
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	calls := rec.snapshot()
	if len(calls) != 1 {
		t.Fatalf("expected one reload, got %d: %v", len(calls), calls)
	}
	if len(calls[0]) != 1 || calls[0][0] != filepath.Clean(lexicon) {
		t.Errorf("reload paths = %v", calls[0])
	}
}

func TestWatcher_IgnoresUnwatchedSiblings(t *testing.T) {
	dir := t.TempDir()
	lexicon := filepath.Join(dir, "npcs.yaml")
	writeFile(t, lexicon, "entries: []\n")

	rec := &recorder{}
	w := NewWatcher([]string{lexicon}, rec.onChange, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	writeFile(t, filepath.Join(dir, "scratch.txt"), "x")
	time.Sleep(300 * time.Millisecond)

	if calls := rec.snapshot(); len(calls) != 0 {
		t.Errorf("expected no reload, got %v", calls)
	}
}

func TestWatcher_AddRemoveFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")

	w := NewWatcher(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.AddFile(a); err != nil {
		t.Fatal(err)
	}
	if err := w.AddFile(b); err != nil {
		t.Fatal(err)
	}
	if err := w.AddFile(a); err != nil {
		t.Fatal(err)
	}
	files := w.Files()
	if len(files) != 2 || files[0] != filepath.Clean(a) || files[1] != filepath.Clean(b) {
		t.Errorf("Files() = %v", files)
	}

	if err := w.RemoveFile(a); err != nil {
		t.Fatal(err)
	}
	if files := w.Files(); len(files) != 1 || files[0] != filepath.Clean(b) {
		t.Errorf("after remove: %v", files)
	}
}

func TestWatcher_MissingDirectoryDoesNotFailStart(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope", "npcs.yaml")
	w := NewWatcher([]string{missing}, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	w.Stop()
	w.Stop()
}
