package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestIsSourceFile(t *testing.T) {
	tests := map[string]bool{
		"Section A.html":       true,
		"cover.HTM":            true,
		"notes.txt":            false,
		"~$Section A.html":     false,
		".Section A.html.swp":  false,
		"dir/Front Matter.htm": true,
	}
	for path, want := range tests {
		t.Run(path, func(t *testing.T) {
			assert.Equal(t, want, IsSourceFile(path))
		})
	}
}

func TestWatcher_ConvertsWrittenFile(t *testing.T) {
	dir := t.TempDir()
	changed := make(chan string, 4)
	watcher := NewWatcher(dir, func(path string) error {
		changed <- path
		return nil
	}, 20*time.Millisecond, zaptest.NewLogger(t))

	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644))
	sourcePath := filepath.Join(dir, "Section A.html")
	require.NoError(t, os.WriteFile(sourcePath, []byte("<p>x</p>"), 0o644))

	select {
	case path := <-changed:
		assert.Equal(t, sourcePath, path)
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not called")
	}
}

func TestWatcher_StartWithoutDirectory(t *testing.T) {
	watcher := NewWatcher("", func(string) error { return nil }, 0, nil)
	assert.Error(t, watcher.Start())

	missing := NewWatcher(filepath.Join(t.TempDir(), "missing"), func(string) error { return nil }, 0, nil)
	assert.Error(t, missing.Start())
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	watcher := NewWatcher(t.TempDir(), func(string) error { return nil }, 0, nil)
	require.NoError(t, watcher.Start())
	watcher.Stop()
	watcher.Stop()
}
