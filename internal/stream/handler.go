// ABOUTME: Streaming Output Handler: spills oversized captured output to temp files
// ABOUTME: Spill files are tracked and removed on every exit path, by any caller that runs CleanupAll

package stream

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/taskerd/tasker/internal/checksum"
)

// DefaultThreshold is the spill threshold in bytes (§5): captured
// output at or below this size stays in memory; anything larger spills
// to a temp file.
const DefaultThreshold = 1 << 20 // 1 MiB

// FilePrefix namesapces spill files so stale ones are recognizable.
const FilePrefix = "tasker-spill-"

// Handler implements the Streaming Output Handler component.
type Handler struct {
	fs        afero.Fs
	tempDir   string
	threshold int64

	mu            sync.Mutex
	files         map[string]struct{}
	archiver      *Archiver
	compressSpill bool
}

// New creates a Handler rooted at fs/tempDir with the given spill
// threshold in bytes.
func New(fs afero.Fs, tempDir string, threshold int64) *Handler {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Handler{fs: fs, tempDir: tempDir, threshold: threshold, files: make(map[string]struct{})}
}

// SetArchiver attaches an optional spill_archive destination (§4.9).
// When set, CleanupAll copies each spill file there before removing the
// local copy.
func (h *Handler) SetArchiver(a *Archiver) {
	h.archiver = a
}

// SetCompressSpills enables bzip2-compressing a spill file immediately
// after it is written. Nothing in the engine reads a spilled file's
// content back during a run, so compression never changes evaluation.
func (h *Handler) SetCompressSpills(enabled bool) {
	h.compressSpill = enabled
}

// Captured is what Capture returns: either in-memory Content, or a
// FilePath to a spill file (mutually exclusive) plus its digest.
type Captured struct {
	Content  string
	FilePath string
	Digest   string
	Spilled  bool
}

// Capture decides whether data should stay in memory or spill to a
// temp file named with label (e.g. "3-stdout"). Exactly at threshold
// bytes, data does not spill; threshold+1 does.
func (h *Handler) Capture(label string, data []byte) (Captured, error) {
	if int64(len(data)) <= h.threshold {
		return Captured{Content: string(data)}, nil
	}

	f, err := afero.TempFile(h.fs, h.tempDir, FilePrefix+label+"-*")
	if err != nil {
		return Captured{}, fmt.Errorf("creating spill file for %s: %w", label, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return Captured{}, fmt.Errorf("writing spill file for %s: %w", label, err)
	}

	digest, err := checksum.DigestBytes(data, checksum.SHA256)
	if err != nil {
		return Captured{}, fmt.Errorf("digesting spill file for %s: %w", label, err)
	}

	spillPath := f.Name()
	if h.compressSpill {
		compressed, err := CompressSpill(h.fs, spillPath)
		if err != nil {
			return Captured{}, fmt.Errorf("compressing spill file for %s: %w", label, err)
		}
		spillPath = compressed
	}

	h.mu.Lock()
	h.files[spillPath] = struct{}{}
	h.mu.Unlock()

	return Captured{FilePath: spillPath, Digest: digest, Spilled: true}, nil
}

// CleanupAll removes every spill file this handler has created,
// regardless of how the workflow terminated (success, failure,
// cancellation). If an archiver is attached, each file is copied to the
// archive destination before its local copy is removed; archive
// failures are collected but never block local cleanup, since a failed
// export must not leak a temp file. Errors are collected but do not
// stop the sweep.
func (h *Handler) CleanupAll() error {
	h.mu.Lock()
	files := make([]string, 0, len(h.files))
	for f := range h.files {
		files = append(files, f)
	}
	h.files = make(map[string]struct{})
	archiver := h.archiver
	h.mu.Unlock()

	var firstErr error
	for _, f := range files {
		if archiver != nil {
			if _, err := archiver.Archive(h.fs, f, filepath.Base(f)); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("archiving spill file %s: %w", f, err)
			}
		}
		if err := h.fs.Remove(f); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// TrackedCount reports how many spill files are currently tracked, for
// tests and diagnostics.
func (h *Handler) TrackedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.files)
}
