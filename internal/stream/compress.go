// ABOUTME: Optional bzip2 compression of spill files before they are retained
// ABOUTME: Adapted from the workflow engine's archive task, narrowed to single-stream bzip2

package stream

import (
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/spf13/afero"
)

// CompressSpill bzip2-compresses the spill file at path, writes it to
// path+".bz2", removes the original, and returns the new path.
func CompressSpill(fs afero.Fs, path string) (string, error) {
	src, err := fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening spill file %s: %w", path, err)
	}
	defer src.Close()

	dstPath := path + ".bz2"
	dst, err := fs.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("creating compressed spill file %s: %w", dstPath, err)
	}
	defer dst.Close()

	w, err := bzip2.NewWriter(dst, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
	if err != nil {
		return "", fmt.Errorf("opening bzip2 writer: %w", err)
	}

	if _, err := io.Copy(w, src); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("compressing spill file %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing compressed spill file %s: %w", dstPath, err)
	}

	if err := fs.Remove(path); err != nil {
		return "", fmt.Errorf("removing uncompressed spill file %s: %w", path, err)
	}
	return dstPath, nil
}
