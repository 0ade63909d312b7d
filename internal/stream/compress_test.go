// ABOUTME: Tests for bzip2 spill compression

package stream

import (
	"testing"

	"github.com/spf13/afero"
)

func TestCompressSpillReplacesOriginalWithBzip2File(t *testing.T) {
	fs := afero.NewMemMapFs()
	const path = "/tmp/tasker-spill-stdout-1"
	if err := afero.WriteFile(fs, path, []byte("some spilled output, repeated, repeated, repeated"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	got, err := CompressSpill(fs, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != path+".bz2" {
		t.Errorf("expected compressed path %s, got %s", path+".bz2", got)
	}

	if exists, _ := afero.Exists(fs, path); exists {
		t.Errorf("expected original uncompressed spill file to be removed")
	}
	if exists, _ := afero.Exists(fs, got); !exists {
		t.Errorf("expected compressed spill file to exist")
	}
}

func TestCompressSpillMissingSourceErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	if _, err := CompressSpill(fs, "/tmp/does-not-exist"); err == nil {
		t.Fatalf("expected an error compressing a missing spill file")
	}
}
