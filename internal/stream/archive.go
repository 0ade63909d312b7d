// ABOUTME: Optional archival of spill files to durable storage (S3 or SFTP)
// ABOUTME: Resolves a spill_archive URI through the shared filesystem factory

package stream

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"

	"github.com/taskerd/tasker/internal/filesystem"
)

// ArchiveConfig carries the credentials an archive destination needs. Only
// the fields relevant to the destination's scheme are read.
type ArchiveConfig struct {
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string
	AWSRegion          string

	SSHUser           string
	SSHPassword       string
	SSHPrivateKey     string
	SSHPrivateKeyPath string
}

// Archiver copies spill files to a durable destination named by a
// spill_archive URI (s3://bucket/prefix or sftp://host/path) before the
// local temp file is removed.
type Archiver struct {
	dest afero.Fs
	root string
}

// NewArchiver resolves destURI into an afero filesystem and returns an
// Archiver rooted there. destURI must use the s3, sftp, ssh or scp
// scheme.
func NewArchiver(destURI string, cfg ArchiveConfig) (*Archiver, error) {
	info, err := filesystem.ParsePath(destURI)
	if err != nil {
		return nil, fmt.Errorf("parsing spill_archive URI %q: %w", destURI, err)
	}
	if info.Scheme != "s3" && info.Scheme != "sftp" && info.Scheme != "ssh" && info.Scheme != "scp" {
		return nil, fmt.Errorf("unsupported spill_archive scheme %q, want s3 or sftp", info.Scheme)
	}

	fs, err := filesystem.GetFilesystem(destURI, &filesystem.Config{
		AWSAccessKeyID:     cfg.AWSAccessKeyID,
		AWSSecretAccessKey: cfg.AWSSecretAccessKey,
		AWSSessionToken:    cfg.AWSSessionToken,
		AWSRegion:          cfg.AWSRegion,
		SSHUser:            cfg.SSHUser,
		SSHPassword:        cfg.SSHPassword,
		SSHPrivateKey:      cfg.SSHPrivateKey,
		SSHPrivateKeyPath:  cfg.SSHPrivateKeyPath,
	})
	if err != nil {
		return nil, fmt.Errorf("resolving spill_archive destination %q: %w", destURI, err)
	}

	return &Archiver{dest: fs, root: strings.TrimPrefix(info.Path, "/")}, nil
}

// Archive copies the local spill file at localPath (opened through
// localFs) to name under the archiver's destination root and returns the
// resulting remote path. It does not remove localPath; the caller decides
// when to clean up after a successful archive.
func (a *Archiver) Archive(localFs afero.Fs, localPath, name string) (string, error) {
	src, err := localFs.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("opening spill file %s for archival: %w", localPath, err)
	}
	defer src.Close()

	remotePath := strings.TrimSuffix(a.root, "/") + "/" + name
	dst, err := a.dest.Create(remotePath)
	if err != nil {
		return "", fmt.Errorf("creating archive destination %s: %w", remotePath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("copying %s to archive: %w", localPath, err)
	}
	return remotePath, nil
}
