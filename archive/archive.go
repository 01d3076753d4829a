// Package archive persists run artifacts (error files, query exports)
// beyond the local filesystem.
//
// Keys follow a Hive-style layout so downstream tooling can partition by
// object, day, and run: object=<Object>/day=<YYYY-MM-DD>/run_id=<id>/<name>.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/copperline-io/ferry/iox"
	"github.com/copperline-io/ferry/types"
)

// Archiver stores run artifact files. Implementations must treat each
// Store call independently; a failed upload never corrupts prior ones.
type Archiver interface {
	// Store uploads the file at path under the run's partition key and
	// returns the destination key or path.
	Store(ctx context.Context, meta *types.RunMeta, path string) (string, error)

	// Close releases archiver resources.
	Close() error
}

// Key builds the partition key for a run artifact.
func Key(meta *types.RunMeta, path string) string {
	return fmt.Sprintf("object=%s/day=%s/run_id=%s/%s",
		meta.Object,
		meta.StartedAt.UTC().Format(time.DateOnly),
		meta.RunID,
		filepath.Base(path),
	)
}

// Noop is an Archiver that stores nothing. Used when archiving is not
// configured.
type Noop struct{}

func (Noop) Store(context.Context, *types.RunMeta, string) (string, error) { return "", nil }
func (Noop) Close() error                                                  { return nil }

// FS is an Archiver copying artifacts into a local directory tree using
// the same key layout as the S3 archiver.
type FS struct {
	Root string
}

// NewFS creates a filesystem archiver rooted at dir.
func NewFS(dir string) *FS {
	return &FS{Root: dir}
}

// Store implements Archiver.
func (a *FS) Store(_ context.Context, meta *types.RunMeta, path string) (string, error) {
	dest := filepath.Join(a.Root, filepath.FromSlash(Key(meta, path)))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}

	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open artifact %s: %w", path, err)
	}
	defer iox.DiscardClose(src)

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("copy artifact: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dest, nil
}

// Close implements Archiver.
func (a *FS) Close() error { return nil }

var (
	_ Archiver = Noop{}
	_ Archiver = (*FS)(nil)
)
