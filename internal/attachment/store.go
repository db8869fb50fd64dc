// Package attachment stores binary attachments (photo proofs, documents) on
// the local filesystem and hands back file:// URLs.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/baiirun/worklog/internal/storage"
)

// ErrInvalidPath is returned for logical paths that escape the store root.
var ErrInvalidPath = errors.New("invalid attachment path")

const (
	chunkSize     = 32 * 1024
	maxRetries    = 4
	retryMaxSpent = 10 * time.Second
)

// FileStore writes attachments under Root.
type FileStore struct {
	Root string

	// newBackOff is swapped in tests to avoid real sleeps.
	newBackOff func() backoff.BackOff
	// writeFile performs one upload attempt.
	writeFile func(path string, content []byte, progress storage.ProgressFunc) error
}

var _ storage.AttachmentStore = (*FileStore)(nil)

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("attachment: ensure root: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("attachment: resolve root: %w", err)
	}
	return &FileStore{Root: abs, newBackOff: defaultBackOff, writeFile: writeAtomic}, nil
}

func defaultBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = retryMaxSpent
	return backoff.WithMaxRetries(bo, maxRetries)
}

// Put writes content under the logical path and returns its URL. Transient
// write failures are retried with exponential backoff; a failure that
// outlives the retries is returned, never dropped.
func (s *FileStore) Put(ctx context.Context, path string, content []byte, progress storage.ProgressFunc) (string, error) {
	target, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("attachment: ensure dir: %w", err)
	}

	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		return s.writeFile(target, content, progress)
	}
	if err := backoff.Retry(op, backoff.WithContext(s.newBackOff(), ctx)); err != nil {
		return "", fmt.Errorf("attachment: upload %s: %w", path, err)
	}
	return fileURL(target), nil
}

// Delete removes the file behind a URL produced by Put. Missing files are
// not an error.
func (s *FileStore) Delete(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "file" {
		return fmt.Errorf("%w: %s", ErrInvalidPath, rawURL)
	}
	target := filepath.FromSlash(u.Path)
	if !within(s.Root, target) {
		return fmt.Errorf("%w: %s", ErrInvalidPath, rawURL)
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("attachment: delete: %w", err)
	}
	return nil
}

func (s *FileStore) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSpace(path)))
	if clean == "." || clean == "" || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return filepath.Join(s.Root, clean), nil
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}

func fileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

// writeAtomic streams content to a temp file in chunks, reporting progress,
// then renames it into place so readers never see a partial file.
func writeAtomic(path string, content []byte, progress storage.ProgressFunc) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	total := int64(len(content))
	var written int64
	for written < total {
		end := written + chunkSize
		if end > total {
			end = total
		}
		n, err := tmp.Write(content[written:end])
		written += int64(n)
		if err != nil {
			_ = tmp.Close()
			return err
		}
		if progress != nil {
			progress(written, total)
		}
	}
	if total == 0 && progress != nil {
		progress(0, 0)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
