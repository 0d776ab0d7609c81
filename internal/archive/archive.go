// Package archive stores raw search provider responses for later audit.
package archive

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

// Archiver persists a raw payload under a key.
type Archiver interface {
	Put(ctx context.Context, key string, body []byte) error
}

// Key returns the date-partitioned object key for a raw search response.
// The query is appended only when the run issued more than one query.
func Key(runID, query string, multi bool, now time.Time) string {
	now = now.UTC()
	prefix := fmt.Sprintf("runs/%04d/%02d/%02d/%s", now.Year(), int(now.Month()), now.Day(), runID)
	if !multi {
		return prefix + ".json"
	}
	return prefix + "-" + url.QueryEscape(query) + ".json"
}

// Nop discards every payload.
type Nop struct{}

// Put implements Archiver.
func (Nop) Put(context.Context, string, []byte) error { return nil }

// FSArchiver writes payloads below a local directory.
type FSArchiver struct {
	Dir string
}

// NewFSArchiver creates a filesystem archiver rooted at dir.
func NewFSArchiver(dir string) *FSArchiver {
	return &FSArchiver{Dir: dir}
}

// Put implements Archiver.
func (a *FSArchiver) Put(_ context.Context, key string, body []byte) error {
	path := filepath.Join(a.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "archive: mkdir for %s", key)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return eris.Wrapf(err, "archive: write %s", key)
	}
	return nil
}
