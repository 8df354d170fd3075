// Package fs stores JSON documents as files under a root directory.
//
// A document path such as "/data/test.json" maps to <root>/data/test.json.
// Writes are atomic (temp file and rename) and the compare-and-swap on the
// version token runs under a per-path lock that is held both inside the
// process and, through a lock file, across processes sharing the root.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/acmhack/filesdb/pkg/core"
	"github.com/acmhack/filesdb/pkg/etag"
)

// DefaultSystemDir holds lock files and is never exposed as documents.
const DefaultSystemDir = ".filesdb"

// Config holds the configuration for the filesystem space.
type Config struct {
	Path         string
	MustExist    bool
	ReadOnly     bool
	Logger       *slog.Logger
	SystemDir    string      // e.g. ".filesdb"
	ErrorHandler func(error) // called with watcher runtime errors
}

// Space implements core.Space on the filesystem.
type Space struct {
	Path   string
	config Config
	locks  *pathLocks

	mu            sync.RWMutex
	watcherActive bool
	lastWrite     *time.Time
	writes        int64
	conflicts     int64
}

// NewSpace creates a new filesystem-backed space. No I/O happens until
// Initialize or the first operation.
func NewSpace(config Config) *Space {
	if config.SystemDir == "" {
		config.SystemDir = DefaultSystemDir
	}
	return &Space{
		Path:   config.Path,
		config: config,
		locks:  newPathLocks(),
	}
}

// Initialize ensures the root directory exists.
func (s *Space) Initialize(ctx context.Context) error {
	if s.config.MustExist || s.config.ReadOnly {
		info, err := os.Stat(s.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("space path does not exist: %s", s.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("space path is not a directory: %s", s.Path)
		}
		return nil
	}

	if err := os.MkdirAll(s.Path, 0755); err != nil {
		return fmt.Errorf("failed to create space directory: %w", err)
	}
	if err := os.MkdirAll(s.lockDir(), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	return nil
}

// ReadDocument loads the document at docPath. A missing file is the
// implicit empty document; nothing is created on disk.
func (s *Space) ReadDocument(ctx context.Context, docPath string) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return core.Document{}, err
	}

	full, err := s.resolve(docPath)
	if err != nil {
		return core.Document{}, err
	}

	data, tag, err := readFile(full)
	if err != nil {
		return core.Document{}, fmt.Errorf("failed to read %s: %w", docPath, err)
	}
	return core.Document{Path: docPath, Data: data, ETag: tag}, nil
}

// WriteDocument writes data at docPath when ifMatch is nil or equals the
// current token.
//
// Workflow:
//  1. Resolve and validate the path; canonicalize the content.
//  2. Take the in-process path lock, then the cross-process lock file.
//  3. Hash the current file and compare with ifMatch (409 on mismatch).
//  4. Write atomically.
func (s *Space) WriteDocument(ctx context.Context, docPath string, data json.RawMessage, ifMatch *string) (string, error) {
	if s.config.ReadOnly {
		return "", core.WrapRemoteToolError(core.StatusForbidden, core.ErrReadOnly, "")
	}

	full, err := s.resolve(docPath)
	if err != nil {
		return "", err
	}

	canon, err := etag.Canonical(data)
	if err != nil {
		return "", core.WrapRemoteToolError(core.StatusBadRequest, err, "")
	}
	tag, err := etag.Of(canon)
	if err != nil {
		return "", core.WrapRemoteToolError(core.StatusBadRequest, err, "")
	}

	unlock, err := s.locks.acquire(ctx, full)
	if err != nil {
		return "", err
	}
	defer unlock()

	unlockFile, err := lockFile(ctx, s.lockDir(), full)
	if err != nil {
		return "", err
	}
	defer unlockFile()

	_, current, err := readFile(full)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", docPath, err)
	}
	if ifMatch != nil && *ifMatch != current {
		s.record(false)
		if s.config.Logger != nil {
			s.config.Logger.Debug("etag mismatch", "path", docPath, "if_match", *ifMatch, "current", current)
		}
		return "", core.NewRemoteToolError(core.StatusConflict, "etag mismatch")
	}

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, canon, "", "  "); err != nil {
		return "", fmt.Errorf("failed to format document: %w", err)
	}
	pretty.WriteByte('\n')

	if err := writeFileAtomic(full, pretty.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	s.record(true)
	if s.config.Logger != nil {
		s.config.Logger.Debug("document written", "path", docPath, "etag", tag)
	}
	return tag, nil
}

// resolve maps a document path to a file under the root. Paths are
// slash-separated; a leading slash is optional. Paths escaping the root or
// pointing into the system directory are rejected with 400.
func (s *Space) resolve(docPath string) (string, error) {
	if strings.ContainsRune(docPath, 0) || strings.Contains(docPath, `\`) {
		return "", core.NewRemoteToolError(core.StatusBadRequest, "invalid path %q", docPath)
	}

	for _, seg := range strings.Split(docPath, "/") {
		if seg == ".." {
			return "", core.NewRemoteToolError(core.StatusBadRequest, "path %q escapes the root", docPath)
		}
	}

	rel := strings.TrimPrefix(path.Clean("/"+docPath), "/")
	if rel == "" || rel == "." {
		return "", core.NewRemoteToolError(core.StatusBadRequest, "invalid path %q", docPath)
	}
	if first, _, _ := strings.Cut(rel, "/"); first == s.config.SystemDir {
		return "", core.NewRemoteToolError(core.StatusBadRequest, "path %q is reserved", docPath)
	}
	if isTempFile(rel) {
		return "", core.NewRemoteToolError(core.StatusBadRequest, "path %q is reserved", docPath)
	}

	return filepath.Join(s.Path, filepath.FromSlash(rel)), nil
}

// docPath is the inverse of resolve.
func (s *Space) docPath(full string) (string, error) {
	rel, err := filepath.Rel(s.Path, full)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside the space", full)
	}
	return "/" + filepath.ToSlash(rel), nil
}

func (s *Space) lockDir() string {
	return filepath.Join(s.Path, s.config.SystemDir, "locks")
}

func (s *Space) record(written bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if written {
		now := time.Now()
		s.lastWrite = &now
		s.writes++
		return
	}
	s.conflicts++
}

// readFile returns the canonical content and token of a document file.
// A missing file yields (nil, etag.Empty).
func readFile(full string) (json.RawMessage, string, error) {
	raw, err := os.ReadFile(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, etag.Empty, nil
	}
	if err != nil {
		return nil, "", err
	}

	canon, err := etag.Canonical(raw)
	if err != nil {
		return nil, "", core.WrapRemoteToolError(core.StatusInternal, err, "stored document is not valid json")
	}
	tag, err := etag.Of(canon)
	if err != nil {
		return nil, "", err
	}
	if string(canon) == "null" {
		return nil, tag, nil
	}
	return canon, tag, nil
}

var _ core.Space = (*Space)(nil)
var _ core.Watchable = (*Space)(nil)
