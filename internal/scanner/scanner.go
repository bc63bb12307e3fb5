// Package scanner walks a directory tree and fingerprints every regular file
// in it.
//
// A scan never aborts because of a single entry. Symlinks, special files,
// unreadable subdirectories and files that cannot be hashed (permission
// denied, vanished mid-scan) are left out of the result, reported in
// Result.Skipped and logged at warn level. Only an unreadable root fails the
// scan.
package scanner

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"dirwatch/internal/hasher"
	"dirwatch/internal/log"
	"dirwatch/internal/storage"
)

// Config configures the scanner.
type Config struct {
	Root string
	// ExcludeName is matched case-insensitively against bare file names at any
	// depth. Defaults to storage.DefaultStoreName.
	ExcludeName string
	// Hash digests a single file. Defaults to hasher.HashFile.
	Hash   func(path string) (string, error)
	Logger *slog.Logger
}

// Skip records an entry left out of a scan and why.
type Skip struct {
	Path   string
	Reason string
}

// Result is the outcome of one scan.
type Result struct {
	Records []storage.FileRecord
	Skipped []Skip
	// Bytes is the total size of the hashed files.
	Bytes int64
}

// Scanner produces FileRecords for a directory tree.
type Scanner struct {
	root    string
	exclude string
	hash    func(string) (string, error)
	logger  *slog.Logger
}

// New creates a scanner with the given config.
func New(cfg Config) *Scanner {
	s := &Scanner{
		root:    cfg.Root,
		exclude: cfg.ExcludeName,
		hash:    cfg.Hash,
		logger:  cfg.Logger,
	}
	if s.exclude == "" {
		s.exclude = storage.DefaultStoreName
	}
	if s.hash == nil {
		s.hash = hasher.HashFile
	}
	if s.logger == nil {
		s.logger = log.Component("scanner")
	}
	return s
}

// Scan walks the tree top-down. Within each directory, files are visited in
// lexical order before any subdirectory, and subdirectories are descended in
// lexical order.
func (s *Scanner) Scan() (Result, error) {
	var res Result

	info, err := os.Stat(s.root)
	if err != nil {
		return res, fmt.Errorf("scan %s: %w", s.root, storage.WrapIO(err))
	}
	if !info.IsDir() {
		return res, fmt.Errorf("scan %s: %w: not a directory", s.root, storage.ErrIO)
	}

	if err := s.walk(s.root, &res); err != nil {
		return Result{}, err
	}

	s.logger.Info("scan complete",
		"root", s.root,
		"files", humanize.Comma(int64(len(res.Records))),
		"size", humanize.Bytes(uint64(res.Bytes)),
		"skipped", len(res.Skipped))
	return res, nil
}

func (s *Scanner) walk(dir string, res *Result) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if dir == s.root {
			return fmt.Errorf("read directory %s: %w", dir, storage.WrapIO(err))
		}
		// ReadDir may still return the entries it managed to read.
		s.skip(res, dir, err.Error())
		if len(entries) == 0 {
			return nil
		}
	}

	var subdirs []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		mode := entry.Type()

		switch {
		case mode&fs.ModeSymlink != 0:
			s.skip(res, path, "symlink")
		case entry.IsDir():
			subdirs = append(subdirs, path)
		case strings.EqualFold(entry.Name(), s.exclude):
			s.logger.Debug("excluded", "path", path)
		case !mode.IsRegular():
			s.skip(res, path, "not a regular file")
		default:
			s.hashEntry(res, path, entry)
		}
	}

	for _, sub := range subdirs {
		if err := s.walk(sub, res); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) hashEntry(res *Result, path string, entry fs.DirEntry) {
	digest, err := s.hash(path)
	if err != nil {
		s.skip(res, path, err.Error())
		return
	}

	if info, err := entry.Info(); err == nil {
		res.Bytes += info.Size()
	}
	res.Records = append(res.Records, storage.FileRecord{
		Path: path,
		Name: entry.Name(),
		Hash: digest,
	})
	s.logger.Debug("hashed", "path", path, "hash", digest)
}

func (s *Scanner) skip(res *Result, path, reason string) {
	s.logger.Warn("skipping entry", "path", path, "reason", reason)
	res.Skipped = append(res.Skipped, Skip{Path: path, Reason: reason})
}
