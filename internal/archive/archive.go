// Package archive writes password protected zip archives of a directory.
//
// Entries are AES-256 encrypted (WinZip AE-2) and deflate compressed. The
// cryptography and container format are entirely delegated to
// github.com/yeka/zip.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/yeka/zip"

	"dirwatch/internal/log"
)

// Summary reports what CreateEncrypted wrote.
type Summary struct {
	Files    int
	Excluded int
	Skipped  int
}

// Options tunes CreateEncrypted.
type Options struct {
	Logger *slog.Logger
}

// CreateEncrypted writes every file under sourceDir into an encrypted archive
// at outputPath, stored under its path relative to sourceDir. A file is left
// out when its bare name appears in exclude, at any depth. The archive being
// written is never added to itself. Entries that cannot be read are skipped
// with a warning. On any other failure no file is left at outputPath.
func CreateEncrypted(outputPath, sourceDir, password string, exclude map[string]struct{}, opts Options) (summary Summary, err error) {
	if password == "" {
		return summary, errors.New("password cannot be empty")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Component("archive")
	}

	info, err := os.Stat(sourceDir)
	if err != nil {
		return summary, fmt.Errorf("stat source directory: %w", err)
	}
	if !info.IsDir() {
		return summary, fmt.Errorf("%s is not a directory", sourceDir)
	}

	absOutput, err := filepath.Abs(outputPath)
	if err != nil {
		return summary, fmt.Errorf("resolve output path: %w", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return summary, fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(outputPath)
		}
	}()
	zw := zip.NewWriter(out)

	skip := func(path string, reason any) {
		summary.Skipped++
		logger.Warn("skipping entry", "path", path, "reason", reason)
	}

	walkErr := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == sourceDir {
				return err
			}
			skip(path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if _, excluded := exclude[d.Name()]; excluded {
			summary.Excluded++
			logger.Debug("excluded", "path", path)
			return nil
		}
		if abs, err := filepath.Abs(path); err == nil && abs == absOutput {
			return nil
		}
		if !d.Type().IsRegular() {
			// Symlinks are followed; anything that does not resolve to a
			// regular file is left out.
			if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
				skip(path, "not a regular file")
				return nil
			}
		}

		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			skip(path, err)
			return nil
		}
		defer f.Close()
		if err := addFile(zw, f, filepath.ToSlash(rel), password); err != nil {
			return err
		}
		summary.Files++
		logger.Debug("added", "path", path, "entry", filepath.ToSlash(rel))
		return nil
	})
	if walkErr != nil {
		_ = zw.Close()
		_ = out.Close()
		return summary, fmt.Errorf("archive %s: %w", sourceDir, walkErr)
	}

	if cerr := zw.Close(); cerr != nil {
		_ = out.Close()
		return summary, fmt.Errorf("finalize archive: %w", cerr)
	}
	if cerr := out.Close(); cerr != nil {
		return summary, fmt.Errorf("close archive: %w", cerr)
	}

	logger.Info("archive written", "output", outputPath,
		"files", summary.Files, "excluded", summary.Excluded, "skipped", summary.Skipped)
	return summary, nil
}

func addFile(zw *zip.Writer, src io.Reader, name, password string) error {
	w, err := zw.Encrypt(name, password, zip.AES256Encryption)
	if err != nil {
		return fmt.Errorf("add entry %s: %w", name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	return nil
}
