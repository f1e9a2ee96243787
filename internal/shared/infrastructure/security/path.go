// Package security resolves user-supplied file paths, such as local
// calendar sources and preference documents, before they are opened.
package security

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxFileSize bounds what Open and ReadFile accept.
const MaxFileSize = 32 << 20

// forbiddenChars are shell metacharacters and control characters that never
// appear in a legitimate calendar or config path.
const forbiddenChars = ";&|$`(){}<>!\n\r\x00"

var (
	ErrEmptyPath    = errors.New("file path cannot be empty")
	ErrFileTooLarge = errors.New("file exceeds size limit")
)

// ResolvePath turns path into a clean absolute path. It strips a file://
// prefix, expands a leading ~ and follows symlinks when the file exists.
func ResolvePath(path string) (string, error) {
	path = strings.TrimPrefix(strings.TrimSpace(path), "file://")
	if path == "" {
		return "", ErrEmptyPath
	}
	if i := strings.IndexAny(path, forbiddenChars); i >= 0 {
		return "", fmt.Errorf("file path contains forbidden character %q: %s", path[i], path)
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to expand ~: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve file path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return abs, nil
		}
		return "", fmt.Errorf("failed to resolve file path: %w", err)
	}
	return resolved, nil
}

// Open resolves path and opens it for reading. Directories and files larger
// than MaxFileSize are rejected.
func Open(path string) (*os.File, error) {
	resolved, err := ResolvePath(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", resolved)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%s: %w (%d bytes)", resolved, ErrFileTooLarge, info.Size())
	}
	// #nosec G304 - path is resolved above
	return os.Open(resolved)
}

// ReadFile is Open followed by a bounded read.
func ReadFile(path string) ([]byte, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxFileSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}
