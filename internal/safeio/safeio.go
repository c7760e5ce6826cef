// Package safeio confines file operations to a fixed root directory.
// Callers hand it relative, slash-separated paths; anything resolving
// outside the root is rejected.
package safeio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Root is a directory jail. All operations take paths relative to it.
type Root struct {
	abs string
}

// NewRoot creates the directory if needed and locks all future
// operations inside it.
func NewRoot(dir string) (*Root, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("safeio: empty root")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	return &Root{abs: abs}, nil
}

// Dir returns the absolute root directory.
func (r *Root) Dir() string {
	if r == nil {
		return ""
	}
	return r.abs
}

// resolve maps a relative slash path to an absolute path under the root,
// rejecting absolute paths and traversal.
func (r *Root) resolve(rel string) (string, error) {
	if r == nil {
		return "", errors.New("safeio: root not configured")
	}
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", errors.New("safeio: empty path")
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("safeio: absolute path %q not allowed", rel)
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("safeio: path %q escapes the root", rel)
	}
	return filepath.Join(r.abs, clean), nil
}

// WriteFile writes data, creating parent directories as needed.
func (r *Root) WriteFile(rel string, data []byte) error {
	p, err := r.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

// ReadFile reads a file under the root.
func (r *Root) ReadFile(rel string) ([]byte, error) {
	p, err := r.resolve(rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("safeio: %q is a directory", rel)
	}
	return os.ReadFile(p)
}

// ListFiles returns the slash-separated relative paths of all regular
// files under rel, in lexical walk order.
func (r *Root) ListFiles(rel string) ([]string, error) {
	dir, err := r.resolve(rel)
	if err != nil {
		return nil, err
	}
	var out []string
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		sub, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(sub))
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
