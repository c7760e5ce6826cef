// Package artifact archives the prompts and raw engine outputs of a
// pipeline run for later inspection. Archiving is best-effort: the runner
// logs failures and keeps going.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"legisum/internal/safeio"
)

// ErrNotFound reports a missing archived artifact.
var ErrNotFound = errors.New("artifact not found")

// Archive stores files under a run id. Paths are slash-separated and
// relative, e.g. "document/doc-1/prompt.txt".
type Archive interface {
	Save(ctx context.Context, runID, path string, content []byte) error
	Load(ctx context.Context, runID, path string) ([]byte, error)
	List(ctx context.Context, runID string) ([]string, error)
}

func validateKey(runID, path string) (string, string, error) {
	runID = strings.TrimSpace(runID)
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	if runID == "" {
		return "", "", fmt.Errorf("run id is required")
	}
	if path == "" {
		return "", "", fmt.Errorf("artifact path is required")
	}
	return runID, path, nil
}

// MemoryArchive keeps artifacts in process memory. Used by tests.
type MemoryArchive struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{data: make(map[string][]byte)}
}

func (a *MemoryArchive) Save(_ context.Context, runID, path string, content []byte) error {
	runID, path, err := validateKey(runID, path)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data[runID+"/"+path] = append([]byte(nil), content...)
	return nil
}

func (a *MemoryArchive) Load(_ context.Context, runID, path string) ([]byte, error) {
	runID, path, err := validateKey(runID, path)
	if err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	raw, ok := a.data[runID+"/"+path]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), raw...), nil
}

func (a *MemoryArchive) List(_ context.Context, runID string) ([]string, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	prefix := runID + "/"
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, 16)
	for key := range a.data {
		if strings.HasPrefix(key, prefix) {
			out = append(out, strings.TrimPrefix(key, prefix))
		}
	}
	sort.Strings(out)
	return out, nil
}

// DiskArchive writes artifacts under root/<runID>/<path>, jailed to the
// root so artifact paths cannot escape it.
type DiskArchive struct {
	root *safeio.Root
}

func NewDiskArchive(dir string) (*DiskArchive, error) {
	root, err := safeio.NewRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("archive root: %w", err)
	}
	return &DiskArchive{root: root}, nil
}

func (a *DiskArchive) Save(_ context.Context, runID, path string, content []byte) error {
	runID, path, err := validateKey(runID, path)
	if err != nil {
		return err
	}
	return a.root.WriteFile(runID+"/"+path, content)
}

func (a *DiskArchive) Load(_ context.Context, runID, path string) ([]byte, error) {
	runID, path, err := validateKey(runID, path)
	if err != nil {
		return nil, err
	}
	data, err := a.root.ReadFile(runID + "/" + path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (a *DiskArchive) List(_ context.Context, runID string) ([]string, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	out, err := a.root.ListFiles(runID)
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
