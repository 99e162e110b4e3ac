package metadata

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
)

// pdefFile is the file name ArduPilot uses inside a per-version folder.
const pdefFile = "apm.pdef.json"

// DocumentStore lists and loads source-A metadata documents by name.
type DocumentStore interface {
	// Names returns the available document names, e.g. "Sub-4.1".
	Names() ([]string, error)
	Load(name string) ([]byte, error)
}

// FSStore serves documents from one or more file systems. A document
// "Sub-4.1" is either "Sub-4.1.json" or "Sub-4.1/apm.pdef.json"; the
// first file system that has it wins.
type FSStore struct {
	roots []fs.FS
	cache sync.Map
}

func NewFSStore(roots ...fs.FS) *FSStore {
	return &FSStore{roots: roots}
}

// NewDirStore creates a store over directories on disk. Missing
// directories are skipped.
func NewDirStore(searchPaths []string) *FSStore {
	roots := make([]fs.FS, 0, len(searchPaths))
	for _, p := range searchPaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			roots = append(roots, os.DirFS(p))
		}
	}
	return NewFSStore(roots...)
}

func (s *FSStore) Names() ([]string, error) {
	seen := make(map[string]struct{})
	for _, root := range s.roots {
		entries, err := fs.ReadDir(root, ".")
		if err != nil {
			return nil, fmt.Errorf("failed to list metadata documents: %w", err)
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() {
				if _, err := fs.Stat(root, path.Join(name, pdefFile)); err == nil {
					seen[name] = struct{}{}
				}
				continue
			}
			if strings.HasSuffix(name, ".json") {
				seen[strings.TrimSuffix(name, ".json")] = struct{}{}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (s *FSStore) Load(name string) ([]byte, error) {
	if cached, ok := s.cache.Load(name); ok {
		return cached.([]byte), nil
	}

	candidates := []string{name + ".json", path.Join(name, pdefFile)}
	for _, root := range s.roots {
		for _, c := range candidates {
			data, err := fs.ReadFile(root, c)
			if err == nil {
				s.cache.Store(name, data)
				return data, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read metadata document %s: %w", c, err)
			}
		}
	}

	return nil, fmt.Errorf("metadata document not found: %s: %w", name, fs.ErrNotExist)
}

// ClearCache drops loaded documents so changed files are read again.
func (s *FSStore) ClearCache() {
	s.cache.Range(func(key, value interface{}) bool {
		s.cache.Delete(key)
		return true
	})
}
