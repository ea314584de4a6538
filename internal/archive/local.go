package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalSink stores archives as files in a single directory.
type LocalSink struct {
	dir string
}

// NewLocalSink creates a LocalSink rooted at dir, creating it if necessary.
func NewLocalSink(dir string) (*LocalSink, error) {
	if dir == "" {
		return nil, errors.New("local archive: directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("local archive: resolve directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("local archive: create directory: %w", err)
	}
	return &LocalSink{dir: abs}, nil
}

// Kind returns KindLocal.
func (s *LocalSink) Kind() string {
	return KindLocal
}

// Dir returns the directory archives are written to.
func (s *LocalSink) Dir() string {
	return s.dir
}

// Put writes data under name. The file appears atomically and is readable
// only by the owner.
func (s *LocalSink) Put(_ context.Context, name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-"+name+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write archive: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("chmod archive: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("rename archive: %w", err)
	}
	return nil
}

// Get reads the archive called name.
func (s *LocalSink) Get(_ context.Context, name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("read archive: %w", err)
	}
	return data, nil
}

// List returns the archives in the directory, newest first. Temporary files
// and anything that is not an archive name are skipped.
func (s *LocalSink) List(_ context.Context) ([]Object, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}

	objects := []Object{}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || !ValidName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat archive %s: %w", entry.Name(), err)
		}
		objects = append(objects, Object{
			Name:       entry.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}
	sortNewestFirst(objects)
	return objects, nil
}

// Delete removes the archive called name.
func (s *LocalSink) Delete(_ context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("delete archive: %w", err)
	}
	return nil
}
