package instrument

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Source supplies the raw bytes of an instrument definition.
type Source interface {
	Location() string
	Read() ([]byte, error)
}

// fileSource identifies on-disk definitions.
type fileSource struct {
	path string
}

func (s fileSource) Location() string {
	return s.path
}

func (s fileSource) Read() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("instrument: read %s: %w", s.path, err)
	}
	return data, nil
}

// SourceFromFile returns a Source pointing to a file path.
func SourceFromFile(path string) Source {
	return fileSource{path: filepath.Clean(path)}
}

// fsSource references a definition within an fs.FS.
type fsSource struct {
	fsys fs.FS
	name string
}

func (s fsSource) Location() string {
	return s.name
}

func (s fsSource) Read() ([]byte, error) {
	if s.fsys == nil {
		return nil, errors.New("instrument: filesystem is nil")
	}
	data, err := fs.ReadFile(s.fsys, s.name)
	if err != nil {
		return nil, fmt.Errorf("instrument: read %s: %w", s.name, err)
	}
	return data, nil
}

// SourceFromFS returns a Source identifying a definition inside fsys.
func SourceFromFS(fsys fs.FS, name string) Source {
	return fsSource{fsys: fsys, name: name}
}

// bytesSource wraps an in-memory definition.
type bytesSource struct {
	name string
	data []byte
}

func (s bytesSource) Location() string {
	return s.name
}

func (s bytesSource) Read() ([]byte, error) {
	return append([]byte(nil), s.data...), nil
}

// SourceFromBytes wraps an in-memory definition. name is used in errors and
// to pick the decoder (".yaml"/".yml" select YAML, anything else tries JSON
// first).
func SourceFromBytes(name string, data []byte) Source {
	return bytesSource{name: name, data: append([]byte(nil), data...)}
}
