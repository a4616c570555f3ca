// Package catalog supplies the ordered list of directories a job submits to.
// Sources are read-only; a job sees one consistent snapshot.
package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/directory-submitter/constants"
	"github.com/joseph-ayodele/directory-submitter/internal/common"
	"github.com/joseph-ayodele/directory-submitter/internal/entity"
)

//go:embed default.yaml
var defaultCatalog []byte

// Source is any ordered, versioned directory list.
type Source interface {
	Directories(ctx context.Context) ([]entity.Directory, error)
	Version() string
}

// Static is an immutable in-memory catalog.
type Static struct {
	version string
	dirs    []entity.Directory
}

// NewStatic validates dirs and freezes a copy of them.
func NewStatic(version string, dirs []entity.Directory) (*Static, error) {
	seen := make(map[string]struct{}, len(dirs))
	out := make([]entity.Directory, 0, len(dirs))
	for i, d := range dirs {
		d.Name = strings.TrimSpace(d.Name)
		d.URL = strings.TrimSpace(d.URL)

		v := common.NewValidator().
			Field(fmt.Sprintf("directories[%d].name", i), d.Name, common.Required).
			Field(fmt.Sprintf("directories[%d].url", i), d.URL, common.HTTPURL)
		if err := v.Error(); err != nil {
			return nil, err
		}
		if _, dup := seen[d.Name]; dup {
			return nil, fmt.Errorf("duplicate directory name %q: %w", d.Name, common.ErrValidation)
		}
		seen[d.Name] = struct{}{}

		diff, ok := constants.ParseDifficulty(string(d.Difficulty))
		if !ok {
			return nil, fmt.Errorf("directory %q: unknown difficulty %q: %w", d.Name, d.Difficulty, common.ErrValidation)
		}
		d.Difficulty = diff
		d.Requirements = append([]string(nil), d.Requirements...)
		out = append(out, d)
	}
	return &Static{version: version, dirs: out}, nil
}

func (s *Static) Directories(context.Context) ([]entity.Directory, error) {
	out := make([]entity.Directory, len(s.dirs))
	copy(out, s.dirs)
	return out, nil
}

func (s *Static) Version() string { return s.version }

// Len is the number of entries in the snapshot.
func (s *Static) Len() int { return len(s.dirs) }

type fileFormat struct {
	Version     string             `yaml:"version"`
	Directories []entity.Directory `yaml:"directories"`
}

// Parse reads a YAML catalog document.
func Parse(data []byte) (*Static, error) {
	var f fileFormat
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if f.Version == "" {
		f.Version = "unversioned"
	}
	return NewStatic(f.Version, f.Directories)
}

// LoadFile reads and validates a YAML catalog from disk.
func LoadFile(path string) (*Static, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(b)
}

// Default parses the built-in catalog.
func Default() (*Static, error) {
	s, err := Parse(defaultCatalog)
	if err != nil {
		return nil, fmt.Errorf("built-in catalog: %w", err)
	}
	return s, nil
}

// Load reads the catalog at path, or the built-in one when path is empty.
func Load(path string) (*Static, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}

// Take returns the first n directories in declared order.
func Take(dirs []entity.Directory, n int) []entity.Directory {
	if n <= 0 {
		return nil
	}
	if n > len(dirs) {
		n = len(dirs)
	}
	return dirs[:n:n]
}
