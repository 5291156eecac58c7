package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/patrickmn/go-cache"
	"github.com/riaaa16/ai-consultant/internal/pathguard"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/sync/singleflight"
)

var (
	ErrSchemaNotFound  = errors.New("schema not found")
	ErrSchemaViolation = errors.New("schema validation failed")
)

// Schema is a compiled JSON schema document.
type Schema struct {
	Name     string
	compiled *jsonschema.Schema
}

// Validate checks doc, a value decoded by encoding/json with UseNumber
// (map[string]any, []any, json.Number, string, bool or nil).
func (s *Schema) Validate(doc any) error {
	if err := s.compiled.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%w: %s", ErrSchemaViolation, describe(verr))
		}
		return fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	return nil
}

// describe flattens the validator's error tree to its deepest leaf, which is
// the message most useful to whoever wrote the document.
func describe(verr *jsonschema.ValidationError) string {
	leaf := verr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	loc := leaf.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return fmt.Sprintf("%s: %s", loc, leaf.Message)
}

// Loader loads schemas by name from a fixed directory. Compiled schemas are
// kept for the lifetime of the process; schema files are deployment
// artifacts and are never reloaded.
type Loader struct {
	dir   string
	cache *cache.Cache
	group singleflight.Group
}

func NewLoader(dir string) *Loader {
	return &Loader{dir: dir, cache: cache.New(cache.NoExpiration, 0)}
}

// Dir returns the directory schemas are read from.
func (l *Loader) Dir() string { return l.dir }

// Load returns the compiled schema for name, compiling it on first use.
func (l *Loader) Load(name string) (*Schema, error) {
	if v, ok := l.cache.Get(name); ok {
		return v.(*Schema), nil
	}
	v, err, _ := l.group.Do(name, func() (interface{}, error) {
		if v, ok := l.cache.Get(name); ok {
			return v, nil
		}
		s, err := l.compile(name)
		if err != nil {
			return nil, err
		}
		l.cache.Set(name, s, cache.NoExpiration)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Schema), nil
}

func (l *Loader) compile(name string) (*Schema, error) {
	path, err := pathguard.Resolve(l.dir, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, name)
		}
		return nil, fmt.Errorf("read schema %s: %w", name, err)
	}

	url := "file://" + filepath.ToSlash(path)
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("load schema %s: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{Name: name, compiled: compiled}, nil
}
