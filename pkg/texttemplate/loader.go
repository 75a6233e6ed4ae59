package texttemplate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Loader resolves template names to template source.
type Loader interface {
	Load(name string) (string, error)
}

type MemoryLoader map[string]string

func (m MemoryLoader) Load(name string) (string, error) {
	if s, ok := m[name]; ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
}

// FSLoader loads templates from a file system, e.g. os.DirFS(dir).
type FSLoader struct {
	FS fs.FS
}

func (l FSLoader) Load(name string) (string, error) {
	b, err := fs.ReadFile(l.FS, name)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DirLoader loads templates from the OS file system. Relative names are
// resolved against Dir; absolute names are used as they are.
type DirLoader struct {
	Dir string
}

func (l DirLoader) Load(name string) (string, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.Dir, name)
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// RenderNamed loads the template name from l and renders it.
func (e *Engine) RenderNamed(l Loader, name string, ctx Context, softFail bool) (string, error) {
	src, err := l.Load(name)
	if err != nil {
		return "", err
	}
	out, err := e.Render(src, ctx, softFail)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}
