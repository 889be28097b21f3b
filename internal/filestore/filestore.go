// Package filestore persists processed uploads on local disk or in a
// Google Cloud Storage bucket.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type Store interface {
	// Save writes data under dir/name and returns the reference stored on
	// the entity row.
	Save(ctx context.Context, dir string, name string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, ref string) error
}

func NewName(ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.ReplaceAll(uuid.New().String(), "-", "") + ext
}

type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	if root == "" {
		return nil, errors.New("upload dir is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{root: filepath.Clean(root)}, nil
}

func (l *Local) Root() string { return l.root }

func (l *Local) Save(_ context.Context, dir string, name string, data []byte, _ string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	target := filepath.Join(l.root, filepath.Clean("/"+dir), name)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", err
	}
	return filepath.ToSlash(target), nil
}

func (l *Local) Delete(_ context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	target := filepath.Clean(filepath.FromSlash(ref))
	rel, err := filepath.Rel(l.root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("refusing to delete %q outside upload dir", ref)
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func objectKey(dir string, name string) string {
	return strings.TrimPrefix(path.Join(dir, name), "/")
}
