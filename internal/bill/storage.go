package bill

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Storage persists receipt files under the flat names the Service assigns
// ("<id>_<cleaned name>.<ext>"). A name is a single path component;
// implementations refuse anything that would resolve outside their root.
type Storage interface {
	// Save writes a receipt and returns the name it is stored under
	Save(name string, data []byte) (string, error)

	// Get reads a stored receipt
	Get(name string) ([]byte, error)

	// Delete removes a stored receipt
	Delete(name string) error
}

// LocalStorage keeps receipt files in a single directory on disk
type LocalStorage struct {
	root string
}

// NewLocalStorage creates a LocalStorage rooted at dir, creating it if needed
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStorage{root: dir}, nil
}

// resolve maps a receipt name to its on-disk path. The namespace is flat, so
// a separator or a dot segment is never a valid reference; rejecting them
// here keeps client-supplied names confined to the root.
func (l *LocalStorage) resolve(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid receipt name %q", name)
	}
	return filepath.Join(l.root, name), nil
}

// Save writes a receipt file under name
func (l *LocalStorage) Save(name string, data []byte) (string, error) {
	path, err := l.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return name, nil
}

// Get reads the receipt file stored under name
func (l *LocalStorage) Get(name string) ([]byte, error) {
	path, err := l.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes the receipt file stored under name
func (l *LocalStorage) Delete(name string) error {
	path, err := l.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
