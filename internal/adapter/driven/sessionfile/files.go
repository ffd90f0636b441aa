// Package sessionfile keeps session state in small text files so that
// separate invocations of the tool can see it.
package sessionfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/ericfisherdev/nauta/internal/domain/port/driven"
)

// File names inside the session directory.
const (
	LogoutURLFile     = "logout_url"
	AttributeUUIDFile = "attribute_uuid"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.SessionSignal  = (*Store)(nil)
	_ driven.AttributeStore = (*Store)(nil)
)

// Store implements SessionSignal and AttributeStore on files in one
// directory. Writes replace the file atomically; there is no locking, so the
// last writer wins.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir. The directory must exist.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// Exists reports whether a logout URL is pending.
func (s *Store) Exists() (bool, error) {
	_, err := os.Stat(s.path(LogoutURLFile))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat logout url: %w", err)
	}
	return true, nil
}

// Read returns the pending logout URL, or driven.ErrNotConnected.
func (s *Store) Read() (string, error) {
	v, err := s.readFile(LogoutURLFile)
	if errors.Is(err, fs.ErrNotExist) {
		return "", driven.ErrNotConnected
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// Set records logoutURL as the pending logout.
func (s *Store) Set(logoutURL string) error {
	return s.writeFile(LogoutURLFile, logoutURL)
}

// Clear removes the pending logout URL. Clearing an absent signal is not an
// error.
func (s *Store) Clear() error {
	err := os.Remove(s.path(LogoutURLFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear logout url: %w", err)
	}
	return nil
}

// LastAttributeUUID returns the previous session's attribute UUID, or "".
func (s *Store) LastAttributeUUID() (string, error) {
	v, err := s.readFile(AttributeUUIDFile)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	return v, err
}

// SetAttributeUUID records uuid for the next login's guess.
func (s *Store) SetAttributeUUID(uuid string) error {
	return s.writeFile(AttributeUUIDFile, uuid)
}

func (s *Store) readFile(name string) (string, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *Store) writeFile(name, value string) error {
	if err := atomic.WriteFile(s.path(name), strings.NewReader(value+"\n")); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
