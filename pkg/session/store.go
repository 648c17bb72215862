package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Store persists login cookie bundles per account so a later run can
// resume an authenticated session without logging in again.
type Store struct {
	dir string
}

type cookieBundle struct {
	Username string         `json:"username"`
	SavedAt  time.Time      `json:"saved_at"`
	Cookies  []*http.Cookie `json:"cookies"`
}

// NewStore creates a cookie store rooted at dir. An empty dir selects
// the default per-OS data directory.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		var err error
		dir, err = defaultDataDir()
		if err != nil {
			return nil, err
		}
	}

	sessionDir := filepath.Join(dir, "sessions")
	if err := os.MkdirAll(sessionDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &Store{dir: sessionDir}, nil
}

// Save writes the cookie bundle for username atomically.
func (s *Store) Save(username string, cookies []*http.Cookie) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}

	bundle := cookieBundle{
		Username: username,
		SavedAt:  time.Now(),
		Cookies:  cookies,
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	path := s.path(username)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save session file: %w", err)
	}
	return nil
}

// Load returns the saved cookies for username, or nil when no usable
// session exists. A corrupt file is treated the same as an absent one.
func (s *Store) Load(username string) []*http.Cookie {
	data, err := os.ReadFile(s.path(username))
	if err != nil {
		return nil
	}

	var bundle cookieBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil
	}
	if len(bundle.Cookies) == 0 {
		return nil
	}
	return bundle.Cookies
}

// Clear removes the saved session for username, if any.
func (s *Store) Clear(username string) error {
	err := os.Remove(s.path(username))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) path(username string) string {
	return filepath.Join(s.dir, username+".json")
}

// defaultDataDir returns the platform data directory for session files
func defaultDataDir() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "xscraper")
	case "windows":
		dataDir = filepath.Join(os.Getenv("APPDATA"), "xscraper")
	default:
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			dataDir = filepath.Join(xdgData, "xscraper")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "xscraper")
		}
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
