package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads credentials from environment variables. It is
// read-only and sits last in the store chain so CI and containers can
// inject an account without touching the keyring or disk.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment store
func (s *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables
func (s *EnvironmentStore) Retrieve(username string) (*Account, error) {
	envUsername := os.Getenv("XSCRAPER_USERNAME")
	if envUsername == "" {
		return nil, ErrCredentialsNotFound
	}
	if username != "" && username != envUsername {
		return nil, ErrCredentialsNotFound
	}

	account := &Account{
		Username:     envUsername,
		Password:     os.Getenv("XSCRAPER_PASSWORD"),
		Email:        os.Getenv("XSCRAPER_EMAIL"),
		UserAgent:    os.Getenv("XSCRAPER_USER_AGENT"),
		LastModified: time.Now(),
	}
	if !account.Complete() {
		return nil, ErrInvalidCredentials
	}
	return account, nil
}

// List returns the environment account if one is configured
func (s *EnvironmentStore) List() ([]*Account, error) {
	account, err := s.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment store
func (s *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials are configured
func (s *EnvironmentStore) Exists(username string) bool {
	_, err := s.Retrieve(username)
	return err == nil
}
