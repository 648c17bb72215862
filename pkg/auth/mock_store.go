package auth

import "sync"

// MockStore is an in-memory CredentialStore for tests, with per-operation
// error injection.
type MockStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account

	StoreErr    error
	RetrieveErr error
	ListErr     error
	DeleteErr   error
}

// NewMockStore creates a new mock credential store
func NewMockStore() *MockStore {
	return &MockStore{accounts: make(map[string]*Account)}
}

func (m *MockStore) Store(account *Account) error {
	if m.StoreErr != nil {
		return m.StoreErr
	}
	if account == nil || account.Username == "" {
		return ErrInvalidCredentials
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc := *account
	m.accounts[account.Username] = &acc
	return nil
}

func (m *MockStore) Retrieve(username string) (*Account, error) {
	if m.RetrieveErr != nil {
		return nil, m.RetrieveErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, exists := m.accounts[username]
	if !exists {
		return nil, ErrCredentialsNotFound
	}
	acc := *account
	return &acc, nil
}

func (m *MockStore) List() ([]*Account, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	accounts := make([]*Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		acc := *account
		accounts = append(accounts, &acc)
	}
	return accounts, nil
}

func (m *MockStore) Delete(username string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.accounts[username]; !exists {
		return ErrCredentialsNotFound
	}
	delete(m.accounts, username)
	return nil
}

func (m *MockStore) Exists(username string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.accounts[username]
	return exists
}
