package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ra "github.com/panyam/recipeauth"
	"github.com/panyam/recipeauth/identity"
)

// AccountStore keeps accounts under <StoragePath>/accounts with an email index
// under <StoragePath>/emails
type AccountStore struct {
	StoragePath string

	mu sync.Mutex
}

func NewAccountStore(storagePath string) *AccountStore {
	return &AccountStore{StoragePath: storagePath}
}

type emailIndex struct {
	AccountID string `json:"account_id"`
}

func (s *AccountStore) getAccountPath(id string) string {
	return filepath.Join(s.StoragePath, "accounts", safeName(id)+".json")
}

func (s *AccountStore) getEmailPath(email string) string {
	return filepath.Join(s.StoragePath, "emails", safeName(strings.ToLower(strings.TrimSpace(email)))+".json")
}

func (s *AccountStore) CreateAccount(ctx context.Context, account *identity.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.getEmailPath(account.Email)); err == nil {
		return ra.ErrAccountExists
	}
	if err := writeJSONFile(s.getAccountPath(account.ID), account); err != nil {
		return err
	}
	return writeJSONFile(s.getEmailPath(account.Email), emailIndex{AccountID: account.ID})
}

func (s *AccountStore) GetAccountByID(ctx context.Context, id string) (*identity.Account, error) {
	var account identity.Account
	if err := readJSONFile(s.getAccountPath(id), &account); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, identity.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (s *AccountStore) GetAccountByEmail(ctx context.Context, email string) (*identity.Account, error) {
	var index emailIndex
	if err := readJSONFile(s.getEmailPath(email), &index); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, identity.ErrAccountNotFound
		}
		return nil, err
	}
	return s.GetAccountByID(ctx, index.AccountID)
}

func (s *AccountStore) SaveAccount(ctx context.Context, account *identity.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if previous, err := s.GetAccountByID(ctx, account.ID); err == nil && !strings.EqualFold(previous.Email, account.Email) {
		_ = os.Remove(s.getEmailPath(previous.Email))
	}
	if err := writeJSONFile(s.getAccountPath(account.ID), account); err != nil {
		return err
	}
	return writeJSONFile(s.getEmailPath(account.Email), emailIndex{AccountID: account.ID})
}

func (s *AccountStore) DeleteAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.GetAccountByID(ctx, id)
	if errors.Is(err, identity.ErrAccountNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := os.Remove(s.getEmailPath(account.Email)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(s.getAccountPath(id)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
