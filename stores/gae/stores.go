//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	ra "github.com/panyam/recipeauth"
	"github.com/panyam/recipeauth/identity"
)

// Kind constants for Datastore entities
const (
	KindProfile      = "Profile"
	KindAccount      = "Account"
	KindAccountEmail = "AccountEmail"
	KindAuthToken    = "AuthToken"
)

// NewClient opens a Datastore client. A non-empty emulatorHost (or the
// DATASTORE_EMULATOR_HOST variable) connects to an emulator without credentials.
func NewClient(ctx context.Context, projectID, emulatorHost string) (*datastore.Client, error) {
	if emulatorHost == "" {
		emulatorHost = os.Getenv("DATASTORE_EMULATOR_HOST")
	}
	var opts []option.ClientOption
	if emulatorHost != "" {
		opts = append(opts,
			option.WithEndpoint(emulatorHost),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	client, err := datastore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore client: %w", err)
	}
	return client, nil
}

type namespaced struct {
	client    *datastore.Client
	namespace string
}

func (s namespaced) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s namespaced) query(kind string) *datastore.Query {
	query := datastore.NewQuery(kind)
	if s.namespace != "" {
		query = query.Namespace(s.namespace)
	}
	return query
}

// ============================================================================
// ProfileStore
// ============================================================================

// ProfileStore implements ra.ProfileStore using Google Cloud Datastore.
// Writes run in transactions so concurrent provisioning merges.
type ProfileStore struct {
	namespaced
}

func NewProfileStore(client *datastore.Client, namespace string) *ProfileStore {
	return &ProfileStore{namespaced{client: client, namespace: namespace}}
}

func (s *ProfileStore) GetProfile(ctx context.Context, id string) (*ra.Profile, error) {
	var entity ProfileEntity
	if err := s.client.Get(ctx, s.namespacedKey(KindProfile, id), &entity); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, ra.ErrProfileNotFound
		}
		return nil, err
	}
	return entity.ToProfile()
}

func (s *ProfileStore) UpsertProfile(ctx context.Context, profile *ra.Profile) error {
	key := s.namespacedKey(KindProfile, profile.ID)
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var existing *ra.Profile
		var entity ProfileEntity
		err := tx.Get(key, &entity)
		switch {
		case err == nil:
			if existing, err = entity.ToProfile(); err != nil {
				return err
			}
		case !errors.Is(err, datastore.ErrNoSuchEntity):
			return err
		}

		merged, err := ProfileToEntity(ra.MergeProfile(existing, profile), key)
		if err != nil {
			return err
		}
		_, err = tx.Put(key, merged)
		return err
	})
	return err
}

func (s *ProfileStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	key := s.namespacedKey(KindProfile, id)
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var entity ProfileEntity
		if err := tx.Get(key, &entity); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return ra.ErrProfileNotFound
			}
			return err
		}
		if !at.After(entity.LastLogin) {
			return nil
		}
		entity.LastLogin = at
		entity.Version++
		_, err := tx.Put(key, &entity)
		return err
	})
	return err
}

// ListProfileIDs returns the ids of every stored profile, in key order
func (s *ProfileStore) ListProfileIDs(ctx context.Context) ([]string, error) {
	var ids []string
	it := s.client.Run(ctx, s.query(KindProfile).KeysOnly())
	for {
		key, err := it.Next(nil)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, key.Name)
	}
	return ids, nil
}

// ============================================================================
// AccountStore
// ============================================================================

// AccountStore implements identity.AccountStore using Google Cloud Datastore
type AccountStore struct {
	namespaced
}

func NewAccountStore(client *datastore.Client, namespace string) *AccountStore {
	return &AccountStore{namespaced{client: client, namespace: namespace}}
}

func emailKeyName(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AccountStore) CreateAccount(ctx context.Context, account *identity.Account) error {
	accountKey := s.namespacedKey(KindAccount, account.ID)
	emailKey := s.namespacedKey(KindAccountEmail, emailKeyName(account.Email))

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var index AccountEmailEntity
		err := tx.Get(emailKey, &index)
		if err == nil {
			return ra.ErrAccountExists
		}
		if !errors.Is(err, datastore.ErrNoSuchEntity) {
			return err
		}
		if _, err := tx.Put(accountKey, AccountToEntity(account, accountKey)); err != nil {
			return err
		}
		_, err = tx.Put(emailKey, &AccountEmailEntity{Key: emailKey, AccountID: account.ID})
		return err
	})
	return err
}

func (s *AccountStore) GetAccountByID(ctx context.Context, id string) (*identity.Account, error) {
	var entity AccountEntity
	if err := s.client.Get(ctx, s.namespacedKey(KindAccount, id), &entity); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, identity.ErrAccountNotFound
		}
		return nil, err
	}
	return entity.ToAccount(), nil
}

func (s *AccountStore) GetAccountByEmail(ctx context.Context, email string) (*identity.Account, error) {
	var index AccountEmailEntity
	if err := s.client.Get(ctx, s.namespacedKey(KindAccountEmail, emailKeyName(email)), &index); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, identity.ErrAccountNotFound
		}
		return nil, err
	}
	return s.GetAccountByID(ctx, index.AccountID)
}

func (s *AccountStore) SaveAccount(ctx context.Context, account *identity.Account) error {
	accountKey := s.namespacedKey(KindAccount, account.ID)
	emailKey := s.namespacedKey(KindAccountEmail, emailKeyName(account.Email))

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var previous AccountEntity
		if err := tx.Get(accountKey, &previous); err == nil && emailKeyName(previous.Email) != emailKeyName(account.Email) {
			if err := tx.Delete(s.namespacedKey(KindAccountEmail, emailKeyName(previous.Email))); err != nil {
				return err
			}
		}
		if _, err := tx.Put(accountKey, AccountToEntity(account, accountKey)); err != nil {
			return err
		}
		_, err := tx.Put(emailKey, &AccountEmailEntity{Key: emailKey, AccountID: account.ID})
		return err
	})
	return err
}

func (s *AccountStore) DeleteAccount(ctx context.Context, id string) error {
	accountKey := s.namespacedKey(KindAccount, id)
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var entity AccountEntity
		if err := tx.Get(accountKey, &entity); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return nil
			}
			return err
		}
		return tx.DeleteMulti([]*datastore.Key{
			accountKey,
			s.namespacedKey(KindAccountEmail, emailKeyName(entity.Email)),
		})
	})
	return err
}

// ============================================================================
// TokenStore
// ============================================================================

// TokenStore implements identity.TokenStore using Google Cloud Datastore
type TokenStore struct {
	namespaced
}

func NewTokenStore(client *datastore.Client, namespace string) *TokenStore {
	return &TokenStore{namespaced{client: client, namespace: namespace}}
}

func (s *TokenStore) CreateToken(ctx context.Context, userID, email string, tokenType identity.TokenType, expiry time.Duration) (*identity.AuthToken, error) {
	token, err := identity.GenerateSecureToken()
	if err != nil {
		return nil, err
	}

	key := s.namespacedKey(KindAuthToken, token)
	now := time.Now()
	entity := &AuthTokenEntity{
		Key:       key,
		Type:      tokenType,
		UserID:    userID,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(expiry),
	}
	if _, err := s.client.Put(ctx, key, entity); err != nil {
		return nil, err
	}
	return entity.ToAuthToken(), nil
}

func (s *TokenStore) GetToken(ctx context.Context, token string) (*identity.AuthToken, error) {
	var entity AuthTokenEntity
	if err := s.client.Get(ctx, s.namespacedKey(KindAuthToken, token), &entity); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, identity.ErrTokenNotFound
		}
		return nil, err
	}

	authToken := entity.ToAuthToken()
	if authToken.IsExpired() {
		_ = s.DeleteToken(ctx, token)
		return nil, identity.ErrTokenExpired
	}
	return authToken, nil
}

func (s *TokenStore) DeleteToken(ctx context.Context, token string) error {
	return s.client.Delete(ctx, s.namespacedKey(KindAuthToken, token))
}

func (s *TokenStore) DeleteUserTokens(ctx context.Context, userID string, tokenType identity.TokenType) error {
	query := s.query(KindAuthToken).
		FilterField("user_id", "=", userID).
		FilterField("type", "=", string(tokenType)).
		KeysOnly()

	keys, err := s.client.GetAll(ctx, query, nil)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.DeleteMulti(ctx, keys)
}
