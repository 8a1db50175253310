//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	ra "github.com/panyam/recipeauth"
	"github.com/panyam/recipeauth/identity"
)

// AutoMigrate runs database migrations for all recipeauth tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ProfileModel{},
		&AccountModel{},
		&AuthTokenModel{},
	)
}

// forUpdate row-locks reads inside a transaction where the dialect supports it
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// =============================================================================
// ProfileStore
// =============================================================================

// ProfileStore implements ra.ProfileStore using GORM
type ProfileStore struct {
	db *gorm.DB
}

func NewProfileStore(db *gorm.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func (s *ProfileStore) GetProfile(ctx context.Context, id string) (*ra.Profile, error) {
	var model ProfileModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ra.ErrProfileNotFound
		}
		return nil, err
	}
	return model.ToProfile(), nil
}

func (s *ProfileStore) UpsertProfile(ctx context.Context, profile *ra.Profile) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// the row lock covers existing rows only; a concurrent first insert is
		// caught by the conflict clause and merged on the second pass
		for attempt := 0; attempt < 2; attempt++ {
			var existing *ra.Profile
			var model ProfileModel
			err := forUpdate(tx).First(&model, "id = ?", profile.ID).Error
			switch {
			case err == nil:
				existing = model.ToProfile()
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}

			merged := ProfileToModel(ra.MergeProfile(existing, profile))
			if existing != nil {
				return tx.Save(merged).Error
			}
			result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(merged)
			if result.Error != nil || result.RowsAffected > 0 {
				return result.Error
			}
		}
		return fmt.Errorf("profile %s: concurrent insert did not settle", profile.ID)
	})
}

// UpdateLastLogin is a single conditional UPDATE so it can't move LastLogin back
func (s *ProfileStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	db := s.db.WithContext(ctx)
	at = at.UTC()
	result := db.Model(&ProfileModel{}).
		Where("id = ? AND last_login < ?", id, at).
		Updates(map[string]any{
			"last_login": at,
			"version":    gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := db.Model(&ProfileModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ra.ErrProfileNotFound
	}
	return nil
}

// =============================================================================
// AccountStore
// =============================================================================

// AccountStore implements identity.AccountStore using GORM
type AccountStore struct {
	db *gorm.DB
}

func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) CreateAccount(ctx context.Context, account *identity.Account) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&AccountModel{}).Where("email_key = ?", emailKey(account.Email)).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ra.ErrAccountExists
		}
		return tx.Create(AccountToModel(account)).Error
	})
}

func (s *AccountStore) GetAccountByID(ctx context.Context, id string) (*identity.Account, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *AccountStore) GetAccountByEmail(ctx context.Context, email string) (*identity.Account, error) {
	return s.first(ctx, "email_key = ?", emailKey(email))
}

func (s *AccountStore) first(ctx context.Context, query string, arg any) (*identity.Account, error) {
	var model AccountModel
	if err := s.db.WithContext(ctx).First(&model, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, identity.ErrAccountNotFound
		}
		return nil, err
	}
	return model.ToAccount(), nil
}

func (s *AccountStore) SaveAccount(ctx context.Context, account *identity.Account) error {
	return s.db.WithContext(ctx).Save(AccountToModel(account)).Error
}

func (s *AccountStore) DeleteAccount(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&AccountModel{}, "id = ?", id).Error
}

// =============================================================================
// TokenStore (for email verification and password reset)
// =============================================================================

// TokenStore implements identity.TokenStore using GORM
type TokenStore struct {
	db *gorm.DB
}

func NewTokenStore(db *gorm.DB) *TokenStore {
	return &TokenStore{db: db}
}

func (s *TokenStore) CreateToken(ctx context.Context, userID, email string, tokenType identity.TokenType, expiry time.Duration) (*identity.AuthToken, error) {
	token, err := identity.GenerateSecureToken()
	if err != nil {
		return nil, err
	}

	model := &AuthTokenModel{
		Token:     token,
		Type:      tokenType,
		UserID:    userID,
		Email:     email,
		ExpiresAt: time.Now().Add(expiry),
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return nil, err
	}
	return model.ToAuthToken(), nil
}

func (s *TokenStore) GetToken(ctx context.Context, token string) (*identity.AuthToken, error) {
	var model AuthTokenModel
	if err := s.db.WithContext(ctx).First(&model, "token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, identity.ErrTokenNotFound
		}
		return nil, err
	}

	authToken := model.ToAuthToken()
	if authToken.IsExpired() {
		_ = s.DeleteToken(ctx, token)
		return nil, identity.ErrTokenExpired
	}
	return authToken, nil
}

func (s *TokenStore) DeleteToken(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Delete(&AuthTokenModel{}, "token = ?", token).Error
}

func (s *TokenStore) DeleteUserTokens(ctx context.Context, userID string, tokenType identity.TokenType) error {
	return s.db.WithContext(ctx).Delete(&AuthTokenModel{}, "user_id = ? AND type = ?", userID, tokenType).Error
}
