package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	ra "github.com/panyam/recipeauth"
)

// ProfileStore keeps one JSON document per account under <StoragePath>/profiles
type ProfileStore struct {
	StoragePath string

	// serializes read-modify-write cycles within the process
	mu sync.Mutex
}

func NewProfileStore(storagePath string) *ProfileStore {
	return &ProfileStore{StoragePath: storagePath}
}

func (s *ProfileStore) getProfilePath(id string) string {
	return filepath.Join(s.StoragePath, "profiles", safeName(id)+".json")
}

func (s *ProfileStore) GetProfile(ctx context.Context, id string) (*ra.Profile, error) {
	var profile ra.Profile
	if err := readJSONFile(s.getProfilePath(id), &profile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ra.ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// UpsertProfile merges profile into whatever is on disk
func (s *ProfileStore) UpsertProfile(ctx context.Context, profile *ra.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.GetProfile(ctx, profile.ID)
	if err != nil && !errors.Is(err, ra.ErrProfileNotFound) {
		return err
	}
	return writeJSONFile(s.getProfilePath(profile.ID), ra.MergeProfile(existing, profile))
}

func (s *ProfileStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, err := s.GetProfile(ctx, id)
	if err != nil {
		return err
	}
	if !at.After(profile.LastLogin) {
		return nil
	}
	profile.LastLogin = at
	profile.Version++
	return writeJSONFile(s.getProfilePath(id), profile)
}
