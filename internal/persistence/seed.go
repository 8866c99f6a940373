package persistence

import (
	"errors"
	"fmt"

	"tcr-arena/internal/models"
)

// SeedAccount is a player created by the seed command.
type SeedAccount struct {
	Username string
	Password string
	Trophies int
}

// DefaultSeedAccounts are the demo players.
var DefaultSeedAccounts = []SeedAccount{
	{Username: "alice", Password: "alice", Trophies: 1200},
	{Username: "bob", Password: "bob", Trophies: 900},
}

// Seed creates the accounts that do not exist yet and returns the usernames it created.
func Seed(s *Store, accounts []SeedAccount) ([]string, error) {
	var created []string
	for _, a := range accounts {
		_, err := s.LoadPlayerAccount(a.Username)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrPlayerNotFound) {
			return created, err
		}
		acc := &models.PlayerAccount{
			ID:             a.Username,
			Username:       a.Username,
			HashedPassword: a.Password,
			Trophies:       a.Trophies,
		}
		if err := s.SavePlayerAccount(acc); err != nil {
			return created, fmt.Errorf("seed %s: %w", a.Username, err)
		}
		created = append(created, a.Username)
	}
	return created, nil
}
