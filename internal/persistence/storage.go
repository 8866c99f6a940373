package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"tcr-arena/internal/models"
)

const (
	playerDataDir = "players"
	matchDataDir  = "matches"
)

var (
	// ErrPlayerNotFound is returned when no account file exists for the player.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrBadCredentials is returned when the password does not match.
	ErrBadCredentials = errors.New("invalid player id or password")
	// ErrMatchNotFound is returned when no record matches a MatchRef.
	ErrMatchNotFound = errors.New("match record not found")
)

// Store keeps player accounts and match records as JSON files under a root directory.
type Store struct {
	root string
	now  func() time.Time
	mu   sync.Mutex
}

// NewStore creates the directory layout under root.
func NewStore(root string) (*Store, error) {
	for _, dir := range []string{playerDataDir, matchDataDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", dir, err)
		}
	}
	return &Store{root: root, now: time.Now}, nil
}

// LoadPlayerAccount loads a player's account data from its JSON file.
func (s *Store) LoadPlayerAccount(playerID string) (*models.PlayerAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadPlayerLocked(playerID)
}

func (s *Store) loadPlayerLocked(playerID string) (*models.PlayerAccount, error) {
	if !validID(playerID) {
		return nil, ErrPlayerNotFound
	}
	var acc models.PlayerAccount
	if err := s.readJSON(filepath.Join(playerDataDir, playerID+".json"), &acc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	return &acc, nil
}

// SavePlayerAccount saves a player's account data to a JSON file. A missing ID defaults to
// the username, and a password that is not yet a bcrypt hash gets hashed.
func (s *Store) SavePlayerAccount(acc *models.PlayerAccount) error {
	if acc.ID == "" {
		acc.ID = acc.Username
	}
	if !validID(acc.ID) {
		return fmt.Errorf("invalid player id %q", acc.ID)
	}
	if _, err := bcrypt.Cost([]byte(acc.HashedPassword)); err != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(acc.HashedPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		acc.HashedPassword = string(hashed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(filepath.Join(playerDataDir, acc.ID+".json"), acc)
}

// Authenticate checks the password against the stored bcrypt hash.
func (s *Store) Authenticate(ctx context.Context, playerID, password string) (*models.PlayerAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	acc, err := s.LoadPlayerAccount(playerID)
	if err != nil {
		if errors.Is(err, ErrPlayerNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.HashedPassword), []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}
	return acc, nil
}

// CreateMatchRecord stores a new record with no winner and returns its ID.
func (s *Store) CreateMatchRecord(ctx context.Context, player1ID, player2ID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rec := models.MatchRecord{
		ID:        uuid.NewString(),
		Player1ID: player1ID,
		Player2ID: player2ID,
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeJSON(filepath.Join(matchDataDir, rec.ID+".json"), rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// RecordWinner sets the winner on the referenced record. Without an ID it updates every
// record between the two players that has no winner yet.
func (s *Store) RecordWinner(ctx context.Context, ref models.MatchRef, winnerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	finished := s.now().UTC()
	if ref.ID != "" {
		rec, err := s.loadMatchLocked(ref.ID)
		if err != nil {
			return err
		}
		rec.WinnerID = winnerID
		rec.FinishedAt = &finished
		return s.writeJSON(filepath.Join(matchDataDir, rec.ID+".json"), rec)
	}

	records, err := s.listMatchesLocked()
	if err != nil {
		return err
	}
	updated := 0
	for i := range records {
		rec := &records[i]
		if rec.WinnerID != "" || rec.Player1ID != ref.Player1ID || rec.Player2ID != ref.Player2ID {
			continue
		}
		rec.WinnerID = winnerID
		rec.FinishedAt = &finished
		if err := s.writeJSON(filepath.Join(matchDataDir, rec.ID+".json"), rec); err != nil {
			return err
		}
		updated++
	}
	if updated == 0 {
		return ErrMatchNotFound
	}
	return nil
}

// LoadMatchRecord returns a single record.
func (s *Store) LoadMatchRecord(id string) (*models.MatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadMatchLocked(id)
}

// ListMatchRecords returns every record, oldest first.
func (s *Store) ListMatchRecords() ([]models.MatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listMatchesLocked()
}

func (s *Store) loadMatchLocked(id string) (*models.MatchRecord, error) {
	if !validID(id) {
		return nil, ErrMatchNotFound
	}
	var rec models.MatchRecord
	if err := s.readJSON(filepath.Join(matchDataDir, id+".json"), &rec); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Store) listMatchesLocked() ([]models.MatchRecord, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, matchDataDir))
	if err != nil {
		return nil, err
	}
	records := make([]models.MatchRecord, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		var rec models.MatchRecord
		if err := s.readJSON(filepath.Join(matchDataDir, e.Name()), &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

func (s *Store) readJSON(rel string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.root, rel))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// writeJSON writes through a temp file so a crash never leaves half a record behind.
func (s *Store) writeJSON(rel string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(s.root, rel)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// validID keeps IDs from escaping the store directory.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}

// LoadArenaConfig reads an arena layout from a JSON file, filling any section the file
// leaves out from the defaults, and validates the result.
func LoadArenaConfig(path string) (models.GameConfig, error) {
	cfg := models.DefaultGameConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read arena config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parse %s: %v", models.ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
