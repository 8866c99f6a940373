package server

import (
	"context"
	"errors"

	"tcr-arena/internal/models"
	"tcr-arena/internal/telemetry"
)

// ErrNotIdentified is returned for requests that need a player identity.
var ErrNotIdentified = errors.New("identify before joining the queue")

// Authenticator resolves a player's credentials to an account.
type Authenticator interface {
	Authenticate(ctx context.Context, playerID, password string) (*models.PlayerAccount, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, playerID, password string) (*models.PlayerAccount, error)

// Authenticate implements Authenticator.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, playerID, password string) (*models.PlayerAccount, error) {
	return f(ctx, playerID, password)
}

// handleLogin checks the credentials and binds the session on success.
func handleLogin(ctx context.Context, auth Authenticator, logger telemetry.Logger, sess *Session, playerID, password string) (*models.PlayerAccount, error) {
	logger.Printf("Login attempt from %s on %s", playerID, sess.ConnID())
	acc, err := auth.Authenticate(ctx, playerID, password)
	if err != nil {
		logger.Printf("Login failed for %s: %v", playerID, err)
		return nil, err
	}
	sess.bind(acc.ID)
	logger.Printf("Player %s logged in on %s", acc.ID, sess.ConnID())
	return acc, nil
}
