package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stillpoint-app/stillpoint/internal/adapter"
	"github.com/stillpoint-app/stillpoint/internal/logger"
	"github.com/stillpoint-app/stillpoint/internal/store"
	"github.com/stillpoint-app/stillpoint/internal/utils"
)

type identityService struct {
	state  store.StateRepository
	remote adapter.RemoteStore
	ids    *utils.UUIDGenerator
	logger *logger.Logger

	mu      sync.RWMutex
	userID  string
	guestID string
}

// NewIdentityService builds the owner-scope tracker. Call Bootstrap before
// using CurrentOwner so the guest id exists.
func NewIdentityService(state store.StateRepository, remote adapter.RemoteStore, ids *utils.UUIDGenerator, log *logger.Logger) IdentityService {
	return &identityService{state: state, remote: remote, ids: ids, logger: log}
}

func (s *identityService) Bootstrap(ctx context.Context) error {
	guestID, err := s.state.GetGuestID(ctx)
	if err != nil {
		return fmt.Errorf("get guest id: %w", err)
	}

	if guestID == "" {
		guestID = s.ids.Generate()
		if err = s.state.SetGuestID(ctx, guestID); err != nil {
			return fmt.Errorf("persist guest id: %w", err)
		}
		s.logger.Info().
			Str("func", "identityService.Bootstrap").
			Str("guest_id", guestID).
			Msg("guest identity created")
	}

	s.mu.Lock()
	s.guestID = guestID
	s.mu.Unlock()

	return nil
}

func (s *identityService) CurrentOwner() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.userID != "" {
		return s.userID
	}
	return s.guestID
}

func (s *identityService) IsGuest() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID == ""
}

// SignIn extracts the user id from the token's subject claim. The signature is
// not verified here: the backend is the authority, the client only needs the
// id to scope local queries and the raw token to authenticate requests.
func (s *identityService) SignIn(token string) (string, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("%w: unexpected claims type", ErrInvalidToken)
	}

	userID, err := claims.GetSubject()
	if err != nil || userID == "" {
		return "", fmt.Errorf("%w: missing subject claim", ErrInvalidToken)
	}

	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()

	s.remote.SetToken(token)

	s.logger.Info().
		Str("func", "identityService.SignIn").
		Str("user_id", userID).
		Msg("signed in")

	return userID, nil
}

func (s *identityService) SignOut() {
	s.mu.Lock()
	s.userID = ""
	s.mu.Unlock()

	s.remote.SetToken("")

	s.logger.Info().
		Str("func", "identityService.SignOut").
		Msg("signed out, owner scope reverted to guest")
}
