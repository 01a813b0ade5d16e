// Package session tracks the wallet the user is currently connected with.
//
// The transaction manager only serves requests while a session is open,
// which mirrors a UI that shows notifications for a logged in wallet only.
package session

import (
	"context"
	"sync"

	"github.com/gabapcia/walletstream/internal/pkg/logger"
	"github.com/gabapcia/walletstream/internal/pkg/validator"
	"github.com/gabapcia/walletstream/internal/txevent"
)

// Service opens and closes the active wallet session.
type Service interface {
	// Open starts a session for address, replacing any previous one.
	Open(ctx context.Context, address string) error

	// Close ends the current session. Closing without a session is a no-op.
	Close(ctx context.Context)

	// Active reports whether a session is open.
	Active(ctx context.Context) bool

	// Address returns the wallet of the open session.
	Address(ctx context.Context) (string, bool)
}

type service struct {
	mu      sync.RWMutex
	address string
}

var _ Service = (*service)(nil)

// New creates a Service with no open session.
func New() *service {
	return &service{}
}

// Open implements Service.
func (s *service) Open(ctx context.Context, address string) error {
	address = txevent.NormalizeAddress(address)
	if err := validator.Var(address, "required"); err != nil {
		return err
	}

	s.mu.Lock()
	previous := s.address
	s.address = address
	s.mu.Unlock()

	if previous != "" && previous != address {
		logger.Info(ctx, "wallet session replaced",
			"wallet.address", address,
			"wallet.previous_address", previous,
		)
		return nil
	}

	logger.Info(ctx, "wallet session opened", "wallet.address", address)
	return nil
}

// Close implements Service.
func (s *service) Close(ctx context.Context) {
	s.mu.Lock()
	address := s.address
	s.address = ""
	s.mu.Unlock()

	if address != "" {
		logger.Info(ctx, "wallet session closed", "wallet.address", address)
	}
}

// Active implements Service.
func (s *service) Active(ctx context.Context) bool {
	_, ok := s.Address(ctx)
	return ok
}

// Address implements Service.
func (s *service) Address(context.Context) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.address, s.address != ""
}
