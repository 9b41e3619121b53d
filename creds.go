package clobengine

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CredentialService is the CLOB's derive-or-create credential surface
type CredentialService interface {
	// DeriveCredentials deterministically re-derives existing credentials
	// from a wallet signature.
	DeriveCredentials(ctx context.Context) (*ApiCredentials, error)

	// CreateCredentials registers fresh credentials for the wallet.
	CreateCredentials(ctx context.Context) (*ApiCredentials, error)
}

// CredentialManager owns the L2 credential lifecycle for the connected
// wallet: derive-or-create on demand, cache per address, invalidate on
// address change or disconnect. Concurrent callers share one in-flight
// request per address.
type CredentialManager struct {
	service CredentialService
	store   CredentialStore
	logger  *zap.Logger
	flight  singleflight.Group

	mu      sync.Mutex
	address string
}

// NewCredentialManager creates a manager over the given service and store.
// A nil store falls back to a session-scoped in-memory store without expiry.
func NewCredentialManager(service CredentialService, store CredentialStore, logger *zap.Logger) *CredentialManager {
	if store == nil {
		store = NewMemoryCredentialStore(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialManager{
		service: service,
		store:   store,
		logger:  logger,
	}
}

// SetAddress records the active wallet address. Changing addresses drops the
// previous session's credentials immediately.
func (m *CredentialManager) SetAddress(address string) {
	key := normalizeAddressKey(address)

	m.mu.Lock()
	prev := m.address
	m.address = key
	m.mu.Unlock()

	if prev != "" && prev != key {
		if err := m.store.Delete(prev); err != nil {
			m.logger.Warn("drop stale credentials", zap.String("address", prev), zap.Error(err))
		}
		m.flight.Forget(prev)
	}
}

// Disconnect clears the active address and its cached credentials.
func (m *CredentialManager) Disconnect() {
	m.mu.Lock()
	addr := m.address
	m.address = ""
	m.mu.Unlock()

	if addr != "" {
		if err := m.store.Delete(addr); err != nil {
			m.logger.Warn("drop credentials on disconnect", zap.String("address", addr), zap.Error(err))
		}
		m.flight.Forget(addr)
	}
}

// Credentials returns valid API credentials for the active wallet, deriving
// or creating them on first use. Concurrent callers await the same
// underlying request instead of issuing duplicates.
func (m *CredentialManager) Credentials(ctx context.Context) (*ApiCredentials, error) {
	m.mu.Lock()
	addr := m.address
	m.mu.Unlock()

	if addr == "" {
		return nil, fmt.Errorf("%w: no wallet connected", ErrCredentialsUnavailable)
	}

	if creds, ok := m.store.Get(addr); ok && creds.Complete() {
		return creds, nil
	}

	// The flight's result is shared by every concurrent caller, so the
	// derivation must outlive the first caller's context.
	v, err, _ := m.flight.Do(addr, func() (interface{}, error) {
		return m.deriveOrCreate(context.WithoutCancel(ctx), addr)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialsUnavailable, err)
	}
	return v.(*ApiCredentials), nil
}

// WarmUp attempts a passive credential fetch in the background on wallet
// connect. Failures are silent; the user-facing fetch happens on demand.
func (m *CredentialManager) WarmUp(ctx context.Context) {
	go func() {
		if _, err := m.Credentials(ctx); err != nil {
			m.logger.Debug("credential warm-up failed", zap.Error(err))
		}
	}()
}

func (m *CredentialManager) deriveOrCreate(ctx context.Context, addr string) (*ApiCredentials, error) {
	creds, err := m.service.DeriveCredentials(ctx)
	if err != nil || !creds.Complete() {
		if err != nil {
			m.logger.Info("credential derivation failed, creating new credentials",
				zap.String("address", addr), zap.Error(err))
		}
		creds, err = m.service.CreateCredentials(ctx)
		if err != nil {
			return nil, err
		}
		if !creds.Complete() {
			return nil, fmt.Errorf("credential creation returned incomplete data")
		}
	}

	if err := m.store.Put(addr, creds); err != nil {
		// Cache failure is not fatal: credentials are still usable this call.
		m.logger.Warn("persist credentials", zap.String("address", addr), zap.Error(err))
	}
	return creds, nil
}
