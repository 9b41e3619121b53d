package clobengine

import (
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// CredentialStore persists API credentials keyed by lowercase wallet address.
// Implementations decide durability; expiry is enforced by the store.
type CredentialStore interface {
	Get(address string) (*ApiCredentials, bool)
	Put(address string, creds *ApiCredentials) error
	Delete(address string) error
}

type storedCreds struct {
	creds ApiCredentials
	at    time.Time
}

// MemoryCredentialStore is the session-scoped in-memory store. Entries older
// than the TTL are treated as absent.
type MemoryCredentialStore struct {
	mu      sync.RWMutex
	entries map[string]storedCreds
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCredentialStore creates a store with the given TTL; ttl <= 0
// means entries never expire.
func NewMemoryCredentialStore(ttl time.Duration) *MemoryCredentialStore {
	return &MemoryCredentialStore{
		entries: make(map[string]storedCreds),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryCredentialStore) Get(address string) (*ApiCredentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[normalizeAddressKey(address)]
	if !ok {
		return nil, false
	}
	if s.ttl > 0 && s.now().Sub(entry.at) > s.ttl {
		return nil, false
	}
	creds := entry.creds
	return &creds, true
}

func (s *MemoryCredentialStore) Put(address string, creds *ApiCredentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[normalizeAddressKey(address)] = storedCreds{creds: *creds, at: s.now()}
	return nil
}

func (s *MemoryCredentialStore) Delete(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, normalizeAddressKey(address))
	return nil
}

// credentialRecord is the gorm model for persisted credentials
type credentialRecord struct {
	Address    string `gorm:"primaryKey"`
	Key        string
	Secret     string
	Passphrase string
	UpdatedAt  time.Time
}

func (credentialRecord) TableName() string { return "api_credentials" }

// SQLiteCredentialStore persists credentials across reloads so the wallet
// does not have to re-derive on every session.
type SQLiteCredentialStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewSQLiteCredentialStore opens (and migrates) the credential database at
// path. Use "file::memory:" for an ephemeral store.
func NewSQLiteCredentialStore(path string, ttl time.Duration) (*SQLiteCredentialStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&credentialRecord{}); err != nil {
		return nil, err
	}
	return &SQLiteCredentialStore{db: db, ttl: ttl}, nil
}

func (s *SQLiteCredentialStore) Get(address string) (*ApiCredentials, bool) {
	var rec credentialRecord
	err := s.db.First(&rec, "address = ?", normalizeAddressKey(address)).Error
	if err != nil {
		return nil, false
	}
	if s.ttl > 0 && time.Since(rec.UpdatedAt) > s.ttl {
		return nil, false
	}
	return &ApiCredentials{Key: rec.Key, Secret: rec.Secret, Passphrase: rec.Passphrase}, true
}

func (s *SQLiteCredentialStore) Put(address string, creds *ApiCredentials) error {
	rec := credentialRecord{
		Address:    normalizeAddressKey(address),
		Key:        creds.Key,
		Secret:     creds.Secret,
		Passphrase: creds.Passphrase,
		UpdatedAt:  time.Now(),
	}
	return s.db.Save(&rec).Error
}

func (s *SQLiteCredentialStore) Delete(address string) error {
	return s.db.Delete(&credentialRecord{}, "address = ?", normalizeAddressKey(address)).Error
}

func normalizeAddressKey(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
