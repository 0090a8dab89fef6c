// Package apikey issues and validates the API keys used for authenticated
// feedback ingestion.
package apikey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
)

// KeyPrefix marks every issued key.
const KeyPrefix = "fp_"

var (
	// ErrInvalid marks a rejected request (blank name).
	ErrInvalid = errors.New("invalid api key request")

	// ErrNotFound marks an unknown key id.
	ErrNotFound = errors.New("api key not found")
)

// Key is an issued API key.
type Key struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"is_active"`
}

// Store is the persistence interface for API keys.
type Store interface {
	PutKey(ctx context.Context, k *Key) error
	GetKey(ctx context.Context, id string) (*Key, bool, error)
	ListKeys(ctx context.Context) ([]*Key, error)
	DeleteKey(ctx context.Context, id string) error

	// FindKey looks a key up by its secret value.
	FindKey(ctx context.Context, key string) (*Key, bool, error)
}

// Service manages API keys.
type Service struct {
	store  Store
	logger log.Logger
	now    func() time.Time
}

// NewService creates a new API key service.
func NewService(store Store, logger log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// Create issues a new active key.
func (s *Service) Create(ctx context.Context, name string) (*Key, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}

	k := &Key{
		ID:        ulid.Make().String(),
		Name:      name,
		Key:       newSecret(),
		CreatedAt: s.now().UTC(),
		Active:    true,
	}
	if err := s.store.PutKey(ctx, k); err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}

	s.logger.Info(ctx, "api key created", "key_id", k.ID, "name", k.Name)
	return k, nil
}

// List returns every key, oldest first.
func (s *Service) List(ctx context.Context) ([]*Key, error) {
	return s.store.ListKeys(ctx)
}

// Toggle flips a key between active and inactive.
func (s *Service) Toggle(ctx context.Context, id string) (*Key, error) {
	k, ok, err := s.store.GetKey(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	k.Active = !k.Active
	if err := s.store.PutKey(ctx, k); err != nil {
		return nil, fmt.Errorf("toggle api key: %w", err)
	}

	s.logger.Info(ctx, "api key toggled", "key_id", k.ID, "active", k.Active)
	return k, nil
}

// Delete removes a key. Deleting an unknown id is not an error.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteKey(ctx, id); err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	s.logger.Info(ctx, "api key deleted", "key_id", id)
	return nil
}

// LookupActiveKey reports whether key exists and is active.
func (s *Service) LookupActiveKey(ctx context.Context, key string) (bool, error) {
	k, ok, err := s.store.FindKey(ctx, key)
	if err != nil {
		return false, fmt.Errorf("find api key: %w", err)
	}
	return ok && k.Active, nil
}

func newSecret() string {
	return KeyPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}
