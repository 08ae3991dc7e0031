package access

import (
	"context"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MemoryTokenStore keeps the bearer token in memory; used by tests and by
// embedders that manage their own durable storage.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
	held  bool
}

var _ TokenStore = (*MemoryTokenStore)(nil)

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (m *MemoryTokenStore) Load(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.held {
		return "", ErrNoPersistedToken
	}
	return m.token, nil
}

func (m *MemoryTokenStore) Save(_ context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrSessionInvariant
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.held = true
	return nil
}

func (m *MemoryTokenStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.held = false
	return nil
}

// StoredCredential is the single-row model backing the durable token store.
type StoredCredential struct {
	bun.BaseModel `bun:"table:credential_store,alias:cred"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Key           string     `bun:"key,notnull,unique" json:"key,omitempty"`
	Token         string     `bun:"token,notnull" json:"token,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// NewStoredCredentialRepository returns the repository for stored credentials.
func NewStoredCredentialRepository(db *bun.DB) repository.Repository[*StoredCredential] {
	handlers := repository.ModelHandlers[*StoredCredential]{
		NewRecord: func() *StoredCredential {
			return &StoredCredential{}
		},
		GetID: func(record *StoredCredential) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *StoredCredential, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
		GetIdentifier: func() string {
			return "key"
		},
	}
	return repository.NewRepository(db, handlers)
}

// BunTokenStore persists the bearer token under one durable key in a bun
// backed database (sqlite via sqliteshim in the console deployments).
type BunTokenStore struct {
	db     *bun.DB
	repo   repository.Repository[*StoredCredential]
	key    string
	logger Logger
}

var _ TokenStore = (*BunTokenStore)(nil)

// BunTokenStoreOption customizes store construction.
type BunTokenStoreOption func(*BunTokenStore)

// WithTokenStoreLogger overrides the store logger.
func WithTokenStoreLogger(logger Logger) BunTokenStoreOption {
	return func(s *BunTokenStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewBunTokenStore returns a durable TokenStore scoped to the given key.
func NewBunTokenStore(db *bun.DB, key string, opts ...BunTokenStoreOption) *BunTokenStore {
	s := &BunTokenStore{
		db:     db,
		repo:   NewStoredCredentialRepository(db),
		key:    key,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *BunTokenStore) Load(ctx context.Context) (string, error) {
	record, err := s.repo.GetByIdentifier(ctx, s.key)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return "", ErrNoPersistedToken
		}
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load persisted token")
	}

	if record == nil || record.Token == "" {
		return "", ErrNoPersistedToken
	}

	return record.Token, nil
}

func (s *BunTokenStore) Save(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrSessionInvariant
	}

	now := time.Now()

	record, err := s.repo.GetByIdentifier(ctx, s.key)
	if err != nil {
		if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read credential store")
		}

		record = &StoredCredential{
			ID:        uuid.New(),
			Key:       s.key,
			Token:     token,
			UpdatedAt: &now,
		}
		if _, err := s.repo.Create(ctx, record); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist token")
		}
		return nil
	}

	record.Token = token
	record.UpdatedAt = &now
	if _, err := s.repo.Update(ctx, record, repository.UpdateByID(record.ID.String())); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update persisted token")
	}

	return nil
}

func (s *BunTokenStore) Clear(ctx context.Context) error {
	_, err := s.db.NewDelete().
		Model((*StoredCredential)(nil)).
		Where("?TableAlias.key = ?", s.key).
		Exec(ctx)
	if err != nil {
		s.logger.Warn("credential store clear error: %v", err)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear persisted token")
	}
	return nil
}
