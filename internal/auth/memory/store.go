// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package memory provides an in-process AccountStore for tests and local runs.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/keyward/keyward/internal/auth"
)

// AccountStore is a map-backed auth.AccountStore. It is safe for concurrent use.
type AccountStore struct {
	mu      sync.RWMutex
	byID    map[string]*auth.Account
	byEmail map[string]string
	now     func() time.Time
}

// NewAccountStore creates an empty store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		byID:    make(map[string]*auth.Account),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

// Compile-time interface check.
var _ auth.AccountStore = (*AccountStore)(nil)

// Create inserts the account unless its email is taken. The check and the
// insert happen under one lock.
func (s *AccountStore) Create(ctx context.Context, in auth.NewAccount) (*auth.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[in.Email]; taken {
		return nil, auth.ErrDuplicateKey
	}

	now := s.now().UTC()
	account := &auth.Account{
		ID:           ulid.Make().String(),
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: in.PasswordHash,
		Profile:      cloneProfile(in.Profile),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.byID[account.ID] = account
	s.byEmail[account.Email] = account.ID

	return clone(account), nil
}

// GetByEmail retrieves an account by exact email.
func (s *AccountStore) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return clone(s.byID[id]), nil
}

// GetByID retrieves an account by ID.
func (s *AccountStore) GetByID(ctx context.Context, id string) (*auth.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return clone(account), nil
}

// List returns copies of all accounts ordered by creation time, then ID.
func (s *AccountStore) List(ctx context.Context) ([]*auth.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]*auth.Account, 0, len(s.byID))
	for _, account := range s.byID {
		out = append(out, clone(account))
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *auth.Account) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Len returns the number of stored accounts.
func (s *AccountStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func clone(a *auth.Account) *auth.Account {
	c := *a
	c.Profile = cloneProfile(a.Profile)
	return &c
}

func cloneProfile(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
