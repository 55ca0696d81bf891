// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/samber/oops"
)

// MinPasswordLength is the minimum password length in bytes accepted at registration.
const MinPasswordLength = 8

// Account is a stored account record. It carries the password hash and must
// not leave the workflow; callers receive an AccountView instead.
type Account struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Profile      map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AccountView is the public projection of an Account with secrets removed.
type AccountView struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Name      string         `json:"name"`
	Profile   map[string]any `json:"profile,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// View returns the sanitized projection of the account.
// The profile is deep-copied with secret and reserved keys removed, so a view
// never carries a password field and callers cannot mutate the stored record.
func (a *Account) View() AccountView {
	return AccountView{
		ID:        a.ID,
		Email:     a.Email,
		Name:      a.Name,
		Profile:   sanitizeProfile(a.Profile),
		CreatedAt: a.CreatedAt,
	}
}

// secretProfileKeys may not appear at any depth of a profile.
var secretProfileKeys = map[string]struct{}{
	"password":      {},
	"password_hash": {},
	"passwordhash":  {},
}

// reservedProfileKeys shadow top-level view fields.
var reservedProfileKeys = map[string]struct{}{
	"id":         {},
	"email":      {},
	"name":       {},
	"created_at": {},
}

func isSecretKey(key string) bool {
	_, ok := secretProfileKeys[strings.ToLower(key)]
	return ok
}

func isReservedKey(key string) bool {
	_, ok := reservedProfileKeys[strings.ToLower(key)]
	return ok
}

// NewAccount holds the fields a store needs to create an account.
// The store assigns ID and timestamps.
type NewAccount struct {
	Email        string
	Name         string
	PasswordHash string
	Profile      map[string]any
}

// AccountStore is the persistence contract consumed by the workflow.
// Implementations enforce email uniqueness atomically.
type AccountStore interface {
	// Create stores a new account and returns the stored record.
	// Returns ErrDuplicateKey if the email is already taken.
	Create(ctx context.Context, account NewAccount) (*Account, error)

	// GetByEmail retrieves an account by exact email.
	// Returns ErrNotFound if no account has the given email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetByID retrieves an account by ID.
	// Returns ErrNotFound if no account has the given ID.
	GetByID(ctx context.Context, id string) (*Account, error)

	// List returns every account ordered by creation time, then ID.
	List(ctx context.Context) ([]*Account, error)
}

// ValidateEmail checks that email is a bare, well-formed address.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code(CodeValidation).With("field", "email").Errorf("email cannot be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return oops.Code(CodeValidation).With("field", "email").Errorf("email must be a valid address")
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return oops.Code(CodeValidation).With("field", "email").Errorf("email must be a valid address")
	}
	return nil
}

// ValidateName checks that the display name is not blank.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return oops.Code(CodeValidation).With("field", "name").Errorf("name cannot be empty")
	}
	return nil
}

// ValidatePassword enforces the registration length floor.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return oops.Code(CodeValidation).
			With("field", "password").
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// ValidateProfile rejects profiles that carry a secret key at any depth or a
// top-level key that shadows a view field.
func ValidateProfile(profile map[string]any) error {
	for key := range profile {
		if isReservedKey(key) {
			return oops.Code(CodeValidation).
				With("field", "profile").With("key", key).
				Errorf("profile key %q is reserved", key)
		}
	}
	if path, found := findSecretKey(profile, ""); found {
		return oops.Code(CodeValidation).
			With("field", "profile").With("key", path).
			Errorf("profile may not contain %q", path)
	}
	return nil
}

func findSecretKey(v any, prefix string) (string, bool) {
	switch val := v.(type) {
	case map[string]any:
		for key, child := range val {
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			if isSecretKey(key) {
				return path, true
			}
			if p, found := findSecretKey(child, path); found {
				return p, true
			}
		}
	case []any:
		for _, child := range val {
			if p, found := findSecretKey(child, prefix); found {
				return p, true
			}
		}
	}
	return "", false
}

// sanitizeProfile deep-copies p without secret keys, and without reserved
// keys at the top level. Records written before validation existed may hold
// either.
func sanitizeProfile(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		if isReservedKey(k) || isSecretKey(k) {
			continue
		}
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			if isSecretKey(k) {
				continue
			}
			out[k] = sanitizeValue(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = sanitizeValue(child)
		}
		return out
	default:
		return v
	}
}

func copyProfile(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
