// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package postgres implements auth.AccountStore on PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/keyward/keyward/internal/auth"
)

// emailConstraint is the unique constraint on accounts.email.
const emailConstraint = "accounts_email_key"

// accountColumns is the column list scanAccount expects, in order.
const accountColumns = "id, email, name, password_hash, profile, created_at, updated_at"

// Querier is the subset of *pgxpool.Pool the repository uses.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountRepository implements auth.AccountStore using PostgreSQL.
type AccountRepository struct {
	pool Querier
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool Querier) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create inserts an account with a fresh ULID. Email uniqueness is enforced
// by the accounts_email_key constraint.
func (r *AccountRepository) Create(ctx context.Context, in auth.NewAccount) (*auth.Account, error) {
	profileJSON, err := marshalProfile(in.Profile)
	if err != nil {
		return nil, oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "marshal profile").
			Wrap(err)
	}

	id := ulid.Make().String()

	// The stored row is returned so the profile carries the same JSONB
	// round-trip types GetByID and GetByEmail produce.
	row := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, email, name, password_hash, profile)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+accountColumns,
		id,
		in.Email,
		in.Name,
		in.PasswordHash,
		profileJSON,
	)

	account, err := scanAccount(row)
	if err != nil {
		if isEmailViolation(err) {
			return nil, oops.Code("ACCOUNT_DUPLICATE").
				With("email", in.Email).
				Wrap(auth.ErrDuplicateKey)
		}
		return nil, oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			Wrap(err)
	}
	return account, nil
}

// GetByEmail retrieves an account by exact email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE email = $1
	`, email)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_EMAIL_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}
	return account, nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_ID_FAILED").
			With("operation", "get account by id").
			With("id", id).
			Wrap(err)
	}
	return account, nil
}

// List returns all accounts ordered by creation time, then ID.
func (r *AccountRepository) List(ctx context.Context) ([]*auth.Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").
			With("operation", "list accounts").
			Wrap(err)
	}

	accounts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*auth.Account, error) {
		return scanAccount(row)
	})
	if err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").
			With("operation", "scan accounts").
			Wrap(err)
	}
	return accounts, nil
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		account     auth.Account
		profileJSON []byte
	)

	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.Name,
		&account.PasswordHash,
		&profileJSON,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}

	if len(profileJSON) > 0 {
		if err := json.Unmarshal(profileJSON, &account.Profile); err != nil {
			return nil, oops.Code("ACCOUNT_INVALID_PROFILE").
				With("operation", "unmarshal profile").
				With("id", account.ID).
				Wrap(err)
		}
	}
	if len(account.Profile) == 0 {
		account.Profile = nil
	}

	return &account, nil
}

func marshalProfile(profile map[string]any) ([]byte, error) {
	if profile == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(profile)
}

func isEmailViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == pgerrcode.UniqueViolation &&
		pgErr.ConstraintName == emailConstraint
}

// Compile-time interface check.
var _ auth.AccountStore = (*AccountRepository)(nil)
