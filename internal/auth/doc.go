// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package auth provides account registration, credential verification and
// session token issuance.
//
// # Collaborators
//
// Service receives its collaborators through NewService:
//   - AccountStore - persistence; enforces one account per email
//   - PasswordHasher - Argon2idHasher, with legacy bcrypt verification
//   - TokenIssuer - JWTIssuer, HS256 session tokens
//
// Store implementations live in the memory and postgres subpackages.
//
// # Errors
//
// Workflow errors are oops errors carrying an AUTH_* code. Use KindOf to
// classify them. Internal causes are logged and never returned to callers.
//
// # Views
//
// Account carries the password hash. Callers only ever receive AccountView,
// built with Account.View. Profiles cannot hold password fields or shadow
// view fields; ValidateProfile rejects them at registration and View drops
// any that reach the store another way.
package auth
