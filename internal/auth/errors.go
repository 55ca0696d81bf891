// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// Store outcomes. Account stores return these (possibly wrapped) so the
// workflow can tell a collision or a miss apart from a malfunction.
var (
	// ErrNotFound is returned when a requested account does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a create would violate the unique email constraint.
	ErrDuplicateKey = errors.New("duplicate key")
)

// Error codes attached to workflow, hasher and issuer errors.
const (
	CodeValidation         = "AUTH_VALIDATION"
	CodeDuplicateAccount   = "AUTH_DUPLICATE_ACCOUNT"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeNotFound           = "AUTH_NOT_FOUND"
	CodeInternal           = "AUTH_INTERNAL"
	CodeNotImplemented     = "AUTH_NOT_IMPLEMENTED"
	CodeInvalidToken       = "AUTH_INVALID_TOKEN"
	CodeExpiredToken       = "AUTH_EXPIRED_TOKEN"
	CodeInvalidClaims      = "AUTH_INVALID_CLAIMS"
	CodeEmptyPassword      = "AUTH_EMPTY_PASSWORD"
	CodeInvalidHash        = "AUTH_INVALID_HASH"
	CodeHasherConfig       = "AUTH_HASHER_CONFIG"
	CodeIssuerConfig       = "AUTH_ISSUER_CONFIG"
	CodeThrottled          = "AUTH_THROTTLED"
)

// Kind classifies an error returned by the workflow.
type Kind int

// Error kinds surfaced to callers.
const (
	KindUnknown Kind = iota
	KindValidation
	KindDuplicateAccount
	KindInvalidCredentials
	KindNotFound
	KindInternal
	KindNotImplemented
	KindInvalidToken
	KindExpiredToken
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindValidation:         "validation",
	KindDuplicateAccount:   "duplicate_account",
	KindInvalidCredentials: "invalid_credentials",
	KindNotFound:           "not_found",
	KindInternal:           "internal",
	KindNotImplemented:     "not_implemented",
	KindInvalidToken:       "invalid_token",
	KindExpiredToken:       "expired_token",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

var codeKinds = map[string]Kind{
	CodeValidation:         KindValidation,
	CodeDuplicateAccount:   KindDuplicateAccount,
	CodeInvalidCredentials: KindInvalidCredentials,
	CodeNotFound:           KindNotFound,
	CodeInternal:           KindInternal,
	CodeNotImplemented:     KindNotImplemented,
	CodeInvalidToken:       KindInvalidToken,
	CodeExpiredToken:       KindExpiredToken,
}

// KindOf returns the kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return KindUnknown
	}
	code, ok := oopsErr.Code().(string)
	if !ok {
		return KindUnknown
	}
	if kind, ok := codeKinds[code]; ok {
		return kind
	}
	return KindUnknown
}

// Messages shared by every path that produces the same kind, so callers
// cannot distinguish the cause from the text.
const (
	msgInvalidCredentials = "invalid email or password"
	msgInternal           = "internal error"
)

func errInvalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf(msgInvalidCredentials)
}

func errInternal(operation string) error {
	return oops.Code(CodeInternal).With("operation", operation).Errorf(msgInternal)
}
