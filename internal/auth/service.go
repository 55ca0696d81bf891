// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/keyward/keyward/pkg/errutil"
)

var tracer = otel.Tracer("keyward/auth")

// dummyPasswordHash is verified when no account matches the login email and
// the hasher cannot supply its own DummyHash. It is not a credential and
// matches no password.
//
//nolint:gosec // G101: intentionally fake hash for timing equalization, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// DummyHasher is implemented by hashers that can produce a hash with their
// own work factor. Login verifies against it for unknown emails, so both
// failure paths cost the same.
type DummyHasher interface {
	DummyHash() string
}

// RegisterInput is the registration request.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
	Profile  map[string]any
}

// UpdateInput is the account update request.
type UpdateInput struct {
	Name    *string
	Profile map[string]any
}

// Session is the result of a successful register or login.
type Session struct {
	Account AccountView `json:"account"`
	Token   string      `json:"token"`
}

// Service is the authentication workflow. It holds no mutable state and is
// safe for concurrent use.
type Service struct {
	accounts AccountStore
	hasher   PasswordHasher
	tokens   TokenIssuer
	dummy    string
	throttle *Throttle
	metrics  *Metrics
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithThrottle sets the hash throttle. Defaults to NewThrottle(0).
func WithThrottle(throttle *Throttle) Option {
	return func(s *Service) {
		if throttle != nil {
			s.throttle = throttle
		}
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// NewService creates the workflow from its collaborators.
func NewService(accounts AccountStore, hasher PasswordHasher, tokens TokenIssuer, opts ...Option) (*Service, error) {
	if accounts == nil {
		return nil, oops.Code("AUTH_SERVICE_CONFIG").Errorf("account store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_CONFIG").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_SERVICE_CONFIG").Errorf("token issuer is required")
	}

	s := &Service{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		dummy:    dummyPasswordHash,
		logger:   slog.Default(),
	}
	if d, ok := hasher.(DummyHasher); ok {
		if hash := d.DummyHash(); hash != "" {
			s.dummy = hash
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.throttle == nil {
		s.throttle = NewThrottle(0)
	}
	return s, nil
}

// Register creates an account and issues a session token for it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (session *Session, err error) {
	ctx, finish := s.begin(ctx, OpRegister)
	defer func() { finish(err) }()

	if err := ValidateEmail(in.Email); err != nil {
		return nil, err
	}
	if err := ValidateName(in.Name); err != nil {
		return nil, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	if err := ValidateProfile(in.Profile); err != nil {
		return nil, err
	}

	hash, err := s.hash(ctx, in.Password)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "password hashing failed", err)
		return nil, errInternal("hash password")
	}

	account, err := s.accounts.Create(ctx, NewAccount{
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		Profile:      copyProfile(in.Profile),
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return nil, oops.Code(CodeDuplicateAccount).
				With("email", in.Email).
				Errorf("%s already exists", in.Email)
		}
		errutil.LogErrorContext(ctx, s.logger, "account create failed", err)
		return nil, errInternal("create account")
	}

	view := account.View()
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("account.id", view.ID))

	token, err := s.tokens.Issue(Claims{Subject: view.ID})
	if err != nil {
		// The account stays; a later login issues a token.
		s.logger.WarnContext(ctx, "account created but token issuance failed", "account_id", view.ID, "error", err)
		return nil, errInternal("issue token")
	}

	return &Session{Account: view, Token: token}, nil
}

// Login authenticates email and password and issues a session token.
// Unknown email and wrong password fail with the same error.
func (s *Service) Login(ctx context.Context, email, password string) (session *Session, err error) {
	ctx, finish := s.begin(ctx, OpLogin)
	defer func() { finish(err) }()

	account, lookupErr := s.accounts.GetByEmail(ctx, email)
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			errutil.LogErrorContext(ctx, s.logger, "account lookup failed", lookupErr)
			return nil, errInternal("get account by email")
		}
		// Verify against the dummy hash to keep timing constant. The result is irrelevant.
		_, _ = s.verify(ctx, password, s.dummy) //nolint:errcheck // timing only
		return nil, errInvalidCredentials()
	}

	valid, verifyErr := s.verify(ctx, password, account.PasswordHash)
	if verifyErr != nil {
		errutil.LogErrorContext(ctx, s.logger, "password verification failed", verifyErr, "account_id", account.ID)
		return nil, errInternal("verify password")
	}
	if !valid {
		return nil, errInvalidCredentials()
	}

	if s.hasher.NeedsUpgrade(account.PasswordHash) {
		s.logger.InfoContext(ctx, "password hash needs upgrade", "account_id", account.ID)
	}

	view := account.View()
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("account.id", view.ID))

	token, err := s.tokens.Issue(Claims{Subject: view.ID})
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "token issuance failed", err, "account_id", view.ID)
		return nil, errInternal("issue token")
	}

	return &Session{Account: view, Token: token}, nil
}

// FindByID returns the view of the account with the given id. No token is issued.
func (s *Service) FindByID(ctx context.Context, id string) (view *AccountView, err error) {
	ctx, finish := s.begin(ctx, OpFindByID)
	defer func() { finish(err) }()

	if id == "" {
		return nil, oops.Code(CodeNotFound).With("id", id).Errorf("account not found")
	}

	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeNotFound).With("id", id).Errorf("account not found")
		}
		errutil.LogErrorContext(ctx, s.logger, "account lookup failed", err, "account_id", id)
		return nil, errInternal("get account by id")
	}

	v := account.View()
	return &v, nil
}

// List returns the views of all accounts, oldest first. No token is issued.
func (s *Service) List(ctx context.Context) (views []AccountView, err error) {
	ctx, finish := s.begin(ctx, OpList)
	defer func() { finish(err) }()

	accounts, err := s.accounts.List(ctx)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "account list failed", err)
		return nil, errInternal("list accounts")
	}

	views = make([]AccountView, 0, len(accounts))
	for _, account := range accounts {
		views = append(views, account.View())
	}
	return views, nil
}

// Update is not implemented.
func (s *Service) Update(ctx context.Context, id string, _ UpdateInput) (view *AccountView, err error) {
	_, finish := s.begin(ctx, OpUpdate)
	defer func() { finish(err) }()

	return nil, oops.Code(CodeNotImplemented).With("id", id).Errorf("account update is not implemented")
}

// Remove is not implemented.
func (s *Service) Remove(ctx context.Context, id string) (err error) {
	_, finish := s.begin(ctx, OpRemove)
	defer func() { finish(err) }()

	return oops.Code(CodeNotImplemented).With("id", id).Errorf("account removal is not implemented")
}

// VerifyToken decodes and validates a session token.
func (s *Service) VerifyToken(ctx context.Context, token string) (claims Claims, err error) {
	_, finish := s.begin(ctx, OpVerifyToken)
	defer func() { finish(err) }()

	claims, err = s.tokens.Verify(token)
	if err != nil {
		switch KindOf(err) {
		case KindInvalidToken, KindExpiredToken:
			return Claims{}, err
		default:
			return Claims{}, oops.Code(CodeInvalidToken).Errorf("invalid token")
		}
	}
	return claims, nil
}

func (s *Service) hash(ctx context.Context, password string) (string, error) {
	var hash string
	err := s.throttle.Do(ctx, func() error {
		var hashErr error
		hash, hashErr = s.hasher.Hash(password)
		return hashErr
	})
	return hash, err
}

func (s *Service) verify(ctx context.Context, password, hash string) (bool, error) {
	var valid bool
	err := s.throttle.Do(ctx, func() error {
		var verifyErr error
		valid, verifyErr = s.hasher.Verify(password, hash)
		return verifyErr
	})
	return valid, err
}

// begin starts the span for operation. The returned func ends it and records metrics.
func (s *Service) begin(ctx context.Context, operation string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "auth."+operation,
		trace.WithAttributes(attribute.String("auth.operation", operation)),
	)
	return ctx, func(err error) {
		if err != nil {
			span.SetAttributes(attribute.String("auth.outcome", KindOf(err).String()))
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.metrics.Record(operation, err, time.Since(start))
	}
}
