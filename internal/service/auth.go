// Package service holds the business rules of the wish board. Services sit
// between the HTTP handlers and the repositories:
//
//	handler (HTTP) → service (rules, caching) → repository (storage)
//
// Services never see an *http.Request. They return apperror values that the
// handler layer maps onto status codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/sakif/wish-board/internal/apperror"
	"github.com/sakif/wish-board/internal/auth"
	"github.com/sakif/wish-board/internal/cache"
	"github.com/sakif/wish-board/internal/model"
	"github.com/sakif/wish-board/internal/repository"
)

const invalidCredentials = "invalid email or password"

// AuthService turns credentials into identities and sessions.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users       repository.UserRepository
//   - tokens      *auth.TokenService       → issue session JWTs
//   - passwords   *auth.PasswordService    → bcrypt hashing
//   - identities  *cache.Memo              → userID → Identity for the auth middleware
//   - store       cache.Store              → feed invalidation after a rename
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenService
	passwords  *auth.PasswordService
	identities *cache.Memo[model.Identity]
	reads      readCache
	logger     *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	identities *cache.Memo[model.Identity],
	store cache.Store,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		passwords:  passwords,
		identities: identities,
		reads:      newReadCache(store, 0, logger),
		logger:     logger,
	}
}

// AuthResult bundles the identity and the issued JWT so the handler can set
// the cookie and respond in one step.
type AuthResult struct {
	Identity model.Identity
	Token    string
}

// Authenticate checks a credential and returns the identity it proves.
//
// Every failure, including a datastore error, is reported to the caller as
// the same Unauthorized error. The root cause is only logged.
func (s *AuthService) Authenticate(ctx context.Context, cred auth.Credential) (model.Identity, error) {
	switch c := cred.(type) {
	case auth.LocalCredential:
		return s.authenticateLocal(ctx, c)
	case auth.FederatedProfile:
		return s.authenticateFederated(ctx, c)
	default:
		s.logger.Warn("authentication denied: unsupported credential", slog.String("type", fmt.Sprintf("%T", cred)))
		return model.Identity{}, apperror.Unauthorized(invalidCredentials)
	}
}

func (s *AuthService) authenticateLocal(ctx context.Context, c auth.LocalCredential) (model.Identity, error) {
	email := auth.NormalizeEmail(c.Email)
	if email == "" || c.Password == "" {
		s.logger.Debug("authentication denied: malformed credential")
		return model.Identity{}, apperror.Unauthorized(invalidCredentials)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		s.logLookupFailure(email, err)
		return model.Identity{}, apperror.Unauthorized(invalidCredentials)
	}

	if user.PasswordHash == "" {
		s.logger.Info("authentication denied: account has no password", slog.String("userID", user.ID))
		return model.Identity{}, apperror.Unauthorized(invalidCredentials)
	}

	if err := s.passwords.Verify(user.PasswordHash, c.Password); err != nil {
		s.logger.Info("authentication denied: password mismatch", slog.String("userID", user.ID))
		return model.Identity{}, apperror.Unauthorized(invalidCredentials)
	}

	return user.Identity(), nil
}

// authenticateFederated matches the provider's profile to a user strictly by
// email, provisioning a new account on first sight.
func (s *AuthService) authenticateFederated(ctx context.Context, p auth.FederatedProfile) (model.Identity, error) {
	email := auth.NormalizeEmail(p.Email)
	if email == "" {
		s.logger.Warn("authentication denied: federated profile without email")
		return model.Identity{}, apperror.Unauthorized(invalidCredentials)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return user.Identity(), nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		s.logLookupFailure(email, err)
		return model.Identity{}, apperror.Unauthorized(invalidCredentials)
	}

	user = &model.User{
		Email:      email,
		Username:   p.DisplayName(),
		ProfilePic: p.Picture,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if !errors.Is(err, apperror.ErrConflict) {
			s.logger.Error("authentication denied: provisioning failed",
				slog.String("email", email),
				slog.String("error", err.Error()),
			)
			return model.Identity{}, apperror.Unauthorized(invalidCredentials)
		}

		// Lost a race with a concurrent first sign-in for the same email.
		user, err = s.users.GetUserByEmail(ctx, email)
		if err != nil {
			s.logLookupFailure(email, err)
			return model.Identity{}, apperror.Unauthorized(invalidCredentials)
		}
		return user.Identity(), nil
	}

	s.logger.Info("user provisioned from federated profile", slog.String("userID", user.ID))
	return user.Identity(), nil
}

func (s *AuthService) logLookupFailure(email string, err error) {
	if errors.Is(err, apperror.ErrNotFound) {
		s.logger.Info("authentication denied: unknown email", slog.String("email", email))
		return
	}
	s.logger.Error("authentication denied: user lookup failed",
		slog.String("email", email),
		slog.String("error", err.Error()),
	)
}

// Login authenticates cred and issues a session token for the identity.
func (s *AuthService) Login(ctx context.Context, cred auth.Credential) (*AuthResult, error) {
	id, err := s.Authenticate(ctx, cred)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Generate(id.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", id.ID, err)
	}

	s.logger.Info("user signed in", slog.String("userID", id.ID))
	return &AuthResult{Identity: id, Token: token}, nil
}

type signUpInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in signUpInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required, validation.RuneLength(3, 50)),
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.Password, validation.Required, validation.Length(8, 72)),
	)
}

// SignUp creates a local account. Email and username must both be unused.
func (s *AuthService) SignUp(ctx context.Context, username, email, password string) (model.Identity, error) {
	in := signUpInput{
		Username: strings.TrimSpace(username),
		Email:    auth.NormalizeEmail(email),
		Password: password,
	}
	if err := in.Validate(); err != nil {
		return model.Identity{}, fromValidation(err)
	}

	if _, err := s.users.GetUserByEmail(ctx, in.Email); err == nil {
		return model.Identity{}, apperror.Conflict("email", "This email is already taken")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return model.Identity{}, fmt.Errorf("service/auth: checking email: %w", err)
	}

	taken, err := s.users.EmailOrUsernameTaken(ctx, in.Email, in.Username)
	if err != nil {
		return model.Identity{}, fmt.Errorf("service/auth: checking username: %w", err)
	}
	if taken {
		return model.Identity{}, apperror.Conflict("username", "This username is already taken")
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return model.Identity{}, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{Email: in.Email, Username: in.Username, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return model.Identity{}, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user signed up", slog.String("userID", user.ID))
	return user.Identity(), nil
}

// Identity resolves a session subject. Results are memoised briefly; misses
// for the same user share one store lookup.
func (s *AuthService) Identity(ctx context.Context, userID string) (model.Identity, error) {
	if userID == "" {
		return model.Identity{}, apperror.Unauthorized("missing subject")
	}
	return s.identities.Get(ctx, userID, func(ctx context.Context) (model.Identity, error) {
		u, err := s.users.GetUserByID(ctx, userID)
		if err != nil {
			return model.Identity{}, fmt.Errorf("service/auth: resolving identity %s: %w", userID, err)
		}
		return u.Identity(), nil
	})
}

// Profile returns the public profile of userID.
func (s *AuthService) Profile(ctx context.Context, userID string) (model.Profile, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return model.Profile{}, fmt.Errorf("service/auth: loading profile %s: %w", userID, err)
	}
	return model.Profile{Username: u.Username, ProfilePic: u.ProfilePic}, nil
}

// UpdateProfile renames userID. The memoised identity and every cached feed
// page (which embed author names) are dropped.
func (s *AuthService) UpdateProfile(ctx context.Context, userID, username string) (model.Profile, error) {
	username = strings.TrimSpace(username)
	if err := validation.Validate(username, validation.Required, validation.RuneLength(3, 50)); err != nil {
		return model.Profile{}, fromValidation(validation.Errors{"username": err})
	}

	defer func() {
		s.identities.Forget(userID)
		s.reads.invalidateFeed(context.WithoutCancel(ctx))
	}()

	u, err := s.users.UpdateUsername(ctx, userID, username)
	if err != nil {
		return model.Profile{}, fmt.Errorf("service/auth: updating profile %s: %w", userID, err)
	}

	s.logger.Info("profile updated", slog.String("userID", userID))
	return model.Profile{Username: u.Username, ProfilePic: u.ProfilePic}, nil
}
