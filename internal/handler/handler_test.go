package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sakif/wish-board/internal/auth"
	"github.com/sakif/wish-board/internal/cache"
	"github.com/sakif/wish-board/internal/handler"
	"github.com/sakif/wish-board/internal/model"
	"github.com/sakif/wish-board/internal/repository/memory"
	"github.com/sakif/wish-board/internal/service"
)

// fakeGoogle stands in for the OAuth provider.
type fakeGoogle struct {
	configured bool
	user       *auth.GoogleUser
	err        error
}

func (f *fakeGoogle) Configured() bool { return f.configured }
func (f *fakeGoogle) AuthURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}
func (f *fakeGoogle) Exchange(context.Context, string) (*auth.GoogleUser, error) {
	return f.user, f.err
}

type env struct {
	store    *memory.Store
	accounts *service.AuthService
	wishes   *handler.WishHandler
	public   *handler.PublicWishHandler
	auth     *handler.AuthHandler
	google   *fakeGoogle
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := memory.New()
	c := cache.NewMemory(cache.DefaultCapacity, cache.DefaultTTL)
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	require.NoError(t, err)

	accounts := service.NewAuthService(store, tokens, auth.NewPasswordServiceForTest(4),
		cache.NewMemo[model.Identity](cache.DefaultMemoConfig()), c, logger)
	wishes := service.NewWishService(store, c, time.Hour, logger)
	feed := service.NewFeedService(store, c, time.Hour, logger)
	google := &fakeGoogle{}

	return &env{
		store:    store,
		accounts: accounts,
		wishes:   handler.NewWishHandler(wishes),
		public:   handler.NewPublicWishHandler(feed, wishes),
		auth:     handler.NewAuthHandler(accounts, google, time.Hour, false, logger),
		google:   google,
	}
}

func (e *env) signUp(t *testing.T, name string) model.Identity {
	t.Helper()
	id, err := e.accounts.SignUp(context.Background(), name, name+"@example.com", "password1")
	require.NoError(t, err)
	return id
}

// call runs h with body as JSON and, when as is non-empty, an identity in
// the request context as RequireAuth would leave it.
func call(h http.HandlerFunc, method, target, body string, as *model.Identity) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), *as))
	}
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	return out
}

func errorType(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[handler.ErrorResponse](t, rr).Error
}

var errBoom = errors.New("boom")
