package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/Skotchmaster/storefront/internal/client"
)

const StorageKey = "auth-storage"

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrExpired          = errors.New("session expired")
)

type API interface {
	Login(ctx context.Context, email, password string) (*client.AuthResponse, error)
	Register(ctx context.Context, email, password string) (*client.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*client.Tokens, error)
	Logout(ctx context.Context, refreshToken string) error
}

type Persister interface {
	Get(ctx context.Context, key string, v any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
}

type State struct {
	User            *client.User `json:"user"`
	Token           string       `json:"token"`
	RefreshToken    string       `json:"refreshToken,omitempty"`
	IsAuthenticated bool         `json:"isAuthenticated"`
}

func (s State) IsAdmin() bool {
	return s.User != nil && s.User.Role == "ADMIN"
}

type Session struct {
	mu sync.Mutex
	// refreshMu serializes refreshes; the server rotates the refresh token
	// so only one exchange per token can succeed.
	refreshMu sync.Mutex
	state     State
	api       API
	p         Persister
}

func New(api API, p Persister) *Session {
	return &Session{api: api, p: p}
}

// Restore loads the persisted session, if any.
func Restore(ctx context.Context, api API, p Persister) (*Session, error) {
	s := New(api, p)
	if p == nil {
		return s, nil
	}
	var st State
	ok, err := p.Get(ctx, StorageKey, &st)
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	if ok {
		st.IsAuthenticated = st.IsAuthenticated && st.Token != "" && st.User != nil
		s.state = st
	}
	return s, nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Token() string {
	return s.State().Token
}

func (s *Session) set(ctx context.Context, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = st
	if s.p == nil {
		return nil
	}
	if err := s.p.Set(ctx, StorageKey, st); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Login reports false when the backend rejects the credentials. The error is
// reserved for transport and storage failures.
func (s *Session) Login(ctx context.Context, email, password string) (bool, error) {
	return s.authenticate(ctx, s.api.Login, email, password)
}

func (s *Session) Register(ctx context.Context, email, password string) (bool, error) {
	return s.authenticate(ctx, s.api.Register, email, password)
}

func (s *Session) authenticate(ctx context.Context, call func(context.Context, string, string) (*client.AuthResponse, error), email, password string) (bool, error) {
	res, err := call(ctx, email, password)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			return false, nil
		}
		return false, err
	}
	user := res.User
	st := State{User: &user, Token: res.Token, RefreshToken: res.RefreshToken, IsAuthenticated: true}
	if err := s.set(ctx, st); err != nil {
		return true, err
	}
	return true, nil
}

func (s *Session) SetUser(ctx context.Context, user client.User, token string) error {
	st := s.State()
	st.User, st.Token, st.IsAuthenticated = &user, token, true
	return s.set(ctx, st)
}

// Do runs call with the current access token. On a 401 the session is
// refreshed once and call is retried. When the refresh token is missing or
// refused the session is cleared and the error wraps ErrExpired.
func (s *Session) Do(ctx context.Context, call func(token string) error) error {
	st := s.State()
	if !st.IsAuthenticated {
		return ErrNotAuthenticated
	}
	err := call(st.Token)
	if !client.IsStatus(err, http.StatusUnauthorized) {
		return err
	}

	token, rerr := s.refresh(ctx, st.Token)
	if rerr != nil {
		return rerr
	}
	err = call(token)
	if client.IsStatus(err, http.StatusUnauthorized) {
		return s.expire(ctx, err)
	}
	return err
}

func (s *Session) refresh(ctx context.Context, stale string) (string, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	st := s.State()
	if !st.IsAuthenticated {
		return "", ErrExpired
	}
	if st.Token != stale {
		return st.Token, nil
	}
	if st.RefreshToken == "" {
		return "", s.expire(ctx, nil)
	}

	next, err := s.api.Refresh(ctx, st.RefreshToken)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			return "", s.expire(ctx, err)
		}
		return "", err
	}
	st.Token, st.RefreshToken = next.Token, next.RefreshToken
	if err := s.set(ctx, st); err != nil {
		return "", err
	}
	return next.Token, nil
}

func (s *Session) expire(ctx context.Context, cause error) error {
	if err := s.clear(ctx); err != nil {
		return err
	}
	if cause == nil {
		return ErrExpired
	}
	return fmt.Errorf("%w: %w", ErrExpired, cause)
}

func (s *Session) clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = State{}
	if s.p == nil {
		return nil
	}
	if err := s.p.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Logout revokes the refresh token on a best-effort basis and forgets the
// local session even when the server cannot be reached.
func (s *Session) Logout(ctx context.Context) error {
	if rt := s.State().RefreshToken; rt != "" {
		_ = s.api.Logout(ctx, rt)
	}
	return s.clear(ctx)
}
