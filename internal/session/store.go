// Package session owns the single source of truth for who is logged in.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/joao-fontenele/storefront/internal/api"
	"github.com/joao-fontenele/storefront/internal/credential"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/rolegate"
)

const MinPasswordLength = 6

type State int

const (
	Unresolved State = iota
	Anonymous
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Backend is the slice of the REST client the store needs.
type Backend interface {
	Login(ctx context.Context, req api.LoginRequest) (api.AuthResponse, error)
	Register(ctx context.Context, req api.RegisterRequest) (api.AuthResponse, error)
	Me(ctx context.Context) (domain.User, error)
}

type ChangeKind int

const (
	// Established: a session was created or replaced by login, register or refresh.
	Established ChangeKind = iota
	// Cleared: the session ended by logout or token rejection.
	Cleared
)

type Change struct {
	Kind    ChangeKind
	Session *domain.Session
	// Cause is the activity that produced the change.
	Cause domain.ActivityKind
}

type Listener func(Change)

type Store struct {
	backend Backend
	creds   credential.Store
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.RWMutex
	state     State
	session   *domain.Session
	token     string
	listeners map[int]Listener
	nextID    int
}

func NewStore(backend Backend, creds credential.Store, logger *slog.Logger) *Store {
	return &Store{
		backend:   backend,
		creds:     creds,
		logger:    logger,
		now:       time.Now,
		state:     Unresolved,
		listeners: make(map[int]Listener),
	}
}

// Token implements api.TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Resolved reports whether the first refresh has settled. Views must not
// render privileged content before this is true.
func (s *Store) Resolved() bool {
	return s.State() != Unresolved
}

// Session returns a copy of the current session, or nil when anonymous.
func (s *Store) Session() *domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	cp := *s.session
	return &cp
}

func (s *Store) Capabilities() rolegate.Capabilities {
	return rolegate.Derive(s.Session())
}

// Gate checks a requirement against the resolved session.
func (s *Store) Gate(r rolegate.Requirement) error {
	s.mu.RLock()
	resolved := s.state != Unresolved
	var sess *domain.Session
	if s.session != nil {
		cp := *s.session
		sess = &cp
	}
	s.mu.RUnlock()
	return rolegate.Check(resolved, rolegate.Derive(sess), r)
}

// Subscribe registers fn for every session change and returns an unsubscribe func.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Refresh resolves the session from the persisted credential. A missing,
// expired or rejected token leaves the store Anonymous without an error.
func (s *Store) Refresh(ctx context.Context) error {
	token, err := s.creds.Load(ctx)
	if errors.Is(err, credential.ErrNoCredential) {
		s.resolveAnonymous()
		return nil
	}
	if err != nil {
		s.resolveAnonymous()
		return fmt.Errorf("load credential: %w", err)
	}

	if credential.Expired(token, s.now()) {
		s.logger.Info("stored token expired, discarding")
		if err := s.creds.Clear(ctx); err != nil {
			s.logger.Warn("failed to clear expired credential", "error", err)
		}
		s.resolveAnonymous()
		return nil
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	user, err := s.backend.Me(ctx)
	if errors.Is(err, api.ErrAuth) {
		s.logger.Info("stored token rejected by backend")
		s.clear(ctx, domain.ActivityExpired)
		return nil
	}
	if err != nil {
		s.mu.Lock()
		s.token = ""
		s.mu.Unlock()
		s.resolveAnonymous()
		return fmt.Errorf("fetch profile: %w", err)
	}

	s.establish(token, user, domain.ActivityRestored)
	return nil
}

func (s *Store) Login(ctx context.Context, email, password string) (domain.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.Session{}, api.NewValidationError("email", "email is required")
	}
	if password == "" {
		return domain.Session{}, api.NewValidationError("password", "password is required")
	}

	resp, err := s.backend.Login(ctx, api.LoginRequest{Email: email, Password: password})
	if err != nil {
		return domain.Session{}, err
	}

	return s.adopt(ctx, resp.Token, nil, domain.ActivityLogin)
}

type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	// Role is RoleUser or RoleSeller; sellers start out pending approval.
	Role domain.Role
}

func (in RegisterInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return api.NewValidationError("name", "name is required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return api.NewValidationError("email", "email is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return api.NewValidationError("email", "email is not valid")
	}
	if in.Password != in.ConfirmPassword {
		return api.NewValidationError("confirm_password", "passwords do not match")
	}
	if len(in.Password) < MinPasswordLength {
		return api.NewValidationError("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	switch in.Role {
	case "", domain.RoleUser, domain.RoleSeller:
	default:
		return api.NewValidationError("role", "role must be user or seller")
	}
	return nil
}

type RegisterResult struct {
	Session domain.Session
	// AwaitingApproval is set for seller registrations. The caller must show
	// Message and stay out of seller views.
	AwaitingApproval bool
	Message          string
}

func (s *Store) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	if err := in.Validate(); err != nil {
		return RegisterResult{}, err
	}
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}

	resp, err := s.backend.Register(ctx, api.RegisterRequest{
		Name:     strings.TrimSpace(in.Name),
		Email:    strings.TrimSpace(in.Email),
		Password: in.Password,
		Role:     role,
	})
	if err != nil {
		return RegisterResult{}, err
	}

	var known *domain.User
	if resp.User.ID != "" {
		known = &resp.User
	}
	sess, err := s.adopt(ctx, resp.Token, known, domain.ActivityRegister)
	if err != nil {
		return RegisterResult{}, err
	}

	caps := rolegate.Derive(&sess)
	return RegisterResult{
		Session:          sess,
		AwaitingApproval: caps.IsPendingSeller,
		Message:          resp.Message,
	}, nil
}

// Logout clears the persisted token and the session before returning.
// Subscribers are notified synchronously; no request is issued.
func (s *Store) Logout(ctx context.Context) error {
	return s.clear(ctx, domain.ActivityLogout)
}

// ForceLogout is the 401 hook installed on the API client.
func (s *Store) ForceLogout() {
	if s.State() != Authenticated {
		return
	}
	s.logger.Warn("forcing logout after token rejection")
	_ = s.clear(context.Background(), domain.ActivityExpired)
}

// adopt persists token and populates the session, from user when the caller
// already has the profile or from GET /auth/me otherwise.
func (s *Store) adopt(ctx context.Context, token string, user *domain.User, cause domain.ActivityKind) (domain.Session, error) {
	if token == "" {
		return domain.Session{}, &api.Error{Kind: api.ErrServer, Message: "no token in auth response"}
	}
	if err := s.creds.Save(ctx, token); err != nil {
		return domain.Session{}, fmt.Errorf("persist credential: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	if user == nil {
		me, err := s.backend.Me(ctx)
		if err != nil {
			_ = s.clear(ctx, domain.ActivityUnrecorded)
			return domain.Session{}, fmt.Errorf("fetch profile: %w", err)
		}
		user = &me
	}

	sess := s.establish(token, *user, cause)
	return sess, nil
}

func (s *Store) establish(token string, user domain.User, cause domain.ActivityKind) domain.Session {
	sess := domain.NewSession(user)

	s.mu.Lock()
	s.token = token
	s.session = &sess
	s.state = Authenticated
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	s.logger.Info("session established", "user_id", sess.UserID, "role", sess.Role, "seller_status", sess.SellerStatus)
	cp := sess
	notify(listeners, Change{Kind: Established, Session: &cp, Cause: cause})
	return sess
}

func (s *Store) clear(ctx context.Context, cause domain.ActivityKind) error {
	s.mu.Lock()
	prev := s.session
	s.token = ""
	s.session = nil
	s.state = Anonymous
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	err := s.creds.Clear(ctx)
	if err != nil {
		s.logger.Warn("failed to clear credential", "error", err)
	}

	notify(listeners, Change{Kind: Cleared, Session: prev, Cause: cause})
	return err
}

func (s *Store) resolveAnonymous() {
	s.mu.Lock()
	s.state = Anonymous
	s.session = nil
	s.mu.Unlock()
}

func (s *Store) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		out = append(out, l)
	}
	return out
}

func notify(listeners []Listener, c Change) {
	for _, l := range listeners {
		l(c)
	}
}
