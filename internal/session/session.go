package session

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	ErrUnauthenticated    = errors.New("not logged in")
	ErrForbidden          = errors.New("admin access required")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Identity is the logged-in user attached to a request context.
type Identity struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.Username != ""
}

type Permission int

const (
	ViewHistory Permission = iota
	RateSuggestions
	ViewStats
	RequestSuggestions
	UseDataset
	Predict
	ManageUsers
)

func (p Permission) adminOnly() bool {
	return p == ManageUsers
}

// Authenticator is the subset of the credential store the gate needs.
type Authenticator interface {
	Authenticate(username, password string) bool
	IsAdmin(username string) bool
	Exists(username string) bool
}

type Gate struct {
	auth Authenticator
}

func NewGate(auth Authenticator) *Gate {
	return &Gate{auth: auth}
}

func (g *Gate) Login(username, password string) (Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" || !g.auth.Authenticate(username, password) {
		return Identity{}, ErrInvalidCredentials
	}
	return Identity{Username: username, IsAdmin: g.auth.IsAdmin(username)}, nil
}

// Authorize admits the identity in ctx for p. The subject must still have an
// account, and admin permissions are re-checked against the credential store
// rather than trusted from the token.
func (g *Gate) Authorize(ctx context.Context, p Permission) (Identity, error) {
	id, ok := FromContext(ctx)
	if !ok || !g.auth.Exists(id.Username) {
		return Identity{}, ErrUnauthenticated
	}
	if p.adminOnly() && !g.auth.IsAdmin(id.Username) {
		return id, ErrForbidden
	}
	return id, nil
}

// Registry remembers which chat is logged in as whom.
type Registry struct {
	mu    sync.RWMutex
	chats map[int64]Identity
}

func NewRegistry() *Registry {
	return &Registry{chats: make(map[int64]Identity)}
}

func (r *Registry) Login(chatID int64, id Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats[chatID] = id
}

func (r *Registry) Logout(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.chats, chatID)
}

func (r *Registry) Get(chatID int64) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.chats[chatID]
	return id, ok
}

// Context returns ctx carrying the chat's identity, if any.
func (r *Registry) Context(ctx context.Context, chatID int64) context.Context {
	if id, ok := r.Get(chatID); ok {
		return WithIdentity(ctx, id)
	}
	return ctx
}
