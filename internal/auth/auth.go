package auth

import (
	"errors"
	"fmt"
	"strings"

	"counselor-assistant/internal/logger"
)

// DefaultAdminPassword is the well-known bootstrap password; seeding it logs a warning.
const DefaultAdminPassword = "admin123"

var ErrEmptyCredentials = errors.New("username and password must not be empty")

type Account struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	IsAdmin      bool   `json:"is_admin"`
}

type Repository interface {
	LoadAll() ([]Account, error)
	// Insert appends the account unless the username is taken.
	Insert(acc Account) (bool, error)
	// Exists reports whether the account table has been created.
	Exists() (bool, error)
}

type Service struct {
	repo   Repository
	hasher Hasher
}

func NewWithRepo(repo Repository, hasher Hasher) *Service {
	if hasher == nil {
		hasher = SHA256Hasher{}
	}
	return &Service{repo: repo, hasher: hasher}
}

func (s *Service) LoadAll() ([]Account, error) {
	return s.repo.LoadAll()
}

// Create adds a new account. It returns false without error when the username exists.
func (s *Service) Create(username, password string, isAdmin bool) (bool, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return false, ErrEmptyCredentials
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, err
	}
	created, err := s.repo.Insert(Account{Username: username, PasswordHash: hash, IsAdmin: isAdmin})
	if err != nil {
		return false, fmt.Errorf("create user %q: %w", username, err)
	}
	if created {
		logger.Log.Infow("user created", "username", username, "admin", isAdmin)
	}
	return created, nil
}

// Authenticate never reports read failures; an unreadable table rejects everyone.
func (s *Service) Authenticate(username, password string) bool {
	acc, ok := s.find(username)
	if !ok {
		return false
	}
	return Verify(acc.PasswordHash, password)
}

// Exists reports whether the account is present; read failures count as absent.
func (s *Service) Exists(username string) bool {
	_, ok := s.find(username)
	return ok
}

func (s *Service) IsAdmin(username string) bool {
	acc, ok := s.find(username)
	return ok && acc.IsAdmin
}

// Bootstrap seeds an admin account when the account table does not exist yet.
func (s *Service) Bootstrap(username, password string) (bool, error) {
	exists, err := s.repo.Exists()
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	created, err := s.Create(username, password, true)
	if err != nil {
		return false, err
	}
	if created && password == DefaultAdminPassword {
		logger.Log.Warnw("bootstrap admin seeded with the default password, change it before exposing the service", "username", username)
	}
	return created, nil
}

func (s *Service) find(username string) (Account, bool) {
	accounts, err := s.repo.LoadAll()
	if err != nil {
		logger.Log.Errorw("failed to load accounts", "error", err)
		return Account{}, false
	}
	for _, a := range accounts {
		if a.Username == username {
			return a, true
		}
	}
	return Account{}, false
}
