// Package auth keeps the player accounts: a name, a bcrypt password
// hash, and the bearer tokens handed to live clients. Accounts exist so
// a player can reconnect as the same ledger identity; nothing here
// outlives the process.
package auth

import (
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidName        = errors.New("name must be 3-20 characters: letters, digits, underscore")
	ErrNameTaken          = errors.New("name already registered")
	ErrInvalidCredentials = errors.New("invalid name or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

var nameRE = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)

// Names that look like the house.
var reservedNames = map[string]struct{}{
	"admin":  {},
	"system": {},
	"market": {},
}

const tokenTTL = 24 * time.Hour

type account struct {
	name string
	hash []byte
}

type tokenInfo struct {
	player  string
	expires time.Time
}

type Service struct {
	log *slog.Logger

	mu       sync.Mutex
	accounts map[string]*account
	tokens   map[string]tokenInfo
	now      func() time.Time
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		log:      logger,
		accounts: make(map[string]*account),
		tokens:   make(map[string]tokenInfo),
		now:      time.Now,
	}
}

func validateName(name string) error {
	if !nameRE.MatchString(name) {
		return ErrInvalidName
	}
	if _, reserved := reservedNames[strings.ToLower(name)]; reserved {
		return ErrInvalidName
	}
	return nil
}

// Register creates an account and logs it in.
func (s *Service) Register(name, password string) (string, error) {
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return "", err
	}
	if len(password) < 4 {
		return "", ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(name)
	if _, exists := s.accounts[key]; exists {
		return "", ErrNameTaken
	}
	s.accounts[key] = &account{name: name, hash: hash}
	s.log.Info("account registered", "player", name)
	return s.issueLocked(name), nil
}

// Login verifies the password and issues a fresh token.
func (s *Service) Login(name, password string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.issueLocked(acct.name), nil
}

// Verify resolves a bearer token to its player name.
func (s *Service) Verify(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.tokens[token]
	if !ok {
		return "", ErrInvalidToken
	}
	if s.now().After(info.expires) {
		delete(s.tokens, token)
		return "", ErrInvalidToken
	}
	return info.player, nil
}

// Logout invalidates one token; other sessions for the player survive.
func (s *Service) Logout(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

func (s *Service) issueLocked(player string) string {
	token := uuid.NewString()
	s.tokens[token] = tokenInfo{player: player, expires: s.now().Add(tokenTTL)}
	return token
}
