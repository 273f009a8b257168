// Package credentials persists user accounts in SQLite and tracks which
// username each live connection is logged in as.
package credentials

import (
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"parley/pkg/interfaces"
	"parley/pkg/types"
)

// Store combines the on-disk account table with the in-memory login
// bindings. Bindings are not safe for concurrent use; the multiplexer
// goroutine owns them.
type Store struct {
	log      *zap.Logger
	db       *sql.DB
	bindings map[types.ConnID]string // "" means logged out
}

var _ interfaces.CredentialStore = (*Store)(nil)

// bcrypt reads at most 72 bytes of input and errors beyond that. Longer
// passwords have always been accepted here, so the tail is ignored
// instead of refused; create and login clamp identically.
const maxPasswordBytes = 72

func passwordBytes(password string) []byte {
	b := []byte(password)
	if len(b) > maxPasswordBytes {
		return b[:maxPasswordBytes]
	}
	return b
}

// NewStore creates a credential store backed by db. The credential table
// must already exist.
func NewStore(log *zap.Logger, db *sql.DB) *Store {
	return &Store{
		log:      log.Named("credentials"),
		db:       db,
		bindings: make(map[types.ConnID]string),
	}
}

// AddConnection registers a connection as logged out.
func (s *Store) AddConnection(id types.ConnID) error {
	if _, exists := s.bindings[id]; exists {
		return interfaces.ErrDuplicateConnection
	}
	s.bindings[id] = ""
	return nil
}

// RemoveConnection forgets a connection and its login binding.
func (s *Store) RemoveConnection(id types.ConnID) error {
	if _, exists := s.bindings[id]; !exists {
		return interfaces.ErrUnknownConnection
	}
	delete(s.bindings, id)
	return nil
}

// Create persists a new account. Passwords are stored as bcrypt hashes.
func (s *Store) Create(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword(passwordBytes(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	// INSERT OR IGNORE leaves existing accounts untouched, so a zero
	// rows-affected result means the username is taken.
	result, err := s.db.Exec(
		"INSERT OR IGNORE INTO PASSWORD (USERNAME, PASSWORD) VALUES (?, ?)",
		username, string(hash),
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check insert result: %w", err)
	}
	if affected == 0 {
		return interfaces.ErrUsernameTaken
	}

	s.log.Info("account created", zap.String("username", username))
	return nil
}

// Login verifies the password and binds the connection to the username.
// A connection that logs in twice keeps only the latest binding.
func (s *Store) Login(id types.ConnID, username, password string) error {
	if _, exists := s.bindings[id]; !exists {
		return interfaces.ErrUnknownConnection
	}

	var hash string
	err := s.db.QueryRow(
		"SELECT PASSWORD FROM PASSWORD WHERE USERNAME = ?",
		username,
	).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return interfaces.ErrBadCredentials
	}
	if err != nil {
		return fmt.Errorf("look up account: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), passwordBytes(password)) != nil {
		return interfaces.ErrBadCredentials
	}

	s.bindings[id] = username
	return nil
}

// Logout clears the connection's binding. Logging out a connection that
// never logged in is not an error.
func (s *Store) Logout(id types.ConnID) error {
	if _, exists := s.bindings[id]; !exists {
		return interfaces.ErrUnknownConnection
	}
	s.bindings[id] = ""
	return nil
}

// NameOf reports the username a connection is logged in as, or "" for a
// guest.
func (s *Store) NameOf(id types.ConnID) (string, error) {
	name, exists := s.bindings[id]
	if !exists {
		return "", interfaces.ErrUnknownConnection
	}
	return name, nil
}

// LoggedIn reports how many connections hold a login binding.
func (s *Store) LoggedIn() int {
	count := 0
	for _, name := range s.bindings {
		if name != "" {
			count++
		}
	}
	return count
}
