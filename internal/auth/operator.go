package auth

import (
	"errors"
	"time"
)

// Operator is an account allowed to use the debug console.
// Authoritative operators may mutate world state; others are read-only.
type Operator struct {
	ID            uint64
	Username      string // Unique username (case-insensitive)
	PasswordHash  string // bcrypt hash
	Authoritative bool
	CreatedAt     time.Time
	LastLogin     time.Time
}

// Seed describes an operator created at startup from configuration.
type Seed struct {
	Username      string
	PasswordHash  string
	Authoritative bool
}

// OperatorRepository stores console operators.
type OperatorRepository interface {
	// GetByUsername returns (nil, ErrOperatorNotFound) for unknown names.
	GetByUsername(username string) (*Operator, error)

	// Create stores a new operator. The caller passes a bcrypt hash.
	// Returns ErrOperatorExists on username conflict.
	Create(username, passwordHash string, authoritative bool) (*Operator, error)

	// ValidateCredentials checks the password and records the login time.
	ValidateCredentials(username, password string) (*Operator, error)
}

var (
	ErrOperatorNotFound  = errors.New("operator not found")
	ErrOperatorExists    = errors.New("operator already exists")
	ErrInvalidCredential = errors.New("invalid username or password")
)

// SeedRepository creates the configured operators, skipping existing ones.
func SeedRepository(repo OperatorRepository, seeds []Seed) error {
	for _, s := range seeds {
		if s.Username == "" || s.PasswordHash == "" {
			continue
		}
		if _, err := repo.Create(s.Username, s.PasswordHash, s.Authoritative); err != nil && !errors.Is(err, ErrOperatorExists) {
			return err
		}
	}
	return nil
}
