package auth

import (
	"strings"
	"sync"
	"time"
)

// MemoryOperatorRepo is a threadsafe in-memory repository for single-instance
// servers and tests. IDs start from 1.
type MemoryOperatorRepo struct {
	mu        sync.RWMutex
	operators map[string]*Operator // key = lowercase(username)
	nextID    uint64
}

// NewMemoryOperatorRepo returns an empty repository.
func NewMemoryOperatorRepo() *MemoryOperatorRepo {
	return &MemoryOperatorRepo{
		operators: make(map[string]*Operator),
		nextID:    1,
	}
}

// GetByUsername implements OperatorRepository.
func (r *MemoryOperatorRepo) GetByUsername(username string) (*Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	op, ok := r.operators[normalize(username)]
	if !ok {
		return nil, ErrOperatorNotFound
	}
	cp := *op
	return &cp, nil
}

// Create implements OperatorRepository.
func (r *MemoryOperatorRepo) Create(username, passwordHash string, authoritative bool) (*Operator, error) {
	key := normalize(username)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.operators[key]; exists {
		return nil, ErrOperatorExists
	}

	op := &Operator{
		ID:            r.nextID,
		Username:      username,
		PasswordHash:  passwordHash,
		Authoritative: authoritative,
		CreatedAt:     time.Now(),
	}
	r.nextID++
	r.operators[key] = op

	cp := *op
	return &cp, nil
}

// ValidateCredentials implements OperatorRepository.
func (r *MemoryOperatorRepo) ValidateCredentials(username, password string) (*Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, ok := r.operators[normalize(username)]
	if !ok || !CheckPassword(op.PasswordHash, password) {
		return nil, ErrInvalidCredential
	}
	op.LastLogin = time.Now()

	cp := *op
	return &cp, nil
}

func normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
