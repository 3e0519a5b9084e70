package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the lifetime of console tokens.
const TokenTTL = 12 * time.Hour

var (
	secretMu  sync.RWMutex
	jwtSecret []byte
)

func init() {
	jwtSecret = make([]byte, 32)
	if _, err := rand.Read(jwtSecret); err != nil {
		// Fallback to a hardcoded key only for development
		jwtSecret = []byte("development-secret-key-change-in-production")
	}
}

// Claims represents console JWT claims.
type Claims struct {
	OperatorID    uint64 `json:"operator_id"`
	Username      string `json:"username"`
	Authoritative bool   `json:"authoritative"`
	jwt.RegisteredClaims
}

func secret() []byte {
	secretMu.RLock()
	defer secretMu.RUnlock()
	return jwtSecret
}

// GenerateJWT creates a signed token for the operator.
func GenerateJWT(op *Operator) (string, error) {
	now := time.Now()
	claims := &Claims{
		OperatorID:    op.ID,
		Username:      op.Username,
		Authoritative: op.Authoritative,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "meadow-world",
			Subject:   op.Username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret())
}

// ValidateJWT checks token validity and returns the operator info.
func ValidateJWT(tokenString string) (operatorID uint64, isValid bool, authoritative bool) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret(), nil
	})
	if err != nil || !token.Valid {
		return 0, false, false
	}

	return claims.OperatorID, true, claims.Authoritative
}

// GenerateSecureSecret generates a new base64 secret key.
func GenerateSecureSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(b)
}

// SetJWTSecret sets a base64 secret key (at least 32 bytes decoded).
func SetJWTSecret(encoded string) error {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return err
	}
	if len(decoded) < 32 {
		return errors.New("secret key must be at least 32 bytes")
	}

	secretMu.Lock()
	jwtSecret = decoded
	secretMu.Unlock()
	return nil
}
