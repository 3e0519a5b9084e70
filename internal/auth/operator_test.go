package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryOperatorRepo(t *testing.T) {
	repo := NewMemoryOperatorRepo()

	hash, err := HashPassword("hunter2")
	require.NoError(t, err)

	op, err := repo.Create("Keeper", hash, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), op.ID)

	_, err = repo.Create("keeper", hash, false)
	assert.ErrorIs(t, err, ErrOperatorExists)

	got, err := repo.GetByUsername("KEEPER")
	require.NoError(t, err)
	assert.True(t, got.Authoritative)

	_, err = repo.GetByUsername("nobody")
	assert.ErrorIs(t, err, ErrOperatorNotFound)

	logged, err := repo.ValidateCredentials("keeper", "hunter2")
	require.NoError(t, err)
	assert.False(t, logged.LastLogin.IsZero())

	_, err = repo.ValidateCredentials("keeper", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredential)
	_, err = repo.ValidateCredentials("nobody", "hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestSeedRepository(t *testing.T) {
	repo := NewMemoryOperatorRepo()
	hash, err := HashPassword("pw")
	require.NoError(t, err)

	seeds := []Seed{
		{Username: "host", PasswordHash: hash, Authoritative: true},
		{Username: "viewer", PasswordHash: hash},
		{Username: "", PasswordHash: hash},
	}
	require.NoError(t, SeedRepository(repo, seeds))
	require.NoError(t, SeedRepository(repo, seeds), "повторный посев пропускает существующих")

	host, err := repo.GetByUsername("host")
	require.NoError(t, err)
	assert.True(t, host.Authoritative)

	viewer, err := repo.GetByUsername("viewer")
	require.NoError(t, err)
	assert.False(t, viewer.Authoritative)
	assert.Equal(t, uint64(2), viewer.ID)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("secret")
	require.NoError(t, err)
	assert.NotEqual(t, "secret", hash)
	assert.True(t, CheckPassword(hash, "secret"))
	assert.False(t, CheckPassword(hash, "Secret"))
}
