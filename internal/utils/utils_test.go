package utils

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestTokenRoundTrip(t *testing.T) {
	id := uuid.New()
	token, err := GenerateToken("secret", id, "admin", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, "admin", claims.Role)

	_, err = ParseToken("other", token)
	assert.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := GenerateToken("secret", uuid.New(), "customer", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken("secret", token)
	assert.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("naruto123")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "naruto123"))
	assert.False(t, CheckPassword(hash, "sasuke123"))
}

func TestCodeHashUsesLowerCost(t *testing.T) {
	hash, err := HashCode("482913")
	require.NoError(t, err)
	assert.True(t, CheckCode(hash, "482913"))
	assert.False(t, CheckCode(hash, "482914"))
	assert.False(t, CheckCode(hash, ""))

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Less(t, cost, bcrypt.DefaultCost)
}

func TestPaginationMeta(t *testing.T) {
	p := Pagination{Page: 2, Limit: 20, Offset: 20}
	meta := p.Meta(41)
	assert.Equal(t, int64(3), meta["pages"])
	assert.Equal(t, int64(41), meta["total"])
}
