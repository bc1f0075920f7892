package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/washwise/internal/model"
)

func TestIssueAndParse(t *testing.T) {
	i := NewIssuer("test-secret", time.Minute)
	u := &model.User{ID: "id-1", Username: "alice", Role: model.RoleServiceman}

	token, err := i.Issue(u)
	require.NoError(t, err)

	claims, err := i.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "id-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, model.RoleServiceman, claims.Role)
}

func TestParseRejectsForeignSignature(t *testing.T) {
	u := &model.User{ID: "id-1", Username: "alice", Role: model.RoleCustomer}

	token, err := NewIssuer("one", time.Minute).Issue(u)
	require.NoError(t, err)

	_, err = NewIssuer("two", time.Minute).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpired(t *testing.T) {
	i := NewIssuer("secret", time.Minute)
	i.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := i.Issue(&model.User{ID: "id", Role: model.RoleCustomer})
	require.NoError(t, err)

	_, err = i.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := NewIssuer("secret", time.Minute).Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	assert.NoError(t, VerifyPassword(hash, "s3cret"))
	assert.ErrorIs(t, VerifyPassword(hash, "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, VerifyPassword(nil, "s3cret"), ErrInvalidCredentials)
}

func TestNewResetToken(t *testing.T) {
	a, err := NewResetToken()
	require.NoError(t, err)
	b, err := NewResetToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43)
}
