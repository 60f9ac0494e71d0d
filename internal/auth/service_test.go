package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	svc, err := NewService("test-secret")
	require.NoError(t, err)

	token, exp, err := svc.Issue("user-1", "u1@example.com", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	id, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "user-1", Email: "u1@example.com"}, id)
}

func TestVerifyRejects(t *testing.T) {
	svc, err := NewService("test-secret")
	require.NoError(t, err)

	other, err := NewService("other-secret")
	require.NoError(t, err)
	foreign, _, err := other.Issue("user-1", "", time.Hour)
	require.NoError(t, err)
	_, err = svc.Verify(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, _, err := svc.Issue("user-1", "", -time.Minute)
	require.NoError(t, err)
	_, err = svc.Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-1"}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = svc.Verify(noExp)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Verify(none)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewService("")
	assert.ErrorIs(t, err, ErrMissingSecret)
}
