package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginMintsValidatableToken(t *testing.T) {
	m := New("super-secret", time.Hour)
	sess, token, err := m.Login(nil, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	uid, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, uid)
}

func TestLoginWithExplicitUserID(t *testing.T) {
	m := New("super-secret", time.Hour)
	want := uuid.New()
	sess, _, err := m.Login(&want, "bob")
	require.NoError(t, err)
	assert.Equal(t, want, sess.UserID)
}

func TestLaterLoginDisplacesEarlierSession(t *testing.T) {
	m := New("super-secret", time.Hour)
	uid := uuid.New()
	first, _, err := m.Login(&uid, "carol")
	require.NoError(t, err)

	second, _, err := m.Login(&uid, "carol")
	require.NoError(t, err)

	current, ok := m.ByUser(uid)
	require.True(t, ok)
	assert.Equal(t, second.ID, current.ID)

	_, ok = m.ByID(first.ID)
	assert.False(t, ok, "the displaced session must no longer be reachable by id")
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	m := New("super-secret", time.Hour)
	_, token, err := m.Login(nil, "dave")
	require.NoError(t, err)

	_, err = m.Validate(token + "x")
	assert.Error(t, err)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	signer := New("secret-a", time.Hour)
	verifier := New("secret-b", time.Hour)

	_, token, err := signer.Login(nil, "erin")
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.Error(t, err)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	m := New("super-secret", -time.Second)
	_, token, err := m.Login(nil, "frank")
	require.NoError(t, err)

	_, err = m.Validate(token)
	assert.Error(t, err)
}
