package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlime/knotd/internal/auth"
	"github.com/slowlime/knotd/internal/model"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := auth.HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)
	assert.True(t, auth.VerifyPassword("hunter2", hash))
	assert.False(t, auth.VerifyPassword("wrong", hash))
}

func TestMintAndIdentify(t *testing.T) {
	m := auth.NewMinter([]byte("test-secret"), time.Hour)
	token, err := m.Mint("alice")
	require.NoError(t, err)

	lookup := func(ctx context.Context, username string) (*model.User, error) {
		assert.Equal(t, "alice", username)
		return &model.User{ID: 1, Username: username}, nil
	}
	user, err := m.Identify(context.Background(), token, lookup)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
}

func TestIdentifyRejectsTamperedToken(t *testing.T) {
	m := auth.NewMinter([]byte("test-secret"), time.Hour)
	other := auth.NewMinter([]byte("other-secret"), time.Hour)
	token, err := other.Mint("alice")
	require.NoError(t, err)

	_, err = m.Identify(context.Background(), token, func(context.Context, string) (*model.User, error) {
		t.Fatal("lookup should not be reached for a token signed with a different secret")
		return nil, nil
	})
	assert.Error(t, err)
}

func TestIdentifyRejectsExpiredToken(t *testing.T) {
	// A zero or negative ttl falls back to DefaultTTL, so use the smallest
	// positive duration and let it lapse before verifying.
	m := auth.NewMinter([]byte("test-secret"), time.Nanosecond)
	token, err := m.Mint("alice")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	_, err = m.Identify(context.Background(), token, func(context.Context, string) (*model.User, error) {
		t.Fatal("lookup should not be reached for an expired token")
		return nil, nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestIdentifyRejectsUnknownUser(t *testing.T) {
	m := auth.NewMinter([]byte("test-secret"), time.Hour)
	token, err := m.Mint("ghost")
	require.NoError(t, err)

	_, err = m.Identify(context.Background(), token, func(context.Context, string) (*model.User, error) {
		return nil, assert.AnError
	})
	assert.Error(t, err)
}
