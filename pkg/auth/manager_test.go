package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/backoffice/pkg/authz"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// Create minimal tables for testing
	_, err = db.Exec(`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			email TEXT,
			full_name TEXT,
			platform_role TEXT NOT NULL DEFAULT 'none',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			last_login_at TIMESTAMP
		);

		CREATE TABLE api_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			token_hash TEXT NOT NULL UNIQUE,
			token_prefix TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			expires_at TIMESTAMP,
			last_used_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			revoked_at TIMESTAMP,
			revoked_by INTEGER,
			revoke_reason TEXT
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test tables: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *sql.DB, username string, role authz.PlatformRole) *User {
	store := NewUserStore(db)
	user := &User{
		Username:     username,
		Email:        username + "@example.com",
		PlatformRole: role,
		IsActive:     true,
	}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

func TestCreateAndValidateToken(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice", authz.PlatformRoleNone)

	tm := NewTokenManager(db)

	apiToken, plaintext, err := tm.CreateToken(ctx, user.ID, "ci token", "build pipeline", nil)
	require.NoError(t, err)
	assert.NotZero(t, apiToken.ID)
	assert.NotEmpty(t, plaintext)

	validated, err := tm.ValidateToken(ctx, plaintext)
	require.NoError(t, err)
	assert.Equal(t, apiToken.ID, validated.ID)
	assert.Equal(t, user.ID, validated.UserID)
	assert.NotNil(t, validated.LastUsedAt)
}

func TestValidateTokenRejectsUnknown(t *testing.T) {
	db := setupTestDB(t)
	tm := NewTokenManager(db)

	token, _, _, err := NewTokenGenerator().GenerateToken()
	require.NoError(t, err)

	_, err = tm.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestValidateTokenRejectsRevoked(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "bob", authz.PlatformRoleNone)

	tm := NewTokenManager(db)

	apiToken, plaintext, err := tm.CreateToken(ctx, user.ID, "old token", "", nil)
	require.NoError(t, err)

	require.NoError(t, tm.RevokeToken(ctx, apiToken.ID, user.ID, "rotated"))

	_, err = tm.ValidateToken(ctx, plaintext)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	// Revoking twice reports not found
	assert.ErrorIs(t, tm.RevokeToken(ctx, apiToken.ID, user.ID, "again"), ErrTokenNotFound)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "carol", authz.PlatformRoleNone)

	tm := NewTokenManager(db)

	expired := time.Now().UTC().Add(-time.Hour)
	_, plaintext, err := tm.CreateToken(ctx, user.ID, "expired token", "", &expired)
	require.NoError(t, err)

	_, err = tm.ValidateToken(ctx, plaintext)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestCleanupExpiredTokens(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "dave", authz.PlatformRoleNone)

	tm := NewTokenManager(db)

	expired := time.Now().UTC().Add(-time.Hour)
	_, _, err := tm.CreateToken(ctx, user.ID, "expired", "", &expired)
	require.NoError(t, err)

	future := time.Now().UTC().Add(time.Hour)
	_, _, err = tm.CreateToken(ctx, user.ID, "live", "", &future)
	require.NoError(t, err)

	removed, err := tm.CleanupExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	tokens, err := tm.ListUserTokens(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, tokens, 1)
	assert.Equal(t, "live", tokens[0].Name)
}

func TestUserStore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	store := NewUserStore(db)

	user := createTestUser(t, db, "erin", authz.PlatformRoleAdmin)

	t.Run("get by id", func(t *testing.T) {
		got, err := store.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "erin", got.Username)
		assert.Equal(t, authz.PlatformRoleAdmin, got.PlatformRole)
		assert.True(t, got.Identity().PlatformRole.Elevated())
	})

	t.Run("get by username", func(t *testing.T) {
		got, err := store.GetUserByUsername(ctx, "erin")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := store.GetUser(ctx, 9999)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("set platform role", func(t *testing.T) {
		require.NoError(t, store.SetPlatformRole(ctx, user.ID, authz.PlatformRoleNone))
		got, err := store.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, authz.PlatformRoleNone, got.PlatformRole)
		assert.False(t, got.Identity().PlatformRole.Elevated())
	})

	t.Run("rejects unknown platform role", func(t *testing.T) {
		assert.Error(t, store.SetPlatformRole(ctx, user.ID, authz.PlatformRole("root")))
	})

	t.Run("record login", func(t *testing.T) {
		require.NoError(t, store.RecordLogin(ctx, user.ID))
		got, err := store.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.NotNil(t, got.LastLoginAt)
	})
}
