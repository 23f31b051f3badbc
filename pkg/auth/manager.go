package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerline/backoffice/pkg/authz"
)

// ErrTokenNotFound indicates the token does not exist or is no longer usable
var ErrTokenNotFound = errors.New("token not found")

// ErrUserNotFound indicates the user does not exist
var ErrUserNotFound = errors.New("user not found")

// TokenManager manages API token lifecycle backed by the database
type TokenManager struct {
	db        *sql.DB
	generator *TokenGenerator
}

// NewTokenManager creates a new token manager
func NewTokenManager(db *sql.DB) *TokenManager {
	return &TokenManager{
		db:        db,
		generator: NewTokenGenerator(),
	}
}

// CreateToken creates a new API token. The plaintext token is returned once
// and never stored.
func (tm *TokenManager) CreateToken(ctx context.Context, userID int64, name, description string, expiresAt *time.Time) (*APIToken, string, error) {
	token, tokenHash, tokenPrefix, err := tm.generator.GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	now := time.Now().UTC()
	apiToken := &APIToken{
		UserID:      userID,
		TokenHash:   tokenHash,
		TokenPrefix: tokenPrefix,
		Name:        name,
		Description: description,
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
	}

	err = tm.db.QueryRowContext(ctx, `
		INSERT INTO api_tokens (user_id, token_hash, token_prefix, name, description, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		userID, tokenHash, tokenPrefix, name, description, expiresAt, now,
	).Scan(&apiToken.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to store token: %w", err)
	}

	return apiToken, token, nil
}

// ValidateToken validates a token and returns the stored record.
// Revoked and expired tokens are rejected.
func (tm *TokenManager) ValidateToken(ctx context.Context, token string) (*APIToken, error) {
	if err := tm.generator.ValidateTokenFormat(token); err != nil {
		return nil, fmt.Errorf("invalid token format: %w", err)
	}

	tokenHash := tm.generator.HashToken(token)

	apiToken, err := tm.getByHash(ctx, tokenHash)
	if err != nil {
		return nil, err
	}

	if apiToken.Revoked() {
		return nil, ErrTokenNotFound
	}
	if apiToken.Expired(time.Now().UTC()) {
		return nil, ErrTokenNotFound
	}

	// Best effort; a failed touch does not invalidate the token
	now := time.Now().UTC()
	_, _ = tm.db.ExecContext(ctx,
		`UPDATE api_tokens SET last_used_at = $1 WHERE id = $2`, now, apiToken.ID)
	apiToken.LastUsedAt = &now

	return apiToken, nil
}

// RevokeToken revokes a token
func (tm *TokenManager) RevokeToken(ctx context.Context, tokenID int64, revokedBy int64, reason string) error {
	result, err := tm.db.ExecContext(ctx, `
		UPDATE api_tokens
		SET revoked_at = $1, revoked_by = $2, revoke_reason = $3
		WHERE id = $4 AND revoked_at IS NULL`,
		time.Now().UTC(), revokedBy, reason, tokenID)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check revocation: %w", err)
	}
	if rows == 0 {
		return ErrTokenNotFound
	}

	return nil
}

// ListUserTokens lists all tokens for a user, most recent first
func (tm *TokenManager) ListUserTokens(ctx context.Context, userID int64) ([]*APIToken, error) {
	rows, err := tm.db.QueryContext(ctx, `
		SELECT id, user_id, token_hash, token_prefix, name, description,
		       expires_at, last_used_at, created_at, revoked_at, revoked_by, revoke_reason
		FROM api_tokens
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*APIToken
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}

	return tokens, rows.Err()
}

// CleanupExpiredTokens deletes tokens whose expiry has passed
func (tm *TokenManager) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	result, err := tm.db.ExecContext(ctx,
		`DELETE FROM api_tokens WHERE expires_at IS NOT NULL AND expires_at < $1`,
		time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up expired tokens: %w", err)
	}

	return result.RowsAffected()
}

func (tm *TokenManager) getByHash(ctx context.Context, tokenHash string) (*APIToken, error) {
	row := tm.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, token_prefix, name, description,
		       expires_at, last_used_at, created_at, revoked_at, revoked_by, revoke_reason
		FROM api_tokens
		WHERE token_hash = $1`, tokenHash)

	token, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	return token, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanToken(row rowScanner) (*APIToken, error) {
	var token APIToken
	var description, revokeReason sql.NullString
	var expiresAt, lastUsedAt, revokedAt sql.NullTime
	var revokedBy sql.NullInt64

	err := row.Scan(
		&token.ID, &token.UserID, &token.TokenHash, &token.TokenPrefix,
		&token.Name, &description, &expiresAt, &lastUsedAt,
		&token.CreatedAt, &revokedAt, &revokedBy, &revokeReason,
	)
	if err != nil {
		return nil, err
	}

	token.Description = description.String
	token.RevokeReason = revokeReason.String
	if expiresAt.Valid {
		token.ExpiresAt = &expiresAt.Time
	}
	if lastUsedAt.Valid {
		token.LastUsedAt = &lastUsedAt.Time
	}
	if revokedAt.Valid {
		token.RevokedAt = &revokedAt.Time
	}
	if revokedBy.Valid {
		token.RevokedBy = &revokedBy.Int64
	}

	return &token, nil
}

// UserStore provides user account lookups
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a new user store
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// GetUser fetches a user by ID
func (s *UserStore) GetUser(ctx context.Context, userID int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, full_name, platform_role, is_active, created_at, updated_at, last_login_at
		FROM users
		WHERE id = $1`, userID)
	return scanUser(row)
}

// GetUserByUsername fetches a user by username
func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, full_name, platform_role, is_active, created_at, updated_at, last_login_at
		FROM users
		WHERE username = $1`, username)
	return scanUser(row)
}

// CreateUser creates a new user account
func (s *UserStore) CreateUser(ctx context.Context, user *User) error {
	if !validPlatformRole(user.PlatformRole) {
		return fmt.Errorf("invalid platform role: %s", user.PlatformRole)
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, full_name, platform_role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		user.Username, user.Email, user.FullName, string(user.PlatformRole), user.IsActive, now, now,
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// SetPlatformRole updates a user's platform role
func (s *UserStore) SetPlatformRole(ctx context.Context, userID int64, role authz.PlatformRole) error {
	if !validPlatformRole(role) {
		return fmt.Errorf("invalid platform role: %s", role)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET platform_role = $1, updated_at = $2 WHERE id = $3`,
		string(role), time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to update platform role: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

// RecordLogin stamps the user's last login time
func (s *UserStore) RecordLogin(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = $1 WHERE id = $2`,
		time.Now().UTC(), userID)
	return err
}

func scanUser(row *sql.Row) (*User, error) {
	var user User
	var email, fullName sql.NullString
	var platformRole string
	var lastLoginAt sql.NullTime

	err := row.Scan(
		&user.ID, &user.Username, &email, &fullName, &platformRole,
		&user.IsActive, &user.CreatedAt, &user.UpdatedAt, &lastLoginAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user.Email = email.String
	user.FullName = fullName.String
	user.PlatformRole = authz.PlatformRole(platformRole)
	if lastLoginAt.Valid {
		user.LastLoginAt = &lastLoginAt.Time
	}

	return &user, nil
}

func validPlatformRole(role authz.PlatformRole) bool {
	switch role {
	case authz.PlatformRoleNone, authz.PlatformRoleAdmin, authz.PlatformRoleSuperAdmin:
		return true
	}
	return false
}
