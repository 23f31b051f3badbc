package operations

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/backoffice/pkg/authz"
)

// invitationTTL is how long a pending invitation stays redeemable.
const invitationTTL = 7 * 24 * time.Hour

// ListMembers lists all members of an operation with user details.
func (s *Service) ListMembers(ctx context.Context, operationID int64) ([]*Member, error) {
	query := `
		SELECT g.id, g.operation_id, g.user_id, g.role, g.permissions, g.granted_by, g.created_at,
		       u.username, u.email, u.full_name
		FROM access_grants g
		JOIN users u ON u.id = g.user_id
		WHERE g.operation_id = $1
		ORDER BY g.created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, operationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

// GetMember retrieves a single member of an operation.
func (s *Service) GetMember(ctx context.Context, operationID, userID int64) (*Member, error) {
	query := `
		SELECT g.id, g.operation_id, g.user_id, g.role, g.permissions, g.granted_by, g.created_at,
		       u.username, u.email, u.full_name
		FROM access_grants g
		JOIN users u ON u.id = g.user_id
		WHERE g.operation_id = $1 AND g.user_id = $2
	`
	member, err := scanMember(s.db.QueryRowContext(ctx, query, operationID, userID))
	if err == sql.ErrNoRows {
		return nil, ErrMemberNotFound
	}
	return member, err
}

// AddMember grants a user membership in an operation. The grant is
// created with no permission override, so module access follows the
// role baseline until a caller sets one.
func (s *Service) AddMember(ctx context.Context, operationID, userID int64, role authz.Role, grantedBy *int64) error {
	if _, err := s.grants.GetGrant(ctx, userID, operationID); err == nil {
		return ErrMemberExists
	} else if err != authz.ErrGrantNotFound {
		return fmt.Errorf("failed to check existing grant: %w", err)
	}

	grant := &authz.AccessGrant{
		UserID:      userID,
		OperationID: operationID,
		Role:        role,
		GrantedBy:   grantedBy,
	}
	if err := s.grants.CreateGrant(ctx, grant); err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// UpdateMember changes a member's role, permission override, or both.
func (s *Service) UpdateMember(ctx context.Context, operationID, userID int64, updates *UpdateMemberRequest) error {
	grant, err := s.grants.GetGrant(ctx, userID, operationID)
	if err == authz.ErrGrantNotFound {
		return ErrMemberNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get grant: %w", err)
	}

	// Work on a copy. The store may serve grant from a cache, and a
	// write that fails downstream must not leave edits on it.
	updated := grant.Clone()
	if updates.Role != nil {
		updated.Role = *updates.Role
	}
	if updates.ClearPerms {
		updated.Permissions = nil
	} else if updates.Permissions != nil {
		updated.Permissions = updates.Permissions
	}

	if err := s.grants.UpdateGrant(ctx, updated); err != nil {
		if err == authz.ErrGrantNotFound {
			return ErrMemberNotFound
		}
		return fmt.Errorf("failed to update member: %w", err)
	}
	return nil
}

// RemoveMember revokes a user's membership in an operation.
func (s *Service) RemoveMember(ctx context.Context, operationID, userID int64) error {
	err := s.grants.DeleteGrant(ctx, userID, operationID)
	if err == authz.ErrGrantNotFound {
		return ErrMemberNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}

// CreateInvitation issues an invitation to join an operation. Inviting
// the same email again replaces the pending invitation with a fresh
// token and expiry.
func (s *Service) CreateInvitation(ctx context.Context, invitation *Invitation) error {
	invitation.Token = uuid.New().String()

	now := time.Now().UTC()
	if invitation.InvitedAt.IsZero() {
		invitation.InvitedAt = now
	}
	if invitation.ExpiresAt.IsZero() {
		invitation.ExpiresAt = now.Add(invitationTTL)
	}

	query := `
		INSERT INTO operation_invitations (operation_id, email, role, token, invited_by, invited_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (operation_id, email) DO UPDATE
		SET role = EXCLUDED.role, token = EXCLUDED.token, invited_at = EXCLUDED.invited_at, expires_at = EXCLUDED.expires_at
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query, invitation.OperationID, invitation.Email, invitation.Role,
		invitation.Token, invitation.InvitedBy, invitation.InvitedAt, invitation.ExpiresAt).
		Scan(&invitation.ID)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

// GetInvitation retrieves an invitation by token.
func (s *Service) GetInvitation(ctx context.Context, token string) (*Invitation, error) {
	query := `
		SELECT id, operation_id, email, role, token, invited_by, invited_at, expires_at, accepted_at, accepted_by
		FROM operation_invitations
		WHERE token = $1
	`
	invitation, err := scanInvitation(s.db.QueryRowContext(ctx, query, token))
	if err == sql.ErrNoRows {
		return nil, ErrInvitationNotFound
	}
	return invitation, err
}

// ListInvitations lists pending invitations for an operation.
func (s *Service) ListInvitations(ctx context.Context, operationID int64) ([]*Invitation, error) {
	query := `
		SELECT id, operation_id, email, role, token, invited_by, invited_at, expires_at, accepted_at, accepted_by
		FROM operation_invitations
		WHERE operation_id = $1 AND accepted_at IS NULL
		ORDER BY invited_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, operationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []*Invitation
	for rows.Next() {
		invitation, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, invitation)
	}
	return invitations, rows.Err()
}

// AcceptInvitation redeems an invitation for a user. The resulting
// grant carries the role's default permission set so the member's
// access is explicit from day one.
func (s *Service) AcceptInvitation(ctx context.Context, token string, userID int64) error {
	invitation, err := s.GetInvitation(ctx, token)
	if err != nil {
		return err
	}
	if invitation.AcceptedAt != nil {
		return ErrInvitationAccepted
	}
	now := time.Now().UTC()
	if invitation.Expired(now) {
		return ErrInvitationExpired
	}

	defaults := authz.DefaultsFor(invitation.Role)
	grant := &authz.AccessGrant{
		UserID:      userID,
		OperationID: invitation.OperationID,
		Role:        invitation.Role,
		Permissions: &defaults,
		GrantedBy:   &invitation.InvitedBy,
	}
	if err := s.grants.CreateGrant(ctx, grant); err != nil {
		return fmt.Errorf("failed to create grant: %w", err)
	}

	query := `UPDATE operation_invitations SET accepted_at = $1, accepted_by = $2 WHERE id = $3`
	if _, err := s.db.ExecContext(ctx, query, now, userID, invitation.ID); err != nil {
		return fmt.Errorf("failed to mark invitation accepted: %w", err)
	}
	return nil
}

// RevokeInvitation deletes a pending invitation.
func (s *Service) RevokeInvitation(ctx context.Context, id int64) error {
	query := `DELETE FROM operation_invitations WHERE id = $1 AND accepted_at IS NULL`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to revoke invitation: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrInvitationNotFound
	}
	return nil
}

// CleanupExpiredInvitations removes expired unaccepted invitations and
// returns how many were swept.
func (s *Service) CleanupExpiredInvitations(ctx context.Context) (int64, error) {
	query := `DELETE FROM operation_invitations WHERE expires_at < $1 AND accepted_at IS NULL`
	result, err := s.db.ExecContext(ctx, query, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired invitations: %w", err)
	}
	return result.RowsAffected()
}

func scanMember(row rowScanner) (*Member, error) {
	member := &Member{}
	var permsJSON sql.NullString
	var grantedBy sql.NullInt64
	var email, fullName sql.NullString
	err := row.Scan(
		&member.GrantID, &member.OperationID, &member.UserID, &member.Role,
		&permsJSON, &grantedBy, &member.JoinedAt,
		&member.Username, &email, &fullName,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan member: %w", err)
	}
	if permsJSON.Valid {
		var perms authz.PermissionSet
		if err := json.Unmarshal([]byte(permsJSON.String), &perms); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
		// JSON null in the column means role defaults, not an override
		if perms != nil {
			member.Permissions = &perms
		}
	}
	if grantedBy.Valid {
		member.GrantedBy = &grantedBy.Int64
	}
	if email.Valid {
		member.Email = email.String
	}
	if fullName.Valid {
		member.FullName = fullName.String
	}
	return member, nil
}

func scanInvitation(row rowScanner) (*Invitation, error) {
	invitation := &Invitation{}
	var acceptedAt sql.NullTime
	var acceptedBy sql.NullInt64
	err := row.Scan(
		&invitation.ID, &invitation.OperationID, &invitation.Email, &invitation.Role,
		&invitation.Token, &invitation.InvitedBy, &invitation.InvitedAt, &invitation.ExpiresAt,
		&acceptedAt, &acceptedBy,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan invitation: %w", err)
	}
	if acceptedAt.Valid {
		invitation.AcceptedAt = &acceptedAt.Time
	}
	if acceptedBy.Valid {
		invitation.AcceptedBy = &acceptedBy.Int64
	}
	return invitation, nil
}
