package repository

import (
	"context"
	"database/sql"
	"errors"
)

// CredentialRepo provides access to the calendar_credentials table,
// which stores one long-lived OAuth refresh token per owner.  The token
// exchange itself (authorization-code flow, consent screen) is handled
// by the onboarding service; this repo only reads and invalidates.
type CredentialRepo struct {
	db *sql.DB
}

// NewCredentialRepo returns a new CredentialRepo bound to the given database.
func NewCredentialRepo(db *sql.DB) *CredentialRepo { return &CredentialRepo{db: db} }

// GetRefreshToken returns the stored refresh token for an owner.  It
// returns ErrCredentialNotFound when the owner never connected a
// calendar or the credential was revoked.
func (r *CredentialRepo) GetRefreshToken(ctx context.Context, ownerID uint64) (string, error) {
	const q = `SELECT refresh_token FROM calendar_credentials WHERE owner_id = ? AND revoked_at IS NULL`
	var token string
	err := r.db.QueryRowContext(ctx, q, ownerID).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrCredentialNotFound
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// MarkRevoked flags a credential as revoked after the OAuth endpoint
// rejects its refresh token with invalid_grant.  Subsequent lookups
// return ErrCredentialNotFound until the owner reconnects.
func (r *CredentialRepo) MarkRevoked(ctx context.Context, ownerID uint64) error {
	const q = `UPDATE calendar_credentials SET revoked_at = UTC_TIMESTAMP() WHERE owner_id = ? AND revoked_at IS NULL`
	_, err := r.db.ExecContext(ctx, q, ownerID)
	return err
}
