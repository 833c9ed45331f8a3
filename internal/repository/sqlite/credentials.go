package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/ngo-hub/internal/apperror"
	"github.com/sakif/ngo-hub/internal/identity"
)

// compile-time check that *DB implements identity.CredentialRepository
var _ identity.CredentialRepository = (*DB)(nil)

const accountColumns = `id, provider, subject, email, display_name, avatar_url, password_hash, created_at, updated_at`

// CreateAccount inserts acct. A taken (provider, subject) pair is reported as
// apperror.ErrConflict.
//
// ON CONFLICT DO NOTHING + RowsAffected:
// Instead of inspecting driver-specific constraint error codes, the insert
// simply does nothing on a duplicate and we check whether a row was written.
func (db *DB) CreateAccount(ctx context.Context, acct *identity.Account) error {
	now := time.Now().UTC()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		acct.ID,
		string(acct.Provider),
		acct.Subject,
		acct.Email,
		acct.DisplayName,
		acct.AvatarURL,
		acct.PasswordHash,
		acct.CreatedAt,
		acct.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting account (%s): %w", acct.Provider, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: inserting account (%s): %w", acct.Provider, err)
	}
	if n == 0 {
		return apperror.Conflict("account", string(acct.Provider)+":"+acct.Subject)
	}
	return nil
}

// AccountByID returns apperror.ErrNotFound if no account has that ID.
func (db *DB) AccountByID(ctx context.Context, id string) (*identity.Account, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)

	acct, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("account", id)
		}
		return nil, fmt.Errorf("sqlite: getting account %s: %w", id, err)
	}
	return acct, nil
}

// AccountBySubject returns apperror.ErrNotFound if nothing matches.
func (db *DB) AccountBySubject(ctx context.Context, provider identity.ProviderType, subject string) (*identity.Account, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE provider = ? AND subject = ?`,
		string(provider), subject)

	acct, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("account", string(provider)+":"+subject)
		}
		return nil, fmt.Errorf("sqlite: getting account %s:%s: %w", provider, subject, err)
	}
	return acct, nil
}

// UpdateProfile refreshes the display fields copied from a federated provider.
func (db *DB) UpdateProfile(ctx context.Context, acct *identity.Account) error {
	acct.UpdatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE accounts SET email = ?, display_name = ?, avatar_url = ?, updated_at = ?
		 WHERE id = ?`,
		acct.Email,
		acct.DisplayName,
		acct.AvatarURL,
		acct.UpdatedAt,
		acct.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating account %s: %w", acct.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: updating account %s: %w", acct.ID, err)
	}
	if n == 0 {
		return apperror.NotFound("account", acct.ID)
	}
	return nil
}

func scanAccount(row *sql.Row) (*identity.Account, error) {
	var (
		a        identity.Account
		provider string
	)
	err := row.Scan(
		&a.ID,
		&provider,
		&a.Subject,
		&a.Email,
		&a.DisplayName,
		&a.AvatarURL,
		&a.PasswordHash,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Provider = identity.ProviderType(provider)
	return &a, nil
}
