package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/onboardiq/onboardiq/internal/domain"
)

// Compile-time check: AccountStore implements domain.AccountRegistry.
var _ domain.AccountRegistry = (*AccountStore)(nil)

// AccountStore implements domain.AccountRegistry using SQLite.
type AccountStore struct {
	db *sql.DB
}

func (r *AccountStore) Create(ctx context.Context, a domain.NewAccount) (domain.Account, error) {
	now := time.Now().UTC().Format(timeFormat)

	account := domain.Account{
		ID:        uuid.NewString(),
		TenantID:  a.TenantID,
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, tenant_id, email, first_name, last_name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		account.ID, account.TenantID, account.Email, account.FirstName, account.LastName, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Account{}, &domain.ConflictError{Field: "admin email", Value: a.Email}
		}
		return domain.Account{}, fmt.Errorf("inserting account: %w", err)
	}

	return account, nil
}

func (r *AccountStore) EmailTaken(ctx context.Context, email string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts WHERE email = ? AND deleted_at IS NULL`,
		email,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking email uniqueness: %w", err)
	}
	return count > 0, nil
}

// SoftDelete releases the account's email while retaining the record for
// audit. Deleting an already-deleted account is a no-op.
func (r *AccountStore) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(timeFormat)
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		now, now, id,
	)
	if err != nil {
		return fmt.Errorf("soft-deleting account: %w", err)
	}
	return nil
}
