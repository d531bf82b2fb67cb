package entitlement

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the PostgreSQL-backed Store. Every write is a single-statement
// atomic assignment, so concurrent deliveries for the same customer cannot
// leave a half-written row.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Store backed by the given connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// current_role is reserved in PostgreSQL, so the role columns carry a
// role_ prefix instead.
const userColumns = `id, email, name, provider_customer_id, entitled, role_current, role_desired, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.ProviderCustomerID, &u.Entitled,
		&u.CurrentRole, &u.DesiredRole, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *PGStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (s *PGStore) FindByID(ctx context.Context, id string) (*User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *PGStore) UpsertEntitled(ctx context.Context, params UpsertParams) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, name, provider_customer_id, entitled)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET
			provider_customer_id = EXCLUDED.provider_customer_id,
			entitled             = EXCLUDED.entitled,
			updated_at           = now()`,
		params.ID, params.Email, params.Name, params.ProviderCustomerID, params.Entitled,
	)
	if err != nil {
		return errors.Join(ErrPersistenceFailure, err)
	}
	return nil
}

func (s *PGStore) SetEntitledByCustomerID(ctx context.Context, customerID string, entitled bool) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET
			entitled   = $2,
			updated_at = now()
		WHERE provider_customer_id = $1`,
		customerID, entitled,
	)
	if err != nil {
		return errors.Join(ErrPersistenceFailure, err)
	}
	return nil
}

func (s *PGStore) SaveProfile(ctx context.Context, id, email, name, currentRole, desiredRole string) error {
	// Conflict on email, not id: a webhook-created row holds a placeholder id
	// and must be adopted, not duplicated.
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, name, role_current, role_desired)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET
			id           = EXCLUDED.id,
			name         = EXCLUDED.name,
			role_current = EXCLUDED.role_current,
			role_desired = EXCLUDED.role_desired,
			updated_at   = now()`,
		id, email, name, currentRole, desiredRole,
	)
	if err != nil {
		return errors.Join(ErrPersistenceFailure, err)
	}
	return nil
}
