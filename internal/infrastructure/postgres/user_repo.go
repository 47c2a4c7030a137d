package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/safejob-auth/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, role, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// FindOrCreate returns the user for email, creating a candidate if none exists.
func (r *UserRepository) FindOrCreate(ctx context.Context, email string) (*domain.User, error) {
	query := `
		INSERT INTO users (email)
		VALUES ($1)
		ON CONFLICT (email) DO UPDATE SET updated_at = NOW()
		RETURNING ` + userColumns

	u, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("find or create user: %w", err)
	}
	return u, nil
}

// Upsert sets the role of the user for email. Used by the seeder.
func (r *UserRepository) Upsert(ctx context.Context, email string, role domain.Role) (*domain.User, error) {
	query := `
		INSERT INTO users (email, role)
		VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET role = EXCLUDED.role, updated_at = NOW()
		RETURNING ` + userColumns

	u, err := scanUser(r.pool.QueryRow(ctx, query, email, string(role)))
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) CreateMagicToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO magic_tokens (user_id, token_hash, expires_at) VALUES ($1, $2, $3)`,
		userID, tokenHash, expiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("insert magic token: %w", err)
	}
	return nil
}

// ClaimMagicToken marks an unused, unexpired token as used in one statement,
// so two concurrent redemptions of the same link cannot both succeed.
func (r *UserRepository) ClaimMagicToken(ctx context.Context, tokenHash string) (*domain.MagicToken, error) {
	query := `
		UPDATE magic_tokens
		SET used_at = NOW()
		WHERE token_hash = $1
		  AND used_at IS NULL
		  AND expires_at > NOW()
		RETURNING id, user_id, token_hash, expires_at, used_at, created_at`

	var mt domain.MagicToken
	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&mt.ID, &mt.UserID, &mt.TokenHash, &mt.ExpiresAt, &mt.UsedAt, &mt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, fmt.Errorf("claim magic token: %w", err)
	}
	return &mt, nil
}

// PurgeExpired deletes tokens that expired, or were used, before the cutoff.
func (r *UserRepository) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM magic_tokens WHERE expires_at < $1 OR used_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("purge magic tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u    domain.User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if u.Role, err = domain.ParseRole(role); err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
