package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/photorate/internal/model"
)

// PostgresRevokedTokenRepo はPostgreSQLを使用した失効トークンリポジトリ。
type PostgresRevokedTokenRepo struct {
	db *sql.DB
}

// NewPostgresRevokedTokenRepo はPostgresRevokedTokenRepoを生成する。
func NewPostgresRevokedTokenRepo(db *sql.DB) *PostgresRevokedTokenRepo {
	return &PostgresRevokedTokenRepo{db: db}
}

// Revoke はトークンを失効済みとして記録する。
func (r *PostgresRevokedTokenRepo) Revoke(ctx context.Context, token *model.RevokedToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO revoked_tokens (jti, user_id, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (jti) DO NOTHING`,
		token.JTI, token.UserID, token.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked はjtiが失効済みかどうかを返す。
func (r *PostgresRevokedTokenRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1)`,
		jti,
	).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("failed to check revoked token: %w", err)
	}
	return revoked, nil
}

// DeleteExpired は有効期限がbeforeより前の記録を削除し、件数を返す。
func (r *PostgresRevokedTokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired revoked tokens: %w", err)
	}
	return result.RowsAffected()
}

// compile-time interface check
var _ RevokedTokenRepository = (*PostgresRevokedTokenRepo)(nil)
