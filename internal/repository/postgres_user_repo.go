package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/photorate/internal/database"
	"github.com/hitoshi/photorate/internal/model"
)

const userColumns = `id, email, password_hash, name, gender, age, points, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.Gender,
		&user.Age, &user.Points, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Create はユーザーを残高0で作成し、grantを同一トランザクションで適用する。
// 適用後の残高をuser.Pointsに反映する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User, grant []model.PointMovement) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, email, password_hash, name, gender, age, points, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8)`,
			user.ID, user.Email, user.PasswordHash, user.Name, user.Gender, user.Age,
			user.CreatedAt, user.UpdatedAt,
		)
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}

		balances, err := applyMovements(ctx, tx, grant)
		if err != nil {
			return err
		}
		user.Points = balances[user.ID]
		return nil
	})
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id model.ID) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// SetResetToken はパスワードリセットトークンのハッシュと有効期限を保存する。
func (r *PostgresUserRepo) SetResetToken(ctx context.Context, reset *model.PasswordReset) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET reset_token_hash = $2, reset_token_expires_at = $3, updated_at = now()
		 WHERE id = $1`,
		reset.UserID, reset.TokenHash, reset.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to set reset token: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// FindByResetTokenHash は有効期限内のリセットトークンハッシュでユーザーを検索する。
func (r *PostgresUserRepo) FindByResetTokenHash(ctx context.Context, tokenHash string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE reset_token_hash = $1 AND reset_token_expires_at > now()`,
		tokenHash,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by reset token: %w", err)
	}
	return user, nil
}

// UpdatePassword はパスワードハッシュを更新し、リセットトークンを消去する。
func (r *PostgresUserRepo) UpdatePassword(ctx context.Context, id model.ID, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET password_hash = $2, reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = now()
		 WHERE id = $1`,
		id, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ClearExpiredResetTokens は期限切れのリセットトークンを消去し、件数を返す。
func (r *PostgresUserRepo) ClearExpiredResetTokens(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET reset_token_hash = NULL, reset_token_expires_at = NULL
		 WHERE reset_token_expires_at IS NOT NULL AND reset_token_expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired reset tokens: %w", err)
	}
	return result.RowsAffected()
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
