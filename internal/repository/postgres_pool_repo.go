package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/photorate/internal/database"
	"github.com/hitoshi/photorate/internal/model"
)

// PostgresPoolRepo はPostgreSQLを使用した評価プールリポジトリ。
type PostgresPoolRepo struct {
	db *sql.DB
}

// NewPostgresPoolRepo はPostgresPoolRepoを生成する。
func NewPostgresPoolRepo(db *sql.DB) *PostgresPoolRepo {
	return &PostgresPoolRepo{db: db}
}

// Add は写真を所有者の評価プールに追加する。
// 同一写真への同時追加は主キーで直列化され、行を挿入できたトランザクションだけがchargeを適用する。
func (r *PostgresPoolRepo) Add(ctx context.Context, ownerID, photoID model.ID, charge []model.PointMovement) (bool, int, error) {
	var (
		added   bool
		balance int
	)
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO evaluation_pool (user_id, photo_id)
			 VALUES ($1, $2)
			 ON CONFLICT (user_id, photo_id) DO NOTHING`,
			ownerID, photoID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert pool entry: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}

		if rowsAffected == 0 {
			err := tx.QueryRowContext(ctx,
				`SELECT points FROM users WHERE id = $1`,
				ownerID,
			).Scan(&balance)
			if err == sql.ErrNoRows {
				return ErrUserNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to read balance: %w", err)
			}
			return nil
		}

		balances, err := applyMovements(ctx, tx, charge)
		if err != nil {
			return err
		}
		added = true
		if b, ok := balances[ownerID]; ok {
			balance = b
			return nil
		}
		return tx.QueryRowContext(ctx,
			`SELECT points FROM users WHERE id = $1`,
			ownerID,
		).Scan(&balance)
	})
	if err != nil {
		return false, 0, err
	}
	return added, balance, nil
}

// Remove は写真を所有者の評価プールから削除する。
func (r *PostgresPoolRepo) Remove(ctx context.Context, ownerID, photoID model.ID) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM evaluation_pool WHERE user_id = $1 AND photo_id = $2`,
		ownerID, photoID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete pool entry: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ PoolRepository = (*PostgresPoolRepo)(nil)
